package store

// PageRange returns the inclusive row range [from, to] of a 1-based page.
func PageRange(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size, page*size - 1
}

// TotalPages is ceil(count/size), never less than 1.
func TotalPages(count, size int) int {
	if size <= 0 || count <= 0 {
		return 1
	}
	return (count + size - 1) / size
}

// ClampPage keeps page within [1, total].
func ClampPage(page, total int) int {
	if total < 1 {
		total = 1
	}
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// Pagination drives the page controls. Every page 1..Total is listed.
type Pagination struct {
	Current int
	Total   int
	Prev    int
	Next    int
	HasPrev bool
	HasNext bool
	Pages   []int
}

func NewPagination(current, total int) Pagination {
	if total < 1 {
		total = 1
	}
	current = ClampPage(current, total)

	pages := make([]int, total)
	for i := range pages {
		pages[i] = i + 1
	}

	p := Pagination{
		Current: current,
		Total:   total,
		HasPrev: current > 1,
		HasNext: current < total,
		Pages:   pages,
	}
	if p.HasPrev {
		p.Prev = current - 1
	}
	if p.HasNext {
		p.Next = current + 1
	}
	return p
}
