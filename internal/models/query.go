package models

// Filter narrows a select. Empty fields are ignored.
type Filter struct {
	PostID string
}

type Order struct {
	Column string
	Desc   bool
}

// Range is an inclusive row interval [From, To].
type Range struct {
	From int
	To   int
}

func (r Range) Limit() int {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

type Query struct {
	Filter Filter
	Order  Order
	Range  *Range
}

// NewestFirst is the order every list view uses.
var NewestFirst = Order{Column: "created_at", Desc: true}

// Result carries one window of rows plus the exact count of the whole
// filtered collection.
type Result[T Item] struct {
	Items []T
	Count int
}
