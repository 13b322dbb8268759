// Package gatewaytest provides in-memory gateway implementations for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cacoblog/internal/gateway"
	"cacoblog/internal/models"

	"github.com/google/uuid"
)

var (
	_ gateway.Table[models.Post]    = (*Table[models.Post])(nil)
	_ gateway.Table[models.Comment] = (*Table[models.Comment])(nil)
)

// Table is an in-memory gateway.Table. Rows get strictly increasing
// created_at values so ordering is deterministic.
type Table[T models.Item] struct {
	mu    sync.Mutex
	rows  []T
	base  time.Time
	seq   int
	calls int

	build func(id string, createdAt time.Time, d models.Draft) T
	apply func(row T, p models.Patch) T
	match func(row T, f models.Filter) bool

	// BeforeSelect runs before every Select; a non-nil error fails the call.
	BeforeSelect func(ctx context.Context, q models.Query) error
	// WriteErr fails every Insert, Update and Delete when set.
	WriteErr error
}

func NewPostTable() *Table[models.Post] {
	return &Table[models.Post]{
		base: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		build: func(id string, createdAt time.Time, d models.Draft) models.Post {
			return models.Post{
				ID:        id,
				CreatedAt: createdAt,
				Title:     d.Title,
				Content:   d.Content,
				UserID:    d.UserID,
				Username:  d.Username,
				ImageURL:  d.ImageURL,
			}
		},
		apply: func(row models.Post, p models.Patch) models.Post {
			row.Title = p.Title
			row.Content = p.Content
			row.ImageURL = p.ImageURL
			return row
		},
		match: func(models.Post, models.Filter) bool { return true },
	}
}

func NewCommentTable() *Table[models.Comment] {
	return &Table[models.Comment]{
		base: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		build: func(id string, createdAt time.Time, d models.Draft) models.Comment {
			return models.Comment{
				ID:        id,
				CreatedAt: createdAt,
				Content:   d.Content,
				UserID:    d.UserID,
				Username:  d.Username,
				ImageURL:  d.ImageURL,
				PostID:    d.PostID,
			}
		},
		apply: func(row models.Comment, p models.Patch) models.Comment {
			row.Content = p.Content
			row.ImageURL = p.ImageURL
			return row
		},
		match: func(row models.Comment, f models.Filter) bool {
			return f.PostID == "" || row.PostID == f.PostID
		},
	}
}

// Seed inserts n rows authored by userID and returns them oldest first.
func (t *Table[T]) Seed(n int, userID string, draft func(i int) models.Draft) []T {
	rows := make([]T, 0, n)
	for i := 0; i < n; i++ {
		d := draft(i)
		d.UserID = userID
		row, _ := t.insert(d)
		rows = append(rows, row)
	}
	return rows
}

// Calls reports how many gateway operations were issued.
func (t *Table[T]) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

func (t *Table[T]) Select(ctx context.Context, q models.Query) (models.Result[T], error) {
	t.mu.Lock()
	t.calls++
	hook := t.BeforeSelect
	t.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, q); err != nil {
			return models.Result[T]{}, err
		}
	}

	if q.Order.Column != "" && q.Order.Column != "created_at" {
		return models.Result[T]{}, fmt.Errorf("сортировка по полю %s не поддерживается", q.Order.Column)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	matched := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if t.match(row, q.Filter) {
			matched = append(matched, row)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.GetCreatedAt().Equal(b.GetCreatedAt()) {
			if q.Order.Desc {
				return a.GetCreatedAt().After(b.GetCreatedAt())
			}
			return a.GetCreatedAt().Before(b.GetCreatedAt())
		}
		if q.Order.Desc {
			return a.GetID() > b.GetID()
		}
		return a.GetID() < b.GetID()
	})

	result := models.Result[T]{Count: len(matched), Items: []T{}}
	if q.Range == nil {
		result.Items = matched
		return result, nil
	}

	from := q.Range.From
	to := from + q.Range.Limit()
	if from > len(matched) {
		from = len(matched)
	}
	if to > len(matched) {
		to = len(matched)
	}
	result.Items = append(result.Items, matched[from:to]...)

	return result, nil
}

func (t *Table[T]) GetByID(ctx context.Context, id string) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++

	for _, row := range t.rows {
		if row.GetID() == id {
			return row, nil
		}
	}

	var zero T
	return zero, fmt.Errorf("запись с ID %s: %w", id, models.ErrNotFound)
}

func (t *Table[T]) Insert(ctx context.Context, d models.Draft) (T, error) {
	t.mu.Lock()
	t.calls++
	err := t.WriteErr
	t.mu.Unlock()

	if err != nil {
		var zero T
		return zero, err
	}
	return t.insert(d)
}

func (t *Table[T]) insert(d models.Draft) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	row := t.build(uuid.New().String(), t.base.Add(time.Duration(t.seq)*time.Second), d)
	t.rows = append(t.rows, row)
	return row, nil
}

func (t *Table[T]) Update(ctx context.Context, actorID, id string, patch models.Patch) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++

	if t.WriteErr != nil {
		return t.WriteErr
	}

	for i, row := range t.rows {
		if row.GetID() == id && row.GetAuthorID() == actorID {
			t.rows[i] = t.apply(row, patch)
			return nil
		}
	}
	return fmt.Errorf("запись с ID %s: %w", id, models.ErrNotFound)
}

func (t *Table[T]) Delete(ctx context.Context, actorID, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++

	if t.WriteErr != nil {
		return t.WriteErr
	}

	for i, row := range t.rows {
		if row.GetID() == id && row.GetAuthorID() == actorID {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("запись с ID %s: %w", id, models.ErrNotFound)
}
