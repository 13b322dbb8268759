package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cacoblog/internal/gateway"
	"cacoblog/internal/models"
)

// ErrSuperseded is returned by a fetch whose result was dropped because a
// newer fetch or a scope change happened while it was in flight.
var ErrSuperseded = errors.New("запрос страницы устарел")

// WriteError marks a failed insert, update or delete. Errors from the
// re-fetch that follows a successful write are returned unwrapped.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }

// FetchObserver is told the outcome of every page fetch: ok, error or stale.
type FetchObserver interface {
	ObserveFetch(list, outcome string)
}

type ListConfig struct {
	Name     string
	PageSize int
	Logger   *slog.Logger
	Observer FetchObserver
}

// ListState is a server-backed window over one ordered collection.
//
// Create and update are authoritative: nothing is inserted locally and the
// affected page is re-fetched. Delete is optimistic: the row is dropped
// from the held page at once and the page is re-fetched only when the
// viewer would otherwise be left past the last page.
type ListState[T models.Item] struct {
	mu       sync.Mutex
	table    gateway.Table[T]
	name     string
	pageSize int
	scope    models.Filter
	page     models.Page[T]
	loaded   bool
	seq      uint64
	subs     map[int]func(models.Page[T])
	nextID   int
	log      *slog.Logger
	observer FetchObserver
}

func NewListState[T models.Item](table gateway.Table[T], cfg ListConfig) *ListState[T] {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &ListState[T]{
		table:    table,
		name:     cfg.Name,
		pageSize: cfg.PageSize,
		subs:     make(map[int]func(models.Page[T])),
		log:      cfg.Logger.With(slog.String("list", cfg.Name)),
		observer: cfg.Observer,
	}
	s.page = s.emptyPage()
	return s
}

func (s *ListState[T]) emptyPage() models.Page[T] {
	return models.Page[T]{
		Items:      []T{},
		PageNumber: 1,
		PageSize:   s.pageSize,
		TotalPages: 1,
	}
}

func (s *ListState[T]) PageSize() int { return s.pageSize }

// Snapshot returns a copy of the held page.
func (s *ListState[T]) Snapshot() models.Page[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ListState[T]) snapshotLocked() models.Page[T] {
	page := s.page
	page.Items = make([]T, len(s.page.Items))
	copy(page.Items, s.page.Items)
	if s.page.Editing != nil {
		editing := *s.page.Editing
		page.Editing = &editing
	}
	return page
}

func (s *ListState[T]) Subscribe(fn func(models.Page[T])) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *ListState[T]) notify() {
	s.mu.Lock()
	page := s.snapshotLocked()
	subs := make([]func(models.Page[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(page)
	}
}

// SetScope switches the filtered collection. A change clears the held page
// and invalidates fetches still in flight.
func (s *ListState[T]) SetScope(filter models.Filter) {
	s.mu.Lock()
	if s.scope == filter {
		s.mu.Unlock()
		return
	}
	s.scope = filter
	s.seq++
	s.loaded = false
	s.page = s.emptyPage()
	s.mu.Unlock()

	s.notify()
}

func (s *ListState[T]) Scope() models.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// SetEditing fills the editing slot; nil leaves create mode.
func (s *ListState[T]) SetEditing(item *T) {
	s.mu.Lock()
	if item == nil {
		s.page.Editing = nil
	} else {
		editing := *item
		s.page.Editing = &editing
	}
	s.mu.Unlock()

	s.notify()
}

func (s *ListState[T]) Editing() *T {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page.Editing == nil {
		return nil
	}
	editing := *s.page.Editing
	return &editing
}

// FetchPage loads one page newest first together with the exact total.
// Only the latest fetch is applied; an older one returns ErrSuperseded.
// On failure the previously held items stay in place.
func (s *ListState[T]) FetchPage(ctx context.Context, pageNumber int) (models.Page[T], error) {
	if pageNumber < 1 {
		pageNumber = 1
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	scope := s.scope
	s.page.Loading = true
	s.mu.Unlock()
	s.notify()

	from, to := PageRange(pageNumber, s.pageSize)
	result, err := s.table.Select(ctx, models.Query{
		Filter: scope,
		Order:  models.NewestFirst,
		Range:  &models.Range{From: from, To: to},
	})

	s.mu.Lock()
	if seq != s.seq {
		page := s.snapshotLocked()
		s.mu.Unlock()
		s.observe("stale")
		s.log.Debug("ответ устаревшего запроса отброшен", slog.Int("page", pageNumber))
		return page, ErrSuperseded
	}

	s.page.Loading = false
	if err != nil {
		page := s.snapshotLocked()
		s.mu.Unlock()
		s.notify()
		s.observe("error")
		s.log.Error("ошибка загрузки страницы",
			slog.Int("page", pageNumber),
			slog.String("error", err.Error()))
		return page, fmt.Errorf("ошибка загрузки страницы %d: %w", pageNumber, err)
	}

	s.page.Items = result.Items
	if s.page.Items == nil {
		s.page.Items = []T{}
	}
	s.page.PageNumber = pageNumber
	s.page.TotalCount = result.Count
	s.page.TotalPages = TotalPages(result.Count, s.pageSize)
	s.loaded = true
	page := s.snapshotLocked()
	s.mu.Unlock()

	s.notify()
	s.observe("ok")
	return page, nil
}

// Reload re-fetches the currently held page number.
func (s *ListState[T]) Reload(ctx context.Context) (models.Page[T], error) {
	s.mu.Lock()
	current := s.page.PageNumber
	s.mu.Unlock()

	return s.FetchPage(ctx, current)
}

// CreateOrUpdate writes fields to the gateway: an update of the item in the
// editing slot, or an insert authored by session. Afterwards it re-fetches
// page 1 for inserts and the current page for updates, and leaves the
// editing slot empty.
func (s *ListState[T]) CreateOrUpdate(ctx context.Context, session *models.Session, fields models.Patch) (models.Page[T], error) {
	if session == nil || session.UserID == "" {
		return s.Snapshot(), &WriteError{Err: models.ErrNotAuthenticated}
	}

	s.mu.Lock()
	editing := s.page.Editing
	current := s.page.PageNumber
	scope := s.scope
	s.mu.Unlock()

	target := 1
	if editing != nil {
		item := *editing
		err := s.table.Update(ctx, session.UserID, item.GetID(), fields)
		if err != nil {
			return s.Snapshot(), &WriteError{Err: err}
		}
		target = current
		s.log.Info("запись обновлена", slog.String("id", item.GetID()), slog.String("user_id", session.UserID))
	} else {
		created, err := s.table.Insert(ctx, models.Draft{
			Title:    fields.Title,
			Content:  fields.Content,
			ImageURL: fields.ImageURL,
			UserID:   session.UserID,
			Username: session.Username,
			PostID:   scope.PostID,
		})
		if err != nil {
			return s.Snapshot(), &WriteError{Err: err}
		}
		s.log.Info("запись создана", slog.String("id", created.GetID()), slog.String("user_id", session.UserID))
	}

	s.SetEditing(nil)
	return s.FetchPage(ctx, target)
}

// Delete removes id on the gateway and then from the held page. When the
// current page no longer exists it moves to the new last page and fetches it.
func (s *ListState[T]) Delete(ctx context.Context, session *models.Session, id string) (models.Page[T], error) {
	if session == nil || session.UserID == "" {
		return s.Snapshot(), &WriteError{Err: models.ErrNotAuthenticated}
	}

	if err := s.table.Delete(ctx, session.UserID, id); err != nil {
		return s.Snapshot(), &WriteError{Err: err}
	}
	s.log.Info("запись удалена", slog.String("id", id), slog.String("user_id", session.UserID))

	s.mu.Lock()
	items := make([]T, 0, len(s.page.Items))
	for _, item := range s.page.Items {
		if item.GetID() != id {
			items = append(items, item)
		}
	}
	s.page.Items = items
	if s.page.TotalCount > 0 {
		s.page.TotalCount--
	}
	s.page.TotalPages = TotalPages(s.page.TotalCount, s.pageSize)
	if s.page.Editing != nil && (*s.page.Editing).GetID() == id {
		s.page.Editing = nil
	}
	current := s.page.PageNumber
	total := s.page.TotalPages
	s.mu.Unlock()
	s.notify()

	if current > total {
		return s.FetchPage(ctx, total)
	}
	return s.Snapshot(), nil
}

// Pagination describes the controls for the held page.
func (s *ListState[T]) Pagination() Pagination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewPagination(s.page.PageNumber, s.page.TotalPages)
}

func (s *ListState[T]) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveFetch(s.name, outcome)
	}
}
