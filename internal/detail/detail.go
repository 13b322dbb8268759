// Package detail loads a single post or comment for display.
package detail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"cacoblog/internal/gateway"
	"cacoblog/internal/models"
)

type Status int

const (
	StatusPending Status = iota
	StatusLoaded
	StatusNotFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

type Messages struct {
	NotFound string
	Failed   string
}

var PostMessages = Messages{
	NotFound: "Пост не найден. Возможно, он был удален.",
	Failed:   "Не удалось загрузить пост. Попробуйте обновить страницу.",
}

type View[T models.Item] struct {
	table    gateway.Table[T]
	messages Messages
	log      *slog.Logger

	status Status
	item   T
	err    error
}

func New[T models.Item](table gateway.Table[T], messages Messages, log *slog.Logger) *View[T] {
	if log == nil {
		log = slog.Default()
	}
	return &View[T]{table: table, messages: messages, log: log}
}

// Load fetches exactly one item. An empty id is treated as not found.
func (v *View[T]) Load(ctx context.Context, id string) Status {
	var zero T
	v.item = zero
	v.err = nil

	if id == "" {
		v.status = StatusNotFound
		return v.status
	}

	item, err := v.table.GetByID(ctx, id)
	switch {
	case err == nil:
		v.item = item
		v.status = StatusLoaded
	case errors.Is(err, models.ErrNotFound):
		v.status = StatusNotFound
	default:
		v.err = err
		v.status = StatusFailed
		v.log.Error("ошибка загрузки записи", slog.String("id", id), slog.String("error", err.Error()))
	}

	return v.status
}

func (v *View[T]) Status() Status { return v.status }
func (v *View[T]) Item() T        { return v.item }
func (v *View[T]) Err() error     { return v.err }

// Message is the user-facing text for the terminal state.
func (v *View[T]) Message() string {
	switch v.status {
	case StatusNotFound:
		return v.messages.NotFound
	case StatusFailed:
		return v.messages.Failed
	default:
		return ""
	}
}

// CanEdit reports whether session belongs to the author of the loaded item.
func (v *View[T]) CanEdit(session *models.Session) bool {
	return v.status == StatusLoaded && CanEdit(session, v.item)
}

// CanEdit is the author-only rule shared by lists and detail pages.
func CanEdit(session *models.Session, item models.Item) bool {
	return session != nil && session.UserID != "" && session.UserID == item.GetAuthorID()
}

func (v *View[T]) Delete(ctx context.Context, session *models.Session) error {
	if v.status != StatusLoaded {
		return fmt.Errorf("удаление: %w", models.ErrNotFound)
	}
	if !v.CanEdit(session) {
		return models.ErrForbidden
	}

	if err := v.table.Delete(ctx, session.UserID, v.item.GetID()); err != nil {
		return err
	}

	v.log.Info("запись удалена со страницы просмотра",
		slog.String("id", v.item.GetID()),
		slog.String("user_id", session.UserID))

	var zero T
	v.item = zero
	v.status = StatusNotFound
	return nil
}

// ReturnPath is the list URL to go back to, keeping the page number the
// viewer came from when it is a positive integer.
func ReturnPath(from string) string {
	page, err := strconv.Atoi(from)
	if err != nil || page < 1 {
		return "/"
	}
	return "/?page=" + strconv.Itoa(page)
}
