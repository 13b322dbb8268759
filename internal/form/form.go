// Package form implements the create/edit flow for posts and comments:
// validate, optionally upload an image, then write through the list state.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cacoblog/internal/models"
	"cacoblog/internal/store"

	"github.com/go-playground/validator/v10"
)

var ErrBusy = errors.New("форма уже отправляется")

type Kind int

const (
	KindPost Kind = iota
	KindComment
)

func (k Kind) String() string {
	if k == KindComment {
		return "comment"
	}
	return "post"
}

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Input is what the user submitted. Image is nil when no new file was chosen.
type Input struct {
	Title   string
	Content string
	Image   *models.ImageFile
}

type postFields struct {
	Title   string `validate:"required"`
	Content string `validate:"required"`
}

type commentFields struct {
	Content string `validate:"required"`
}

type Uploader interface {
	Upload(ctx context.Context, file models.ImageFile, ownerID string) (*models.UploadedImage, error)
	Remove(ctx context.Context, objectPath string) error
}

// UploadObserver is told the outcome of every image upload attempt.
type UploadObserver interface {
	ObserveUpload(kind, outcome string)
}

type Config struct {
	Logger   *slog.Logger
	Observer UploadObserver
}

type Form[T models.Item] struct {
	mu       sync.Mutex
	kind     Kind
	list     *store.ListState[T]
	uploader Uploader
	validate *validator.Validate
	log      *slog.Logger
	observer UploadObserver

	state   State
	outcome State
	lastErr error
}

func New[T models.Item](kind Kind, list *store.ListState[T], uploader Uploader, cfg Config) *Form[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Form[T]{
		kind:     kind,
		list:     list,
		uploader: uploader,
		validate: validator.New(),
		log:      cfg.Logger.With(slog.String("form", kind.String())),
		observer: cfg.Observer,
		state:    StateIdle,
		outcome:  StateIdle,
	}
}

func (f *Form[T]) Kind() Kind { return f.kind }

func (f *Form[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Outcome reports how the last submission ended and its error, if any.
func (f *Form[T]) Outcome() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome, f.lastErr
}

// Validate checks the required fields after trimming.
func (f *Form[T]) Validate(in Input) error {
	var target interface{}
	if f.kind == KindComment {
		target = commentFields{Content: strings.TrimSpace(in.Content)}
	} else {
		target = postFields{Title: strings.TrimSpace(in.Title), Content: strings.TrimSpace(in.Content)}
	}

	err := f.validate.Struct(target)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(messages, "; "))
}

// Submit runs one submission. Nothing reaches the network when validation
// fails. A new image is uploaded before the single insert or update; without
// one the editing item's image URL is kept. When the write fails the
// uploaded object is removed again.
func (f *Form[T]) Submit(ctx context.Context, session *models.Session, in Input) (models.Page[T], error) {
	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return f.list.Snapshot(), ErrBusy
	}
	f.state = StateSubmitting
	f.mu.Unlock()

	page, err := f.submit(ctx, session, in)

	f.mu.Lock()
	f.state = StateIdle
	f.lastErr = err
	var writeErr *store.WriteError
	switch {
	case err == nil:
		f.outcome = StateSucceeded
	case errors.Is(err, store.ErrSuperseded):
		f.outcome = StateSucceeded
		f.lastErr = nil
		err = nil
	case errors.As(err, &writeErr), errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrUpload), errors.Is(err, models.ErrNotAuthenticated):
		f.outcome = StateFailed
	default:
		// the write went through; only the re-fetch failed
		f.outcome = StateSucceeded
	}
	f.mu.Unlock()

	return page, err
}

func (f *Form[T]) submit(ctx context.Context, session *models.Session, in Input) (models.Page[T], error) {
	if err := f.Validate(in); err != nil {
		return f.list.Snapshot(), err
	}
	if session == nil || session.UserID == "" {
		return f.list.Snapshot(), models.ErrNotAuthenticated
	}

	fields := models.Patch{
		Title:   strings.TrimSpace(in.Title),
		Content: strings.TrimSpace(in.Content),
	}
	if f.kind == KindComment {
		fields.Title = ""
	}
	if editing := f.list.Editing(); editing != nil {
		fields.ImageURL = (*editing).GetImageURL()
	}

	var uploaded *models.UploadedImage
	if in.Image != nil {
		image, err := f.uploader.Upload(ctx, *in.Image, session.UserID)
		if err != nil {
			f.observe("error")
			f.log.Warn("ошибка загрузки изображения",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()))
			return f.list.Snapshot(), err
		}
		f.observe("ok")
		uploaded = image
		fields.ImageURL = image.URL
	}

	page, err := f.list.CreateOrUpdate(ctx, session, fields)

	var writeErr *store.WriteError
	if err != nil && errors.As(err, &writeErr) && uploaded != nil {
		if rmErr := f.uploader.Remove(ctx, uploaded.Path); rmErr != nil {
			f.log.Error("не удалось удалить загруженное изображение",
				slog.String("path", uploaded.Path),
				slog.String("error", rmErr.Error()))
		} else {
			f.observe("removed")
		}
	}

	return page, err
}

func (f *Form[T]) observe(outcome string) {
	if f.observer != nil {
		f.observer.ObserveUpload(f.kind.String(), outcome)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Title":
		return "заполните заголовок"
	case "Content":
		return "заполните текст"
	default:
		return fe.Field() + ": " + fe.Tag()
	}
}
