// Package client assembles the per-visitor blog client and keeps a bounded
// registry of them.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cacoblog/internal/form"
	"cacoblog/internal/gateway"
	"cacoblog/internal/metrics"
	"cacoblog/internal/models"
	"cacoblog/internal/store"
)

type Deps struct {
	Auth     gateway.AuthService
	Posts    gateway.Table[models.Post]
	Comments gateway.Table[models.Comment]
	Uploader form.Uploader
	PageSize int
	Logger   *slog.Logger
	Metrics  *metrics.Collector
}

// Client is one visitor's state: session, both lists and both forms.
// Lock serializes the visitor's actions.
type Client struct {
	sync.Mutex

	ID          string
	Auth        *gateway.AuthClient
	Session     *store.SessionStore
	Posts       *store.ListState[models.Post]
	Comments    *store.ListState[models.Comment]
	PostForm    *form.Form[models.Post]
	CommentForm *form.Form[models.Comment]

	unbind func()
}

func New(ctx context.Context, id string, deps Deps) (*Client, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("visitor_id", id))

	var fetchObserver store.FetchObserver
	var uploadObserver form.UploadObserver
	if deps.Metrics != nil {
		fetchObserver = deps.Metrics
		uploadObserver = deps.Metrics
	}

	c := &Client{
		ID:      id,
		Auth:    gateway.NewAuthClient(deps.Auth, log),
		Session: store.NewSessionStore(),
		Posts: store.NewListState[models.Post](deps.Posts, store.ListConfig{
			Name:     "posts",
			PageSize: deps.PageSize,
			Logger:   log,
			Observer: fetchObserver,
		}),
		Comments: store.NewListState[models.Comment](deps.Comments, store.ListConfig{
			Name:     "comments",
			PageSize: deps.PageSize,
			Logger:   log,
			Observer: fetchObserver,
		}),
	}

	formCfg := form.Config{Logger: log, Observer: uploadObserver}
	c.PostForm = form.New[models.Post](form.KindPost, c.Posts, deps.Uploader, formCfg)
	c.CommentForm = form.New[models.Comment](form.KindComment, c.Comments, deps.Uploader, formCfg)

	unbind, err := store.BindSession(ctx, c.Auth, c.Session)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации клиента: %w", err)
	}
	c.unbind = unbind

	// a different user must not inherit the previous editing slots
	var lastUser string
	c.Session.Subscribe(func(session *models.Session) {
		userID := ""
		if session != nil {
			userID = session.UserID
		}
		if userID != lastUser {
			c.Posts.SetEditing(nil)
			c.Comments.SetEditing(nil)
		}
		lastUser = userID
	})

	return c, nil
}

// Close stops mirroring auth changes into the session store.
func (c *Client) Close() {
	if c.unbind != nil {
		c.unbind()
	}
}
