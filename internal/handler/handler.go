package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"cacoblog/internal/client"
	"cacoblog/internal/gateway"
	"cacoblog/internal/metrics"
	"cacoblog/internal/middleware"
	"cacoblog/internal/models"
	"cacoblog/internal/repository"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecker reports whether the database answers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Deps struct {
	Registry      *client.Registry
	Sessions      *scs.SessionManager
	Posts         gateway.Table[models.Post]
	Comments      gateway.Table[models.Comment]
	DB            HealthChecker
	Schema        repository.SchemaRepository
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer
	AuthLimiter   *middleware.RateLimiter
	MaxUploadSize int64
	Logger        *slog.Logger
}

type Handlers struct {
	registry    *client.Registry
	sessions    *scs.SessionManager
	posts       gateway.Table[models.Post]
	comments    gateway.Table[models.Comment]
	db          HealthChecker
	schema      repository.SchemaRepository
	metrics     *metrics.Collector
	gatherer    prometheus.Gatherer
	authLimiter *middleware.RateLimiter
	maxUpload   int64
	templates   map[string]*template.Template
	log         *slog.Logger
}

func NewHandlers(deps Deps) (*Handlers, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Handlers{
		registry:    deps.Registry,
		sessions:    deps.Sessions,
		posts:       deps.Posts,
		comments:    deps.Comments,
		db:          deps.DB,
		schema:      deps.Schema,
		metrics:     deps.Metrics,
		gatherer:    deps.Gatherer,
		authLimiter: deps.AuthLimiter,
		maxUpload:   deps.MaxUploadSize,
		templates:   templates,
		log:         log,
	}, nil
}

// Routes builds the full handler: router, visitor client, cookie session
// and the outer recovery and logging layers.
func (h *Handlers) Routes() http.Handler {
	r := mux.NewRouter()
	if h.metrics != nil {
		r.Use(middleware.Metrics(h.metrics))
	}

	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	if h.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(h.gatherer)).Methods(http.MethodGet)
	}

	app := r.NewRoute().Subrouter()
	app.Use(h.visitor)

	app.HandleFunc("/", h.Home).Methods(http.MethodGet)
	app.HandleFunc("/login", h.LoginPage).Methods(http.MethodGet)
	login := http.Handler(http.HandlerFunc(h.Login))
	if h.authLimiter != nil {
		login = h.authLimiter.Limit(login)
	}
	app.Handle("/login", login).Methods(http.MethodPost)
	app.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	app.HandleFunc("/write", h.WritePage).Methods(http.MethodGet)
	app.HandleFunc("/write", h.Write).Methods(http.MethodPost)

	app.HandleFunc("/post/{id}", h.PostPage).Methods(http.MethodGet)
	app.HandleFunc("/post/{id}/delete", h.DeletePost).Methods(http.MethodPost)
	app.HandleFunc("/posts/{id}/delete", h.DeleteFromList).Methods(http.MethodPost)
	app.HandleFunc("/post/{id}/comments", h.SaveComment).Methods(http.MethodPost)
	app.HandleFunc("/post/{id}/comments/{cid}/delete", h.DeleteComment).Methods(http.MethodPost)

	return middleware.Chain(r,
		middleware.Recovery(h.log),
		middleware.Logging(h.log),
		middleware.SecurityHeaders,
		h.sessions.LoadAndSave,
	)
}
