package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cacoblog/internal/client"
	"cacoblog/internal/config"
	"cacoblog/internal/database"
	handlers "cacoblog/internal/handler"
	"cacoblog/internal/metrics"
	"cacoblog/internal/middleware"
	"cacoblog/internal/repository"
	"cacoblog/internal/service"
	"cacoblog/internal/storage"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App wires the database, object storage and per-visitor clients into the
// HTTP handler. The caller closes the returned database.
func App(cfg *config.Config, log *slog.Logger) (*database.DB, http.Handler, error) {
	// connection DB
	db, err := database.ConnectDB(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	// connection MinIO
	minioClient, err := storage.NewMinIOClient(cfg)
	if err != nil {
		db.CloseDB()
		return nil, nil, fmt.Errorf("не удалось инициализировать MinIO: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := minioClient.EnsureBucket(ctx); err != nil {
		db.CloseDB()
		return nil, nil, err
	}

	// enabling dependencies
	repo := repository.NewRepository(db.DB)
	services := service.NewService(repo, cfg, minioClient, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	registry, err := client.NewRegistry(cfg.ClientCacheSize, client.Deps{
		Auth:     services.Auth,
		Posts:    repo.Post,
		Comments: repo.Comment,
		Uploader: services.Image,
		PageSize: cfg.PageSize,
		Logger:   log,
		Metrics:  collector,
	})
	if err != nil {
		db.CloseDB()
		return nil, nil, err
	}

	sessions := scs.New()
	sessions.Lifetime = cfg.Session.Lifetime
	sessions.Cookie.Name = "cacoblog_session"
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.Secure = cfg.Session.CookieSecure
	sessions.Cookie.SameSite = http.SameSiteLaxMode

	h, err := handlers.NewHandlers(handlers.Deps{
		Registry:      registry,
		Sessions:      sessions,
		Posts:         repo.Post,
		Comments:      repo.Comment,
		DB:            db,
		Schema:        repo.Schema,
		Metrics:       collector,
		Gatherer:      reg,
		AuthLimiter:   middleware.NewRateLimiter(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst, log),
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        log,
	})
	if err != nil {
		db.CloseDB()
		return nil, nil, err
	}

	return db, h.Routes(), nil
}
