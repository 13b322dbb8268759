package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cacoblog/cmd/app"
	"cacoblog/internal/config"
	"cacoblog/internal/logger"
)

func main() {
	// setting up config
	cfg := config.LoadConfig()
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	if cfg.JWTSecretKey == "" {
		log.Error("JWT_SECRET_KEY не установлен в .env файле")
		os.Exit(1)
	}

	db, handler, err := app.App(cfg, log)
	if err != nil {
		log.Error("ошибка инициализации приложения", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.CloseDB()

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("сервер запущен",
			slog.String("addr", addr),
			slog.String("database", cfg.DB.DbNAME),
			slog.String("bucket", cfg.MinIO.BucketName))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ошибка запуска сервера", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("останавливаем сервер")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("ошибка остановки сервера", slog.String("error", err.Error()))
	}
}
