package service

import (
	"log/slog"

	"cacoblog/internal/config"
	"cacoblog/internal/gateway"
	"cacoblog/internal/repository"
)

type Service struct {
	Auth  gateway.AuthService
	Image ImageService
}

func NewService(rep *repository.Repository, cfg *config.Config, storage gateway.Storage, log *slog.Logger) *Service {
	return &Service{
		Auth:  NewAuthService(rep.User, cfg),
		Image: NewImageService(storage, cfg.MaxUploadSize, log),
	}
}
