package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cacoblog/internal/gateway"
	"cacoblog/internal/models"
	"cacoblog/internal/storage"

	"github.com/gabriel-vasile/mimetype"
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type ImageService interface {
	Upload(ctx context.Context, file models.ImageFile, ownerID string) (*models.UploadedImage, error)
	Remove(ctx context.Context, objectPath string) error
}

type imageService struct {
	storage gateway.Storage
	maxSize int64
	log     *slog.Logger
	now     func() time.Time
}

func NewImageService(storage gateway.Storage, maxSize int64, log *slog.Logger) ImageService {
	return &imageService{
		storage: storage,
		maxSize: maxSize,
		log:     log,
		now:     time.Now,
	}
}

// Upload sniffs the file, stores it under the owner's directory and
// returns its public URL. Any failure wraps models.ErrUpload.
func (s *imageService) Upload(ctx context.Context, file models.ImageFile, ownerID string) (*models.UploadedImage, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: %w", models.ErrUpload, models.ErrNotAuthenticated)
	}
	if file.Reader == nil {
		return nil, fmt.Errorf("%w: файл не передан", models.ErrUpload)
	}
	if s.maxSize > 0 && file.Size > s.maxSize {
		return nil, fmt.Errorf("%w: файл больше %d байт", models.ErrUpload, s.maxSize)
	}

	// mimetype reads only the header; it is replayed in front of the rest.
	header := make([]byte, 3072)
	n, err := io.ReadFull(file.Reader, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("%w: ошибка чтения файла: %v", models.ErrUpload, err)
	}
	header = header[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: пустой файл", models.ErrUpload)
	}

	detected := mimetype.Detect(header)
	if !mimetype.EqualsAny(detected.String(), allowedImageTypes...) {
		return nil, fmt.Errorf("%w: неподдерживаемый тип файла %s", models.ErrUpload, detected.String())
	}

	objectPath := storage.ObjectPath(ownerID, file.Name, detected.Extension(), s.now())
	body := io.MultiReader(bytes.NewReader(header), file.Reader)

	size := file.Size
	if size <= 0 {
		size = -1
	}

	err = s.storage.Upload(ctx, objectPath, body, size, gateway.UploadOptions{
		ContentType: detected.String(),
		Upsert:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpload, err)
	}

	s.log.Info("изображение загружено",
		slog.String("path", objectPath),
		slog.String("content_type", detected.String()),
		slog.Int64("size", file.Size))

	return &models.UploadedImage{
		Path: objectPath,
		URL:  s.storage.PublicURL(objectPath),
	}, nil
}

func (s *imageService) Remove(ctx context.Context, objectPath string) error {
	if err := s.storage.Remove(ctx, objectPath); err != nil {
		return fmt.Errorf("%w: %v", models.ErrUpload, err)
	}
	return nil
}
