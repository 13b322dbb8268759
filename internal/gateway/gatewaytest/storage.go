package gatewaytest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"cacoblog/internal/gateway"
	"cacoblog/internal/models"
	"cacoblog/internal/storage"
)

var _ gateway.Storage = (*Storage)(nil)

// Storage keeps uploaded objects in memory.
type Storage struct {
	mu      sync.Mutex
	objects map[string][]byte

	// UploadErr fails every Upload when set.
	UploadErr error
}

func NewStorage() *Storage {
	return &Storage{objects: make(map[string][]byte)}
}

func (s *Storage) Upload(ctx context.Context, objectPath string, file io.Reader, size int64, opts gateway.UploadOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UploadErr != nil {
		return s.UploadErr
	}
	if _, ok := s.objects[objectPath]; ok && !opts.Upsert {
		return fmt.Errorf("%s: %w", objectPath, storage.ErrObjectExists)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	s.objects[objectPath] = data
	return nil
}

func (s *Storage) PublicURL(objectPath string) string {
	return "http://storage.test/blog-images/" + objectPath
}

func (s *Storage) Remove(ctx context.Context, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[objectPath]; !ok {
		return fmt.Errorf("%s: %w", objectPath, models.ErrNotFound)
	}
	delete(s.objects, objectPath)
	return nil
}

// Paths lists stored object paths.
func (s *Storage) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.objects))
	for p := range s.objects {
		paths = append(paths, p)
	}
	return paths
}
