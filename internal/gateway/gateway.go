// Package gateway defines the contracts of the hosted backend the blog
// client talks to: table CRUD, session lifecycle and object storage.
package gateway

import (
	"context"
	"io"

	"cacoblog/internal/models"
)

// Table is table-scoped CRUD over one collection. Update and Delete only
// touch rows owned by actorID and report models.ErrNotFound otherwise.
type Table[T models.Item] interface {
	Select(ctx context.Context, q models.Query) (models.Result[T], error)
	GetByID(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, row models.Draft) (T, error)
	Update(ctx context.Context, actorID, id string, patch models.Patch) error
	Delete(ctx context.Context, actorID, id string) error
}

// AuthService is the server side of the session lifecycle.
type AuthService interface {
	SignUp(ctx context.Context, email, password, username string) (*models.Session, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, userID string) error
	SessionFromToken(accessToken string) (*models.Session, error)
}

type UploadOptions struct {
	ContentType string
	Upsert      bool
}

type Storage interface {
	Upload(ctx context.Context, objectPath string, file io.Reader, size int64, opts UploadOptions) error
	PublicURL(objectPath string) string
	Remove(ctx context.Context, objectPath string) error
}
