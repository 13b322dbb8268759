package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cacoblog/internal/gateway"
	"cacoblog/internal/models"

	"github.com/jmoiron/sqlx"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User, password string) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	VerifyPassword(ctx context.Context, email, password string) (*models.User, error)
	UpdateRefreshToken(ctx context.Context, userID, refreshToken string, expiryTime time.Time) error
	GetUserByRefreshToken(ctx context.Context, refreshToken string) (*models.User, error)
}

type SchemaRepository interface {
	MissingTables(ctx context.Context) ([]string, error)
}

type Repository struct {
	User    UserRepository
	Post    gateway.Table[models.Post]
	Comment gateway.Table[models.Comment]
	Schema  SchemaRepository
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		User:    NewUserRepository(db),
		Post:    NewPostRepository(db),
		Comment: NewCommentRepository(db),
		Schema:  NewSchemaRepository(db),
	}
}

// orderClause whitelists sortable columns. The id tiebreak keeps pages
// stable when rows share a timestamp.
func orderClause(order models.Order) (string, error) {
	column := order.Column
	if column == "" {
		column = "created_at"
	}

	switch column {
	case "created_at":
	default:
		return "", fmt.Errorf("сортировка по полю %s не поддерживается", column)
	}

	direction := "ASC"
	if order.Desc {
		direction = "DESC"
	}

	return fmt.Sprintf("%s %s, id %s", column, direction, direction), nil
}

// inSnapshot runs fn in a read-only repeatable-read transaction so a count
// and the page read after it see the same rows.
func inSnapshot(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("ошибка при открытии транзакции: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка при завершении транзакции: %w", err)
	}
	return nil
}
