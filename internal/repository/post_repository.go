package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cacoblog/internal/gateway"
	"cacoblog/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var _ gateway.Table[models.Post] = (*PostRepositoryImpl)(nil)

const postColumns = `id, created_at, title, content, user_id, username, COALESCE(image_url, '') AS image_url`

type PostRepositoryImpl struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) *PostRepositoryImpl {
	return &PostRepositoryImpl{db: db}
}

// Select returns one window of posts and the exact count of all posts.
func (r *PostRepositoryImpl) Select(ctx context.Context, q models.Query) (models.Result[models.Post], error) {
	var result models.Result[models.Post]

	orderBy, err := orderClause(q.Order)
	if err != nil {
		return result, err
	}

	query := `SELECT ` + postColumns + ` FROM posts ORDER BY ` + orderBy
	var args []interface{}
	if q.Range != nil {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, q.Range.Limit(), q.Range.From)
	}

	posts := []models.Post{}
	err = inSnapshot(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &result.Count, `SELECT COUNT(*) FROM posts`); err != nil {
			return fmt.Errorf("ошибка при подсчете постов: %w", err)
		}
		if err := tx.SelectContext(ctx, &posts, query, args...); err != nil {
			return fmt.Errorf("ошибка при получении постов: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Result[models.Post]{}, err
	}

	result.Items = posts
	return result, nil
}

func (r *PostRepositoryImpl) GetByID(ctx context.Context, postID string) (models.Post, error) {
	var post models.Post

	if _, err := uuid.Parse(postID); err != nil {
		return post, fmt.Errorf("пост с ID %s: %w", postID, models.ErrNotFound)
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	err := r.db.GetContext(ctx, &post, query, postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return post, fmt.Errorf("пост с ID %s: %w", postID, models.ErrNotFound)
		}
		return post, fmt.Errorf("ошибка при получении поста: %w", err)
	}

	return post, nil
}

// Insert stores a new post; id and created_at are assigned here and by the database.
func (r *PostRepositoryImpl) Insert(ctx context.Context, row models.Draft) (models.Post, error) {
	query := `
		INSERT INTO posts (id, title, content, user_id, username, image_url)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING ` + postColumns

	var post models.Post
	err := r.db.GetContext(ctx, &post, query,
		uuid.New().String(),
		row.Title,
		row.Content,
		row.UserID,
		row.Username,
		row.ImageURL,
	)
	if err != nil {
		return post, fmt.Errorf("ошибка при создании поста: %w", err)
	}

	return post, nil
}

func (r *PostRepositoryImpl) Update(ctx context.Context, actorID, postID string, patch models.Patch) error {
	if _, err := uuid.Parse(postID); err != nil {
		return fmt.Errorf("пост с ID %s: %w", postID, models.ErrNotFound)
	}

	query := `
		UPDATE posts SET
			title = $1,
			content = $2,
			image_url = NULLIF($3, '')
		WHERE id = $4 AND user_id = $5
	`

	result, err := r.db.ExecContext(ctx, query, patch.Title, patch.Content, patch.ImageURL, postID, actorID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении поста: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка при проверке обновленных строк: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("пост не найден или у вас нет прав на его изменение: %w", models.ErrNotFound)
	}

	return nil
}

// Delete removes a post owned by actorID; its comments go with it (ON DELETE CASCADE).
func (r *PostRepositoryImpl) Delete(ctx context.Context, actorID, postID string) error {
	if _, err := uuid.Parse(postID); err != nil {
		return fmt.Errorf("пост с ID %s: %w", postID, models.ErrNotFound)
	}

	query := `DELETE FROM posts WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, postID, actorID)
	if err != nil {
		return fmt.Errorf("ошибка при удалении поста: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка при проверке удаленных строк: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("пост не найден или у вас нет прав на его удаление: %w", models.ErrNotFound)
	}

	return nil
}
