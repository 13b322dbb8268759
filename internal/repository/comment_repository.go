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

var _ gateway.Table[models.Comment] = (*CommentRepositoryImpl)(nil)

const commentColumns = `id, created_at, content, user_id, username, COALESCE(image_url, '') AS image_url, post_id`

type CommentRepositoryImpl struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) *CommentRepositoryImpl {
	return &CommentRepositoryImpl{db: db}
}

func (r *CommentRepositoryImpl) Select(ctx context.Context, q models.Query) (models.Result[models.Comment], error) {
	var result models.Result[models.Comment]

	orderBy, err := orderClause(q.Order)
	if err != nil {
		return result, err
	}

	where := ""
	var args []interface{}
	if q.Filter.PostID != "" {
		if _, err := uuid.Parse(q.Filter.PostID); err != nil {
			result.Items = []models.Comment{}
			return result, nil
		}
		where = ` WHERE post_id = $1`
		args = append(args, q.Filter.PostID)
	}

	countArgs := args
	query := `SELECT ` + commentColumns + ` FROM comments` + where + ` ORDER BY ` + orderBy
	if q.Range != nil {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, q.Range.Limit(), q.Range.From)
	}

	comments := []models.Comment{}
	err = inSnapshot(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &result.Count, `SELECT COUNT(*) FROM comments`+where, countArgs...); err != nil {
			return fmt.Errorf("ошибка при подсчете комментариев: %w", err)
		}
		if err := tx.SelectContext(ctx, &comments, query, args...); err != nil {
			return fmt.Errorf("ошибка при получении комментариев: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Result[models.Comment]{}, err
	}

	result.Items = comments
	return result, nil
}

func (r *CommentRepositoryImpl) GetByID(ctx context.Context, commentID string) (models.Comment, error) {
	var comment models.Comment

	if _, err := uuid.Parse(commentID); err != nil {
		return comment, fmt.Errorf("комментарий с ID %s: %w", commentID, models.ErrNotFound)
	}

	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	err := r.db.GetContext(ctx, &comment, query, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return comment, fmt.Errorf("комментарий с ID %s: %w", commentID, models.ErrNotFound)
		}
		return comment, fmt.Errorf("ошибка при получении комментария: %w", err)
	}

	return comment, nil
}

func (r *CommentRepositoryImpl) Insert(ctx context.Context, row models.Draft) (models.Comment, error) {
	var comment models.Comment

	if _, err := uuid.Parse(row.PostID); err != nil {
		return comment, fmt.Errorf("пост с ID %s: %w", row.PostID, models.ErrNotFound)
	}

	query := `
		INSERT INTO comments (id, content, user_id, username, image_url, post_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING ` + commentColumns

	err := r.db.GetContext(ctx, &comment, query,
		uuid.New().String(),
		row.Content,
		row.UserID,
		row.Username,
		row.ImageURL,
		row.PostID,
	)
	if err != nil {
		return comment, fmt.Errorf("ошибка при создании комментария: %w", err)
	}

	return comment, nil
}

// Update patches content and image; comments have no title.
func (r *CommentRepositoryImpl) Update(ctx context.Context, actorID, commentID string, patch models.Patch) error {
	if _, err := uuid.Parse(commentID); err != nil {
		return fmt.Errorf("комментарий с ID %s: %w", commentID, models.ErrNotFound)
	}

	query := `
		UPDATE comments SET
			content = $1,
			image_url = NULLIF($2, '')
		WHERE id = $3 AND user_id = $4
	`

	result, err := r.db.ExecContext(ctx, query, patch.Content, patch.ImageURL, commentID, actorID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении комментария: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка при проверке обновленных строк: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("комментарий не найден или у вас нет прав на его изменение: %w", models.ErrNotFound)
	}

	return nil
}

func (r *CommentRepositoryImpl) Delete(ctx context.Context, actorID, commentID string) error {
	if _, err := uuid.Parse(commentID); err != nil {
		return fmt.Errorf("комментарий с ID %s: %w", commentID, models.ErrNotFound)
	}

	query := `DELETE FROM comments WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, commentID, actorID)
	if err != nil {
		return fmt.Errorf("ошибка при удалении комментария: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка при проверке удаленных строк: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("комментарий не найден или у вас нет прав на его удаление: %w", models.ErrNotFound)
	}

	return nil
}
