package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"cacoblog/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { sqlxDB.Close() })

	return sqlxDB, mock
}

var postRowColumns = []string{"id", "created_at", "title", "content", "user_id", "username", "image_url"}

func TestPostRepository_Select(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		query       models.Query
		setupMock   func(mock sqlmock.Sqlmock)
		expectCount int
		expectItems int
		expectError string
	}{
		{
			name:  "Вторая страница из шести постов",
			query: models.Query{Order: models.NewestFirst, Range: &models.Range{From: 5, To: 9}},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts`).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
				mock.ExpectQuery(`FROM posts ORDER BY created_at DESC, id DESC LIMIT \$1 OFFSET \$2`).
					WithArgs(5, 5).
					WillReturnRows(sqlmock.NewRows(postRowColumns).
						AddRow(uuid.New().String(), now, "Первый", "Текст", "u1", "alice", ""))
				mock.ExpectCommit()
			},
			expectCount: 6,
			expectItems: 1,
		},
		{
			name:  "Без диапазона",
			query: models.Query{Order: models.NewestFirst},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts`).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
				mock.ExpectQuery(`FROM posts ORDER BY created_at DESC, id DESC$`).
					WillReturnRows(sqlmock.NewRows(postRowColumns).
						AddRow(uuid.New().String(), now, "A", "a", "u1", "alice", "").
						AddRow(uuid.New().String(), now.Add(-time.Minute), "B", "b", "u1", "alice", "http://img/b.png"))
				mock.ExpectCommit()
			},
			expectCount: 2,
			expectItems: 2,
		},
		{
			name:  "Ошибка подсчета",
			query: models.Query{Order: models.NewestFirst},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts`).
					WillReturnError(errors.New("connection refused"))
				mock.ExpectRollback()
			},
			expectError: "ошибка при подсчете постов",
		},
		{
			name:  "Ошибка открытия транзакции",
			query: models.Query{Order: models.NewestFirst},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
			},
			expectError: "ошибка при открытии транзакции",
		},
		{
			name:        "Неподдерживаемая сортировка",
			query:       models.Query{Order: models.Order{Column: "title"}},
			setupMock:   func(mock sqlmock.Sqlmock) {},
			expectError: "не поддерживается",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			tc.setupMock(mock)

			repo := NewPostRepository(db)
			result, err := repo.Select(context.Background(), tc.query)

			if tc.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectError)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectCount, result.Count)
				assert.Len(t, result.Items, tc.expectItems)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostRepository_GetByID(t *testing.T) {
	postID := uuid.New().String()

	t.Run("Пост найден", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`FROM posts WHERE id = \$1`).
			WithArgs(postID).
			WillReturnRows(sqlmock.NewRows(postRowColumns).
				AddRow(postID, time.Now(), "Заголовок", "Текст", "u1", "alice", "http://img/1.jpg"))

		post, err := NewPostRepository(db).GetByID(context.Background(), postID)

		require.NoError(t, err)
		assert.Equal(t, postID, post.ID)
		assert.Equal(t, "alice", post.Username)
		assert.Equal(t, "http://img/1.jpg", post.ImageURL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Пост не найден", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`FROM posts WHERE id = \$1`).
			WithArgs(postID).
			WillReturnError(sql.ErrNoRows)

		_, err := NewPostRepository(db).GetByID(context.Background(), postID)

		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("Некорректный ID не доходит до БД", func(t *testing.T) {
		db, mock := setupMockDB(t)

		_, err := NewPostRepository(db).GetByID(context.Background(), "not-a-uuid")

		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Ошибка базы данных", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`FROM posts WHERE id = \$1`).
			WithArgs(postID).
			WillReturnError(errors.New("connection reset"))

		_, err := NewPostRepository(db).GetByID(context.Background(), postID)

		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrNotFound)
		assert.Contains(t, err.Error(), "ошибка при получении поста")
	})
}

func TestPostRepository_Insert(t *testing.T) {
	draft := models.Draft{
		Title:    "Заголовок",
		Content:  "Текст",
		UserID:   "u1",
		Username: "alice",
	}

	t.Run("Успешное создание поста", func(t *testing.T) {
		db, mock := setupMockDB(t)
		newID := uuid.New().String()
		mock.ExpectQuery(`INSERT INTO posts`).
			WithArgs(sqlmock.AnyArg(), "Заголовок", "Текст", "u1", "alice", "").
			WillReturnRows(sqlmock.NewRows(postRowColumns).
				AddRow(newID, time.Now(), "Заголовок", "Текст", "u1", "alice", ""))

		post, err := NewPostRepository(db).Insert(context.Background(), draft)

		require.NoError(t, err)
		assert.Equal(t, newID, post.ID)
		assert.False(t, post.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Ошибка при создании поста", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`INSERT INTO posts`).
			WillReturnError(errors.New("insert failed"))

		_, err := NewPostRepository(db).Insert(context.Background(), draft)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка при создании поста")
	})
}

func TestPostRepository_Update(t *testing.T) {
	postID := uuid.New().String()
	patch := models.Patch{Title: "Новый", Content: "Новый текст", ImageURL: "http://img/2.png"}

	t.Run("Успешное обновление", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE posts SET`).
			WithArgs("Новый", "Новый текст", "http://img/2.png", postID, "u1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewPostRepository(db).Update(context.Background(), "u1", postID, patch)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Чужой пост не обновляется", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE posts SET`).
			WithArgs("Новый", "Новый текст", "http://img/2.png", postID, "intruder").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewPostRepository(db).Update(context.Background(), "intruder", postID, patch)

		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestPostRepository_Delete(t *testing.T) {
	postID := uuid.New().String()

	t.Run("Успешное удаление", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`DELETE FROM posts WHERE id = \$1 AND user_id = \$2`).
			WithArgs(postID, "u1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, NewPostRepository(db).Delete(context.Background(), "u1", postID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Пост не найден", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`DELETE FROM posts`).
			WithArgs(postID, "u1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewPostRepository(db).Delete(context.Background(), "u1", postID)

		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("Ошибка базы данных", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`DELETE FROM posts`).
			WillReturnError(errors.New("timeout"))

		err := NewPostRepository(db).Delete(context.Background(), "u1", postID)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка при удалении поста")
	})
}
