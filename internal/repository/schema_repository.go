package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RequiredTables are the tables the gateway serves.
var RequiredTables = []string{"users", "posts", "comments"}

type schemaRepository struct {
	db *sqlx.DB
}

func NewSchemaRepository(db *sqlx.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

// MissingTables reports which of RequiredTables are absent from the public schema.
func (r *schemaRepository) MissingTables(ctx context.Context) ([]string, error) {
	var present []string

	query, args, err := sqlx.In(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name IN (?)
	`, RequiredTables)
	if err != nil {
		return nil, fmt.Errorf("ошибка при построении запроса схемы: %w", err)
	}

	err = r.db.SelectContext(ctx, &present, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при проверке таблиц базы данных: %w", err)
	}

	found := make(map[string]bool, len(present))
	for _, name := range present {
		found[name] = true
	}

	missing := []string{}
	for _, name := range RequiredTables {
		if !found[name] {
			missing = append(missing, name)
		}
	}

	return missing, nil
}
