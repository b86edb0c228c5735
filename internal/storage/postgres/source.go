package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"content_ingester/internal/domain"
)

type SourceStore struct {
	db *sqlx.DB
}

func NewSourceStore(db *sqlx.DB) *SourceStore {
	return &SourceStore{db: db}
}

func (s *SourceStore) ListActive(ctx context.Context) ([]domain.Source, error) {
	query, args, err := psql.Select("id", "kind", "address", "category", "display_name", "active").
		From("sources").
		Where("active").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var sources []domain.Source
	if err := s.db.SelectContext(ctx, &sources, query, args...); err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	return sources, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
