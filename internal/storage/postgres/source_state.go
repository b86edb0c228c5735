package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"content_ingester/internal/domain"
)

type SourceStateStore struct {
	db *sqlx.DB
}

func NewSourceStateStore(db *sqlx.DB) *SourceStateStore {
	return &SourceStateStore{db: db}
}

func (s *SourceStateStore) Get(ctx context.Context, sourceID string) (*domain.SourceState, error) {
	var state domain.SourceState
	query := `
		SELECT source_id, last_run_at, last_item_count, total_ingested, consecutive_zero_yields, last_error
		FROM source_state
		WHERE source_id = $1`

	err := s.db.GetContext(ctx, &state, query, sourceID)
	if isNoRows(err) {
		return &domain.SourceState{SourceID: sourceID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SourceStateStore) Update(ctx context.Context, state *domain.SourceState) error {
	query := `
		INSERT INTO source_state (source_id, last_run_at, last_item_count, total_ingested, consecutive_zero_yields, last_error)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_id) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			last_item_count = EXCLUDED.last_item_count,
			total_ingested = EXCLUDED.total_ingested,
			consecutive_zero_yields = EXCLUDED.consecutive_zero_yields,
			last_error = EXCLUDED.last_error`

	_, err := s.db.ExecContext(ctx, query,
		state.SourceID,
		state.LastRunAt,
		state.LastItemCount,
		state.TotalIngested,
		state.ConsecutiveZeroYields,
		state.LastError,
	)
	return err
}
