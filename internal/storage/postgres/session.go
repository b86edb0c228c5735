package postgres

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"content_ingester/internal/domain"
)

// SessionStore keeps session material in the app_config key-value table,
// base64-encoded, keyed by identity.
type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Load(ctx context.Context, identity string) (*domain.SessionState, error) {
	var row struct {
		Value     string    `db:"value"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT value, updated_at FROM app_config WHERE key = $1`, identity)
	if isNoRows(err) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", identity, err)
	}

	material, err := base64.StdEncoding.DecodeString(row.Value)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", identity, err)
	}

	return &domain.SessionState{
		Identity: identity,
		Material: material,
		SavedAt:  row.UpdatedAt,
	}, nil
}

func (s *SessionStore) Save(ctx context.Context, identity string, state *domain.SessionState) error {
	savedAt := state.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO app_config (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query, identity, base64.StdEncoding.EncodeToString(state.Material), savedAt); err != nil {
		return fmt.Errorf("save session %s: %w", identity, err)
	}
	return nil
}
