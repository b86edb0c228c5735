// Package bolt provides a single-file session store for hosts without the
// shared database.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"content_ingester/internal/domain"
)

var sessionsBucket = []byte("sessions")

type SessionStore struct {
	db *bbolt.DB
}

func Open(path string) (*SessionStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}

	return &SessionStore{db: db}, nil
}

func (s *SessionStore) Load(_ context.Context, identity string) (*domain.SessionState, error) {
	var state domain.SessionState
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(sessionsBucket).Get([]byte(identity))
		if raw == nil {
			return domain.ErrSessionNotFound
		}
		return json.Unmarshal(raw, &state)
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SessionStore) Save(_ context.Context, identity string, state *domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(identity), raw)
	})
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}
