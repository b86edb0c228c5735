// Package static serves the source list from configuration instead of the
// database.
package static

import (
	"context"

	"content_ingester/internal/domain"
)

type SourceStore struct {
	sources []domain.Source
}

func NewSourceStore(sources []domain.Source) *SourceStore {
	return &SourceStore{sources: sources}
}

func (s *SourceStore) ListActive(_ context.Context) ([]domain.Source, error) {
	active := make([]domain.Source, 0, len(s.sources))
	for _, src := range s.sources {
		if src.Active {
			active = append(active, src)
		}
	}
	return active, nil
}
