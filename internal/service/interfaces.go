package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"content_ingester/internal/dedup"
	"content_ingester/internal/domain"
)

type SourceStore interface {
	ListActive(ctx context.Context) ([]domain.Source, error)
}

// Fetcher pulls raw items for one source, newest first where the origin
// has an order.
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error)
}

type SessionPreparer interface {
	Prepare(ctx context.Context) error
}

type Upserter interface {
	Upsert(ctx context.Context, items []domain.ContentItem) dedup.Result
}

type SourceStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SourceState, error)
	Update(ctx context.Context, state *domain.SourceState) error
}

type Publisher interface {
	Publish(ctx context.Context, item *domain.ContentItem, isNew bool) error
	Close() error
}
