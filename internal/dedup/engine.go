// Package dedup writes normalized items to the content store keyed by
// natural key, in fixed-size batches.
package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"content_ingester/internal/domain"
)

const DefaultBatchSize = 50

// Store performs one multi-row upsert and reports, per natural key, whether
// the row was created or overwritten.
type Store interface {
	UpsertContent(ctx context.Context, items []domain.ContentItem) ([]domain.UpsertOutcome, error)
}

type Result struct {
	Written  int
	Inserted int
	Updated  int
	Failed   int
	Errors   []string
	Outcomes []domain.UpsertOutcome
}

type Engine struct {
	store     Store
	batchSize int
	logger    *slog.Logger
}

func New(store Store, batchSize int, logger *slog.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		store:     store,
		batchSize: batchSize,
		logger:    logger.With("component", "dedup"),
	}
}

// Upsert writes items batch by batch. A failed batch counts all of its
// items as failed and the remaining batches are still attempted.
func (e *Engine) Upsert(ctx context.Context, items []domain.ContentItem) Result {
	var res Result

	for start := 0; start < len(items); start += e.batchSize {
		end := min(start+e.batchSize, len(items))
		batch := collapse(items[start:end])

		outcomes, err := e.store.UpsertContent(ctx, batch)
		if err != nil {
			res.Failed += end - start
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d-%d: %v", start, end-1, err))
			e.logger.Error("batch upsert failed", "from", start, "to", end-1, "error", err)
			continue
		}

		for _, o := range outcomes {
			if o.Inserted {
				res.Inserted++
			} else {
				res.Updated++
			}
		}
		res.Written += end - start
		res.Outcomes = append(res.Outcomes, outcomes...)
	}

	return res
}

// collapse keeps the last occurrence of each natural key in place of the
// first, so a single statement never touches the same row twice.
func collapse(items []domain.ContentItem) []domain.ContentItem {
	index := make(map[string]int, len(items))
	out := make([]domain.ContentItem, 0, len(items))
	for _, it := range items {
		if i, ok := index[it.NaturalKey]; ok {
			out[i] = it
			continue
		}
		index[it.NaturalKey] = len(out)
		out = append(out, it)
	}
	return out
}
