package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"content_ingester/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const contentConflict = `ON CONFLICT (natural_key) DO UPDATE SET
	source_kind = EXCLUDED.source_kind,
	source_id = EXCLUDED.source_id,
	author_handle = EXCLUDED.author_handle,
	author_display_name = EXCLUDED.author_display_name,
	author_avatar_url = EXCLUDED.author_avatar_url,
	body_text = EXCLUDED.body_text,
	media_urls = EXCLUDED.media_urls,
	external_url = EXCLUDED.external_url,
	category = EXCLUDED.category,
	occurred_at = EXCLUDED.occurred_at,
	updated_at = NOW()
RETURNING natural_key, (xmax = 0) AS inserted`

type ContentStore struct {
	db *sqlx.DB
}

func NewContentStore(db *sqlx.DB) *ContentStore {
	return &ContentStore{db: db}
}

// UpsertContent writes items in one statement. Callers must not pass the
// same natural key twice.
func (s *ContentStore) UpsertContent(ctx context.Context, items []domain.ContentItem) ([]domain.UpsertOutcome, error) {
	if len(items) == 0 {
		return nil, nil
	}

	q := psql.Insert("content_items").Columns(
		"natural_key", "source_kind", "source_id", "author_handle", "author_display_name",
		"author_avatar_url", "body_text", "media_urls", "external_url", "category", "occurred_at",
	)
	for _, it := range items {
		media := it.MediaURLs
		if media == nil {
			media = []string{}
		}
		q = q.Values(
			it.NaturalKey, string(it.SourceKind), it.SourceID, it.AuthorHandle, it.AuthorDisplayName,
			it.AuthorAvatarURL, it.BodyText, pq.StringArray(media), it.ExternalURL, it.Category, it.OccurredAt,
		)
	}

	query, args, err := q.Suffix(contentConflict).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert: %w", err)
	}

	var rows []struct {
		NaturalKey string `db:"natural_key"`
		Inserted   bool   `db:"inserted"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("upsert content: %w", err)
	}

	outcomes := make([]domain.UpsertOutcome, len(rows))
	for i, r := range rows {
		outcomes[i] = domain.UpsertOutcome{NaturalKey: r.NaturalKey, Inserted: r.Inserted}
	}
	return outcomes, nil
}

// GetByNaturalKey returns nil when no row exists.
func (s *ContentStore) GetByNaturalKey(ctx context.Context, key string) (*domain.ContentItem, error) {
	query, args, err := psql.Select(
		"natural_key", "source_kind", "source_id", "author_handle", "author_display_name",
		"author_avatar_url", "body_text", "media_urls", "external_url", "category", "occurred_at",
	).From("content_items").Where(sq.Eq{"natural_key": key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var row contentRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get content %s: %w", key, err)
	}
	item := row.toDomain()
	return &item, nil
}

type contentRow struct {
	NaturalKey        string         `db:"natural_key"`
	SourceKind        string         `db:"source_kind"`
	SourceID          string         `db:"source_id"`
	AuthorHandle      string         `db:"author_handle"`
	AuthorDisplayName string         `db:"author_display_name"`
	AuthorAvatarURL   *string        `db:"author_avatar_url"`
	BodyText          string         `db:"body_text"`
	MediaURLs         pq.StringArray `db:"media_urls"`
	ExternalURL       *string        `db:"external_url"`
	Category          string         `db:"category"`
	OccurredAt        time.Time      `db:"occurred_at"`
}

func (r contentRow) toDomain() domain.ContentItem {
	media := []string(r.MediaURLs)
	if media == nil {
		media = []string{}
	}
	return domain.ContentItem{
		SourceKind:        domain.SourceKind(r.SourceKind),
		SourceID:          r.SourceID,
		NaturalKey:        r.NaturalKey,
		AuthorHandle:      r.AuthorHandle,
		AuthorDisplayName: r.AuthorDisplayName,
		AuthorAvatarURL:   r.AuthorAvatarURL,
		BodyText:          r.BodyText,
		MediaURLs:         media,
		ExternalURL:       r.ExternalURL,
		Category:          r.Category,
		OccurredAt:        r.OccurredAt.UTC(),
	}
}
