package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"content_ingester/internal/domain"
	"content_ingester/internal/httpclient"
)

const youtubeFeedURL = "https://www.youtube.com/feeds/videos.xml"

type Config struct {
	MaxItems int
}

// Source fetches RSS podcast feeds and YouTube channel feeds.
type Source struct {
	client   httpclient.Client
	maxItems int
	logger   *slog.Logger
}

func New(client httpclient.Client, cfg Config, logger *slog.Logger) *Source {
	return &Source{
		client:   client,
		maxItems: cfg.MaxItems,
		logger:   logger.With("fetcher", "feed"),
	}
}

// Fetch downloads the feed for src and returns its items in document order.
func (s *Source) Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error) {
	feedURL, err := FeedURL(src)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, feedURL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", src.ID, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusTooManyRequests:
		return nil, fmt.Errorf("feed %s: %w", src.ID, domain.ErrRateLimited)
	case status != http.StatusOK:
		return nil, fmt.Errorf("feed %s returned status %d body: %s", src.ID, status, httpclient.Snippet(resp.Body()))
	}

	doc := string(resp.Body())

	var parsed []domain.FeedItem
	switch src.Kind {
	case domain.KindFeedRSS:
		parsed = ParseRSS(doc)
	case domain.KindFeedYouTube:
		parsed = ParseYouTube(doc)
	default:
		return nil, fmt.Errorf("feed fetcher: %w: %q", domain.ErrUnknownSourceKind, src.Kind)
	}

	if s.maxItems > 0 && len(parsed) > s.maxItems {
		parsed = parsed[:s.maxItems]
	}

	s.logger.Debug("parsed feed",
		"source_id", src.ID,
		"items", len(parsed),
	)

	items := make([]domain.RawItem, 0, len(parsed))
	for _, it := range parsed {
		items = append(items, it)
	}
	return items, nil
}

// FeedURL resolves the document address for a feed source. YouTube sources
// may be configured with a bare channel id.
func FeedURL(src domain.Source) (string, error) {
	addr := strings.TrimSpace(src.Address)
	if addr == "" {
		return "", fmt.Errorf("source %q has no address", src.ID)
	}

	if src.Kind == domain.KindFeedYouTube && !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		return youtubeFeedURL + "?channel_id=" + url.QueryEscape(addr), nil
	}
	return addr, nil
}
