package syndication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"content_ingester/internal/domain"
	"content_ingester/internal/httpclient"
)

const originURL = "https://x.com"

type Config struct {
	BaseURL  string
	MaxItems int
}

// Source reads a handle's public syndication timeline. It needs no session
// and serves as a fallback or diagnostic path for social handles.
type Source struct {
	client   httpclient.Client
	baseURL  string
	maxItems int
	logger   *slog.Logger
}

// New expects a client built with NoRedirects so redirects can be followed
// exactly once here.
func New(client httpclient.Client, cfg Config, logger *slog.Logger) *Source {
	return &Source{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxItems: cfg.MaxItems,
		logger:   logger.With("fetcher", "syndication"),
	}
}

// Fetch returns the handle's own items, newest first by the origin sort key.
func (s *Source) Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error) {
	handle := strings.TrimPrefix(strings.TrimSpace(src.Address), "@")
	if handle == "" {
		return nil, fmt.Errorf("source %q has no handle", src.ID)
	}

	body, err := s.fetchTimeline(ctx, handle)
	if err != nil {
		return nil, err
	}

	data, err := extractNextData(body)
	if err != nil {
		return nil, fmt.Errorf("syndication %s: %w", handle, err)
	}

	items := collect(data, handle, s.logger)
	if s.maxItems > 0 && len(items) > s.maxItems {
		items = items[:s.maxItems]
	}

	out := make([]domain.RawItem, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	return out, nil
}

func (s *Source) fetchTimeline(ctx context.Context, handle string) ([]byte, error) {
	target := s.baseURL + "/" + url.PathEscape(handle)
	headers := map[string]string{"Accept": "text/html,application/xhtml+xml"}

	resp, err := s.client.Get(ctx, target, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch syndication %s: %w", handle, err)
	}

	if isRedirect(resp.StatusCode()) {
		location, err := resolveLocation(target, resp)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("following redirect", "handle", handle, "location", location)

		resp, err = s.client.Get(ctx, location, headers)
		if err != nil {
			return nil, fmt.Errorf("fetch syndication %s after redirect: %w", handle, err)
		}
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusOK:
		return resp.Body(), nil
	case status == http.StatusTooManyRequests:
		return nil, fmt.Errorf("syndication %s: %w", handle, domain.ErrRateLimited)
	default:
		s.logger.Warn("syndication returned unexpected status",
			"handle", handle,
			"status", status,
		)
		return nil, fmt.Errorf("syndication %s status %d: %w", handle, status, domain.ErrSourceSkipped)
	}
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400 && status != http.StatusNotModified
}

func resolveLocation(base string, resp *resty.Response) (string, error) {
	raw := resp.Header().Get("Location")
	if raw == "" {
		return "", fmt.Errorf("redirect %d without location", resp.StatusCode())
	}
	loc, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse redirect location: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return baseURL.ResolveReference(loc).String(), nil
}

func extractNextData(body []byte) (*nextData, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	script := doc.Find(`script#__NEXT_DATA__`).First()
	if script.Length() == 0 {
		return nil, fmt.Errorf("embedded timeline data not found")
	}

	var data nextData
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return nil, fmt.Errorf("decode timeline data: %w", err)
	}
	return &data, nil
}

// collect filters entries to those authored by handle and orders them by
// sort index, descending.
func collect(data *nextData, handle string, logger *slog.Logger) []domain.SyndicationItem {
	var items []domain.SyndicationItem
	for _, e := range data.Props.PageProps.Timeline.Entries {
		t := e.Content.Tweet
		if t == nil || t.IDStr == "" {
			continue
		}
		if !strings.EqualFold(t.User.ScreenName, handle) {
			continue
		}
		if t.RetweetedStatus != nil {
			continue
		}

		sortIndex, err := strconv.ParseUint(e.SortIndex, 10, 64)
		if err != nil {
			// id_str is monotonic too and is what sort_index derives from.
			sortIndex, err = strconv.ParseUint(t.IDStr, 10, 64)
			if err != nil {
				logger.Debug("entry without usable sort key", "id", t.IDStr)
				continue
			}
		}

		text := t.FullText
		if text == "" {
			text = t.Text
		}

		permalink := t.Permalink
		if permalink == "" {
			permalink = fmt.Sprintf("/%s/status/%s", t.User.ScreenName, t.IDStr)
		}
		if strings.HasPrefix(permalink, "/") {
			permalink = originURL + permalink
		}

		items = append(items, domain.SyndicationItem{
			ID:              t.IDStr,
			Text:            text,
			Permalink:       permalink,
			CreatedAt:       parseCreatedAt(t.CreatedAt),
			SortIndex:       sortIndex,
			AuthorHandle:    t.User.ScreenName,
			AuthorName:      t.User.Name,
			AuthorAvatarURL: t.User.ProfileImageURLHTTPS,
			MediaURLs:       mediaURLs(t),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortIndex > items[j].SortIndex
	})
	return items
}

func mediaURLs(t *tweet) []string {
	ents := t.Entities
	if t.ExtendedEntities != nil && len(t.ExtendedEntities.Media) > 0 {
		ents = *t.ExtendedEntities
	}
	urls := make([]string, 0, len(ents.Media))
	for _, m := range ents.Media {
		if m.MediaURLHTTPS != "" {
			urls = append(urls, m.MediaURLHTTPS)
		}
	}
	return urls
}

func parseCreatedAt(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, time.RubyDate} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
