// Package normalize maps fetcher-native items into domain.ContentItem.
//
// Everything here is pure: the ingestion time is passed in, so identical
// input always produces an identical ContentItem.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"content_ingester/internal/domain"
)

const DefaultBodyBudget = 800

type Normalizer struct {
	bodyBudget int
}

func New(bodyBudget int) *Normalizer {
	if bodyBudget <= 0 {
		bodyBudget = DefaultBodyBudget
	}
	return &Normalizer{bodyBudget: bodyBudget}
}

// Normalize converts raw into a ContentItem for src. ok is false when the
// item must be dropped (no natural key, or an empty body after cleanup).
func (n *Normalizer) Normalize(src domain.Source, raw domain.RawItem, ingestedAt time.Time) (domain.ContentItem, bool) {
	var (
		item domain.ContentItem
		ok   bool
	)

	switch r := raw.(type) {
	case domain.AuthenticatedItem:
		item, ok = n.fromAuthenticated(r)
	case domain.SyndicationItem:
		item, ok = n.fromSyndication(r)
	case domain.FeedItem:
		item, ok = n.fromFeed(src, r)
	default:
		panic(fmt.Sprintf("normalize: unhandled raw item %T", raw))
	}
	if !ok {
		return domain.ContentItem{}, false
	}

	item.SourceKind = src.Kind
	item.SourceID = src.ID
	if item.Category == "" {
		item.Category = src.Category
	}
	if item.OccurredAt.IsZero() {
		item.OccurredAt = ingestedAt
	}
	item.OccurredAt = item.OccurredAt.UTC()
	if item.MediaURLs == nil {
		item.MediaURLs = []string{}
	}

	return item, true
}

// NormalizeAll normalizes items in order and returns the kept items together
// with the number of dropped ones.
func (n *Normalizer) NormalizeAll(src domain.Source, raws []domain.RawItem, ingestedAt time.Time) ([]domain.ContentItem, int) {
	items := make([]domain.ContentItem, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		item, ok := n.Normalize(src, raw, ingestedAt)
		if !ok {
			dropped++
			continue
		}
		items = append(items, item)
	}
	return items, dropped
}

func (n *Normalizer) fromAuthenticated(r domain.AuthenticatedItem) (domain.ContentItem, bool) {
	if r.IsRepost {
		return domain.ContentItem{}, false
	}
	body := socialBody(r.Text)
	if r.ID == "" || body == "" {
		return domain.ContentItem{}, false
	}

	return domain.ContentItem{
		NaturalKey:        r.ID,
		AuthorHandle:      r.AuthorHandle,
		AuthorDisplayName: r.AuthorName,
		AuthorAvatarURL:   optional(UpgradeAvatarURL(r.AuthorAvatarURL)),
		BodyText:          body,
		MediaURLs:         copyURLs(r.MediaURLs),
		ExternalURL:       optional(r.URL),
		OccurredAt:        r.CreatedAt,
	}, true
}

func (n *Normalizer) fromSyndication(r domain.SyndicationItem) (domain.ContentItem, bool) {
	body := socialBody(r.Text)
	if r.ID == "" || body == "" {
		return domain.ContentItem{}, false
	}

	return domain.ContentItem{
		NaturalKey:        r.ID,
		AuthorHandle:      r.AuthorHandle,
		AuthorDisplayName: r.AuthorName,
		AuthorAvatarURL:   optional(UpgradeAvatarURL(r.AuthorAvatarURL)),
		BodyText:          body,
		MediaURLs:         copyURLs(r.MediaURLs),
		ExternalURL:       optional(r.Permalink),
		OccurredAt:        r.CreatedAt,
	}, true
}

func (n *Normalizer) fromFeed(src domain.Source, r domain.FeedItem) (domain.ContentItem, bool) {
	key := strings.TrimSpace(r.GUID)
	if key == "" {
		key = strings.TrimSpace(r.Link)
	}
	if key == "" {
		return domain.ContentItem{}, false
	}

	title := strings.TrimSpace(CleanBody(r.Title))
	summary := Truncate(CleanBody(r.Summary), n.bodyBudget)

	var body string
	switch {
	case title != "" && summary != "":
		body = title + "\n\n" + summary
	case summary != "":
		body = summary
	default:
		body = title
	}
	if body == "" {
		return domain.ContentItem{}, false
	}

	author := strings.TrimSpace(r.AuthorName)
	if author == "" {
		author = src.DisplayName
	}

	var media []string
	if r.ImageURL != "" {
		media = []string{r.ImageURL}
	}

	return domain.ContentItem{
		NaturalKey:        key,
		AuthorHandle:      src.Address,
		AuthorDisplayName: author,
		AuthorAvatarURL:   optional(r.AuthorAvatarURL),
		BodyText:          body,
		MediaURLs:         media,
		ExternalURL:       optional(r.Link),
		Category:          strings.TrimSpace(r.Category),
		OccurredAt:        r.Published,
	}, true
}

func socialBody(text string) string {
	return CleanBody(StripShortLinks(strings.TrimSpace(text)))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func copyURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
