package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content_ingester/internal/domain"
)

var ingestedAt = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func TestNormalize_AuthenticatedItem(t *testing.T) {
	n := New(0)
	src := domain.Source{ID: "s1", Kind: domain.KindAuthenticatedSocial, Address: "senator", Category: "congress"}
	created := time.Date(2026, 10, 17, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))

	item, ok := n.Normalize(src, domain.AuthenticatedItem{
		ID:              "1790000000000000001",
		Text:            "Floor vote at noon &amp; press after https://t.co/Zz9",
		URL:             "https://x.com/senator/status/1790000000000000001",
		CreatedAt:       created,
		AuthorHandle:    "senator",
		AuthorName:      "The Senator",
		AuthorAvatarURL: "https://pbs.twimg.com/profile_images/9/me_normal.jpg",
		MediaURLs:       []string{"https://pbs.twimg.com/media/a.jpg", " "},
	}, ingestedAt)

	require.True(t, ok)
	assert.Equal(t, domain.KindAuthenticatedSocial, item.SourceKind)
	assert.Equal(t, "s1", item.SourceID)
	assert.Equal(t, "1790000000000000001", item.NaturalKey)
	assert.Equal(t, "Floor vote at noon & press after", item.BodyText)
	assert.Equal(t, "https://pbs.twimg.com/profile_images/9/me_400x400.jpg", *item.AuthorAvatarURL)
	assert.Equal(t, []string{"https://pbs.twimg.com/media/a.jpg"}, item.MediaURLs)
	assert.Equal(t, "congress", item.Category)
	assert.Equal(t, created.UTC(), item.OccurredAt)
}

func TestNormalize_DropsReposts(t *testing.T) {
	n := New(0)
	_, ok := n.Normalize(domain.Source{Kind: domain.KindAuthenticatedSocial}, domain.AuthenticatedItem{
		ID: "1", Text: "RT someone", IsRepost: true,
	}, ingestedAt)
	assert.False(t, ok)
}

func TestNormalize_DropsEmptyBody(t *testing.T) {
	n := New(0)
	_, ok := n.Normalize(domain.Source{Kind: domain.KindPublicSocial}, domain.SyndicationItem{
		ID: "1", Text: "https://t.co/onlylink",
	}, ingestedAt)
	assert.False(t, ok)
}

func TestNormalize_SyndicationFallsBackToIngestionTime(t *testing.T) {
	n := New(0)
	item, ok := n.Normalize(domain.Source{ID: "s", Kind: domain.KindPublicSocial}, domain.SyndicationItem{
		ID: "42", Text: "hello", AuthorHandle: "rep",
	}, ingestedAt)

	require.True(t, ok)
	assert.Equal(t, ingestedAt, item.OccurredAt)
	assert.Nil(t, item.ExternalURL)
	assert.NotNil(t, item.MediaURLs)
	assert.Empty(t, item.MediaURLs)
}

func TestNormalize_FeedBodyIsTitleBlankLineSummary(t *testing.T) {
	n := New(800)
	src := domain.Source{ID: "pod", Kind: domain.KindFeedRSS, Address: "https://pod.test/rss", DisplayName: "Pod"}

	item, ok := n.Normalize(src, domain.FeedItem{
		Format:  domain.FeedFormatRSS,
		GUID:    "ep-12",
		Title:   "Episode 12",
		Summary: "<p>We talk budgets.</p><p>And more.</p>",
		Link:    "https://pod.test/ep12",
	}, ingestedAt)

	require.True(t, ok)
	assert.Equal(t, "Episode 12\n\nWe talk budgets.\nAnd more.", item.BodyText)
	assert.Equal(t, "Pod", item.AuthorDisplayName)
	assert.Equal(t, "https://pod.test/rss", item.AuthorHandle)
}

func TestNormalize_FeedSummaryTruncated(t *testing.T) {
	n := New(100)
	summary := strings.Repeat("word ", 60)

	item, ok := n.Normalize(domain.Source{Kind: domain.KindFeedRSS}, domain.FeedItem{
		GUID: "g", Title: "T", Summary: summary,
	}, ingestedAt)

	require.True(t, ok)
	assert.True(t, strings.HasPrefix(item.BodyText, "T\n\n"))
	assert.True(t, strings.HasSuffix(item.BodyText, "word…"))
}

func TestNormalize_FeedGUIDFallsBackToLink(t *testing.T) {
	n := New(0)
	item, ok := n.Normalize(domain.Source{Kind: domain.KindFeedRSS}, domain.FeedItem{
		Title: "T", Summary: "S", Link: "https://pod.test/ep1",
	}, ingestedAt)

	require.True(t, ok)
	assert.Equal(t, "https://pod.test/ep1", item.NaturalKey)
}

func TestNormalize_FeedWithoutKeyDropped(t *testing.T) {
	n := New(0)
	_, ok := n.Normalize(domain.Source{Kind: domain.KindFeedRSS}, domain.FeedItem{Title: "T"}, ingestedAt)
	assert.False(t, ok)
}

func TestNormalize_FeedWithEmptyTextDropped(t *testing.T) {
	n := New(0)
	_, ok := n.Normalize(domain.Source{Kind: domain.KindFeedYouTube}, domain.FeedItem{
		GUID: "vid", Title: "<b></b>", Summary: "<p> </p>",
	}, ingestedAt)
	assert.False(t, ok)
}

func TestNormalize_FeedTitleOnlyKept(t *testing.T) {
	n := New(0)
	item, ok := n.Normalize(domain.Source{Kind: domain.KindFeedYouTube}, domain.FeedItem{
		GUID: "vid", Title: "Floor speech", Summary: "<p> </p>",
	}, ingestedAt)
	require.True(t, ok)
	assert.Equal(t, "Floor speech", item.BodyText)
}

func TestNormalize_CategoryFallback(t *testing.T) {
	n := New(0)
	for _, kind := range []domain.SourceKind{domain.KindFeedRSS, domain.KindFeedYouTube} {
		src := domain.Source{ID: "s", Kind: kind, Category: "elections"}

		item, ok := n.Normalize(src, domain.FeedItem{GUID: "g", Title: "t", Summary: "s"}, ingestedAt)
		require.True(t, ok)
		assert.Equal(t, "elections", item.Category, kind)

		item, ok = n.Normalize(src, domain.FeedItem{GUID: "g", Title: "t", Summary: "s", Category: "economy"}, ingestedAt)
		require.True(t, ok)
		assert.Equal(t, "economy", item.Category, kind)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := New(0)
	src := domain.Source{ID: "s", Kind: domain.KindFeedYouTube, Category: "video"}
	raw := domain.FeedItem{
		Format:    domain.FeedFormatYouTube,
		GUID:      "dQw4w9WgXcQ",
		Title:     "Town hall",
		Summary:   "Full <i>town hall</i> recording",
		Link:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		ImageURL:  "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
		Published: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}

	first, ok := n.Normalize(src, raw, ingestedAt)
	require.True(t, ok)
	second, ok := n.Normalize(src, raw, ingestedAt)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg"}, first.MediaURLs)
}

func TestNormalizeAll_KeepsOrderAndCountsDrops(t *testing.T) {
	n := New(0)
	src := domain.Source{Kind: domain.KindPublicSocial}
	raws := []domain.RawItem{
		domain.SyndicationItem{ID: "3", Text: "c"},
		domain.SyndicationItem{ID: "", Text: "no id"},
		domain.SyndicationItem{ID: "1", Text: "a"},
	}

	items, dropped := n.NormalizeAll(src, raws, ingestedAt)

	require.Len(t, items, 2)
	assert.Equal(t, "3", items[0].NaturalKey)
	assert.Equal(t, "1", items[1].NaturalKey)
	assert.Equal(t, 1, dropped)
}
