package domain

import "time"

// RawItem is the closed set of native item shapes produced by fetchers.
// Only AuthenticatedItem, SyndicationItem and FeedItem implement it.
type RawItem interface {
	rawItem()
}

// AuthenticatedItem is one post from the logged-in timeline API.
type AuthenticatedItem struct {
	ID              string
	Text            string
	URL             string
	CreatedAt       time.Time
	AuthorHandle    string
	AuthorName      string
	AuthorAvatarURL string
	MediaURLs       []string
	IsRepost        bool
}

// SyndicationItem is one entry of the public syndication timeline.
type SyndicationItem struct {
	ID              string
	Text            string
	Permalink       string
	CreatedAt       time.Time
	SortIndex       uint64
	AuthorHandle    string
	AuthorName      string
	AuthorAvatarURL string
	MediaURLs       []string
}

// FeedFormat distinguishes the two supported feed shapes.
type FeedFormat string

const (
	FeedFormatRSS     FeedFormat = "rss"
	FeedFormatYouTube FeedFormat = "youtube"
)

// FeedItem is one RSS item or YouTube Atom entry.
type FeedItem struct {
	Format          FeedFormat
	GUID            string
	Title           string
	Summary         string
	Link            string
	Published       time.Time // zero when the feed carries none
	ImageURL        string
	Category        string
	AuthorName      string
	AuthorAvatarURL string
}

func (AuthenticatedItem) rawItem() {}
func (SyndicationItem) rawItem()   {}
func (FeedItem) rawItem()          {}
