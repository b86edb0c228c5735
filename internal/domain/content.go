package domain

import "time"

// ContentItem is the canonical record every source normalizes into.
// NaturalKey is the origin-native id (post id, feed GUID, video id).
type ContentItem struct {
	SourceKind        SourceKind `json:"source_kind"`
	SourceID          string     `json:"source_id"`
	NaturalKey        string     `json:"natural_key"`
	AuthorHandle      string     `json:"author_handle"`
	AuthorDisplayName string     `json:"author_display_name"`
	AuthorAvatarURL   *string    `json:"author_avatar_url,omitempty"`
	BodyText          string     `json:"body_text"`
	MediaURLs         []string   `json:"media_urls"`
	ExternalURL       *string    `json:"external_url,omitempty"`
	Category          string     `json:"category"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

// UpsertOutcome reports how a single natural key was written.
type UpsertOutcome struct {
	NaturalKey string
	Inserted   bool
}
