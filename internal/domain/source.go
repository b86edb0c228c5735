package domain

// SourceKind selects the fetch strategy for a Source.
type SourceKind string

const (
	KindAuthenticatedSocial SourceKind = "authenticated-social"
	KindPublicSocial        SourceKind = "public-social"
	KindFeedRSS             SourceKind = "feed-rss"
	KindFeedYouTube         SourceKind = "feed-youtube"
)

// Valid reports whether k is one of the known kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case KindAuthenticatedSocial, KindPublicSocial, KindFeedRSS, KindFeedYouTube:
		return true
	}
	return false
}

// Source is a configured origin to poll. It is owned by the admin surface and
// read-only to the ingester.
type Source struct {
	ID          string     `db:"id" yaml:"id" json:"id"`
	Kind        SourceKind `db:"kind" yaml:"kind" json:"kind"`
	Address     string     `db:"address" yaml:"address" json:"address"` // handle, feed URL or channel id
	Category    string     `db:"category" yaml:"category" json:"category"`
	DisplayName string     `db:"display_name" yaml:"display_name" json:"display_name"`
	Active      bool       `db:"active" yaml:"active" json:"active"`
}
