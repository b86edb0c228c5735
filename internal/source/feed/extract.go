package feed

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"content_ingester/internal/domain"
)

// Tag extraction is regex based and limited to the two feed
// shapes we ingest: RSS 2.0 items and YouTube's Atom entries.

var (
	cdataExpr = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

	exprMu    sync.Mutex
	exprCache = map[string]*regexp.Regexp{}
)

var entityReplacer = strings.NewReplacer("&lt;", "<", "&gt;", ">")

func compile(pattern string) *regexp.Regexp {
	exprMu.Lock()
	defer exprMu.Unlock()

	if re, ok := exprCache[pattern]; ok {
		return re
	}
	re := regexp.MustCompile(pattern)
	exprCache[pattern] = re
	return re
}

// decodeEntities decodes &lt; &gt; and &amp;, the latter last so that
// "&amp;lt;" yields "&lt;" rather than "<".
func decodeEntities(s string) string {
	return strings.ReplaceAll(entityReplacer.Replace(s), "&amp;", "&")
}

// blocks returns the inner text of every <tag ...>...</tag> in doc.
func blocks(doc, tag string) []string {
	re := compile(`(?s)<` + regexp.QuoteMeta(tag) + `(?:\s[^>]*)?>(.*?)</` + regexp.QuoteMeta(tag) + `\s*>`)
	matches := re.FindAllStringSubmatch(doc, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// tagText returns the decoded text of the first <name> element in block.
// CDATA sections are unwrapped first; the value is always entity-decoded.
func tagText(block, name string) string {
	re := compile(`(?s)<` + regexp.QuoteMeta(name) + `(?:\s[^>]*)?>(.*?)</` + regexp.QuoteMeta(name) + `\s*>`)
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}

	value := cdataExpr.ReplaceAllString(m[1], "$1")
	return strings.TrimSpace(decodeEntities(value))
}

// tagAttr returns the decoded value of attr on the first <name> element.
func tagAttr(block, name, attr string) string {
	re := compile(`<` + regexp.QuoteMeta(name) + `\s[^>]*?\b` + regexp.QuoteMeta(attr) + `\s*=\s*["']([^"']*)["']`)
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(decodeEntities(m[1]))
}

// head returns the part of doc before the first occurrence of <tag.
func head(doc, tag string) string {
	if i := strings.Index(doc, "<"+tag); i >= 0 {
		return doc[:i]
	}
	return doc
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
}

// parseDate returns the zero time when raw matches no known layout.
func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseRSS extracts items from an RSS 2.0 document.
func ParseRSS(doc string) []domain.FeedItem {
	channel := head(doc, "item")
	channelTitle := tagText(channel, "title")
	channelImage := tagAttr(channel, "itunes:image", "href")
	if channelImage == "" {
		channelImage = tagText(tagText(channel, "image"), "url")
	}

	var items []domain.FeedItem
	for _, block := range blocks(doc, "item") {
		summary := tagText(block, "itunes:summary")
		if summary == "" {
			summary = tagText(block, "description")
		}

		link := tagText(block, "link")
		guid := tagText(block, "guid")
		if guid == "" {
			guid = link
		}

		author := tagText(block, "itunes:author")
		if author == "" {
			author = channelTitle
		}

		items = append(items, domain.FeedItem{
			Format:          domain.FeedFormatRSS,
			GUID:            guid,
			Title:           tagText(block, "title"),
			Summary:         summary,
			Link:            link,
			Published:       parseDate(tagText(block, "pubDate")),
			ImageURL:        tagAttr(block, "itunes:image", "href"),
			Category:        tagText(block, "category"),
			AuthorName:      author,
			AuthorAvatarURL: channelImage,
		})
	}
	return items
}

// ParseYouTube extracts entries from a YouTube channel Atom feed.
func ParseYouTube(doc string) []domain.FeedItem {
	channelName := tagText(tagText(head(doc, "entry"), "author"), "name")

	var items []domain.FeedItem
	for _, block := range blocks(doc, "entry") {
		videoID := tagText(block, "yt:videoId")
		if videoID == "" {
			continue
		}

		author := tagText(tagText(block, "author"), "name")
		if author == "" {
			author = channelName
		}

		items = append(items, domain.FeedItem{
			Format:     domain.FeedFormatYouTube,
			GUID:       videoID,
			Title:      tagText(block, "title"),
			Summary:    tagText(block, "media:description"),
			Link:       WatchURL(videoID),
			Published:  parseDate(tagText(block, "published")),
			ImageURL:   tagAttr(block, "media:thumbnail", "url"),
			AuthorName: author,
		})
	}
	return items
}

func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
