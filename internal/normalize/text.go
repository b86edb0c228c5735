package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const ellipsis = "…"

var (
	shortLinkSuffix = regexp.MustCompile(`\s*https?://t\.co/[A-Za-z0-9]+\s*$`)
	blockBreak      = regexp.MustCompile(`(?i)</(p|div|li|ul|ol|h[1-6]|blockquote|pre|tr|table|section|article|header|footer)\s*>|<br\s*/?>`)
	manyNewlines    = regexp.MustCompile(`\n{3,}`)
	trailingSpaces  = regexp.MustCompile(`[ \t]+\n`)
	avatarVariant   = regexp.MustCompile(`_(normal|bigger|mini)\.(jpe?g|png|gif|webp)$`)

	stripPolicy = bluemonday.StrictPolicy()
)

// StripShortLinks removes the shortened-link artifacts the social origin
// appends to post text. Several may be stacked (one per attached media).
func StripShortLinks(s string) string {
	for {
		next := shortLinkSuffix.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

// StripHTML converts block-level closing tags to newlines, drops every
// remaining tag and decodes entities.
func StripHTML(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blockBreak.ReplaceAllString(s, "\n")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, " ", " ")
	return s
}

// CollapseNewlines squeezes runs of three or more newlines down to two.
func CollapseNewlines(s string) string {
	s = trailingSpaces.ReplaceAllString(s, "\n")
	return manyNewlines.ReplaceAllString(s, "\n\n")
}

// CleanBody applies the full markup cleanup pipeline and trims the result.
func CleanBody(s string) string {
	return strings.TrimSpace(CollapseNewlines(StripHTML(s)))
}

// Truncate cuts s to at most budget runes plus an ellipsis. The cut happens
// at the last whitespace when that whitespace lies within the final 30% of
// the budget; otherwise the text is cut hard at the budget.
func Truncate(s string, budget int) string {
	runes := []rune(s)
	if budget <= 0 || len(runes) <= budget {
		return s
	}

	cut := runes[:budget]
	if unicode.IsSpace(runes[budget]) {
		return strings.TrimRightFunc(string(cut), unicode.IsSpace) + ellipsis
	}

	floor := budget * 7 / 10
	for i := len(cut) - 1; i >= floor; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}

	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + ellipsis
}

// UpgradeAvatarURL rewrites a known low-resolution profile image name to the
// 400x400 variant. Other URLs are returned unchanged.
func UpgradeAvatarURL(u string) string {
	return avatarVariant.ReplaceAllString(u, "_400x400.$2")
}
