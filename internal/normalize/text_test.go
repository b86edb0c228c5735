package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripShortLinks(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"single", "Vote today https://t.co/AbC123", "Vote today"},
		{"stacked", "Debate night https://t.co/aaa https://t.co/bbb", "Debate night"},
		{"trailing space", "Live now https://t.co/xyz  ", "Live now"},
		{"mid text kept", "see https://t.co/abc for details", "see https://t.co/abc for details"},
		{"other host kept", "read https://example.com/x", "read https://example.com/x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripShortLinks(tc.in))
		})
	}
}

func TestCleanBody_BlockTagsBecomeNewlines(t *testing.T) {
	in := "<p>First paragraph</p><p>Second &amp; last</p><div>tail<br/>line</div>"
	assert.Equal(t, "First paragraph\nSecond & last\ntail\nline", CleanBody(in))
}

func TestCleanBody_CollapsesNewlines(t *testing.T) {
	in := "one\n\n\n\n\ntwo\n\n\nthree\n\nfour"
	assert.Equal(t, "one\n\ntwo\n\nthree\n\nfour", CleanBody(in))
}

func TestCleanBody_StripsInlineTagsAndEntities(t *testing.T) {
	in := `<a href="https://x.test">Senate</a> votes &lt;today&gt; <b>at 5</b>`
	assert.Equal(t, "Senate votes <today> at 5", CleanBody(in))
}

func TestTruncate_ShortInputUnchanged(t *testing.T) {
	assert.Equal(t, "short body", Truncate("short body", 800))
}

func TestTruncate_CutsAtWordBoundary(t *testing.T) {
	// 590 chars of words, one space at index 590, then an unbroken 229-char run.
	head := strings.Repeat("abcd ", 118)[:590]
	body := head + " " + strings.Repeat("x", 229)
	require.Equal(t, 820, utf8.RuneCountInString(body))

	got := Truncate(body, 800)

	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, strings.TrimRight(head, " ")+"…", got)
	assert.NotContains(t, got, "x")
}

func TestTruncate_HardCutWhenNoLateWhitespace(t *testing.T) {
	body := "lead " + strings.Repeat("y", 900)

	got := Truncate(body, 800)

	assert.Equal(t, 801, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "y…"))
}

func TestTruncate_KeepsWordEndingAtBudget(t *testing.T) {
	got := Truncate("ab cd ef gh ij", 8)
	assert.Equal(t, "ab cd ef…", got)
}

func TestTruncate_CountsRunes(t *testing.T) {
	body := strings.Repeat("é", 20)
	got := Truncate(body, 10)
	assert.Equal(t, strings.Repeat("é", 10)+"…", got)
}

func TestUpgradeAvatarURL(t *testing.T) {
	cases := map[string]string{
		"https://pbs.twimg.com/profile_images/1/abc_normal.jpg":  "https://pbs.twimg.com/profile_images/1/abc_400x400.jpg",
		"https://pbs.twimg.com/profile_images/1/abc_bigger.png":  "https://pbs.twimg.com/profile_images/1/abc_400x400.png",
		"https://pbs.twimg.com/profile_images/1/abc_400x400.jpg": "https://pbs.twimg.com/profile_images/1/abc_400x400.jpg",
		"https://cdn.example.com/avatar.jpg":                     "https://cdn.example.com/avatar.jpg",
		"":                                                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, UpgradeAvatarURL(in), in)
	}
}
