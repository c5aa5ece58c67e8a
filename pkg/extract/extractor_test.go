package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telelink/pkg/models"
	"telelink/pkg/telegram"
)

func TestExtractPlainEntity(t *testing.T) {
	msg := telegram.Message{
		ID:   1,
		Text: "check https://example.com/page today",
		Entities: []telegram.Entity{
			{Kind: telegram.EntityURL, Offset: 6, Length: 24},
		},
	}

	links := Extract(msg)
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/page", links[0].URL)
	assert.Equal(t, models.SourceEntityURL, links[0].Source)
	assert.Equal(t, "example.com", links[0].Domain)
	assert.Equal(t, int64(1), links[0].MessageID)
	assert.Empty(t, links[0].Anchor)
}

func TestExtractMaskedLinkKeepsAnchor(t *testing.T) {
	msg := telegram.Message{
		ID:   2,
		Text: "read the docs here",
		Entities: []telegram.Entity{
			{Kind: telegram.EntityTextURL, Offset: 9, Length: 9, URL: "https://docs.example.com/guide"},
		},
	}

	links := Extract(msg)
	require.Len(t, links, 1)
	assert.Equal(t, "https://docs.example.com/guide", links[0].URL)
	assert.Equal(t, models.SourceEntityTextURL, links[0].Source)
	assert.Equal(t, "docs here", links[0].Anchor)
}

func TestExtractRegexTrimsTrailingPunctuation(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"see http://ex.com/a.", "http://ex.com/a"},
		{"really? http://ex.com/a?!", "http://ex.com/a"},
		{"(docs: https://ex.com/a)", "https://ex.com/a"},
		{"wiki https://en.wikipedia.org/wiki/Go_(language)", "https://en.wikipedia.org/wiki/Go_(language)"},
		{"quote \"https://ex.com/a\"", "https://ex.com/a"},
	}

	for _, tc := range cases {
		links := Extract(telegram.Message{ID: 3, Text: tc.text})
		require.Len(t, links, 1, "text: %s", tc.text)
		assert.Equal(t, tc.want, links[0].URL, "text: %s", tc.text)
		assert.Equal(t, models.SourceRegex, links[0].Source)
	}
}

func TestExtractBareHosts(t *testing.T) {
	links := Extract(telegram.Message{ID: 4, Text: "try www.example.com or golang.org/doc"})
	require.Len(t, links, 2)
	assert.Equal(t, "www.example.com", links[0].URL)
	assert.Equal(t, "example.com", links[0].Domain)
	assert.Equal(t, "golang.org/doc", links[1].URL)
}

func TestExtractNoLinks(t *testing.T) {
	assert.Empty(t, Extract(telegram.Message{ID: 5, Text: "plain words, no links at all"}))
	assert.Empty(t, Extract(telegram.Message{ID: 6, Text: ""}))
}

func TestExtractEntityWinsOverRegex(t *testing.T) {
	// The same URL appears once as a masked entity and once in plain text;
	// the entity pass has higher precedence and must win.
	text := "here and raw https://ex.com/a too"
	msg := telegram.Message{
		ID:   7,
		Text: text,
		Entities: []telegram.Entity{
			{Kind: telegram.EntityTextURL, Offset: 0, Length: 4, URL: "https://ex.com/a"},
		},
	}

	links := Extract(msg)
	require.Len(t, links, 1)
	assert.Equal(t, models.SourceEntityTextURL, links[0].Source)
	assert.Equal(t, "here", links[0].Anchor)
}

func TestExtractButtonLowestPrecedence(t *testing.T) {
	msg := telegram.Message{
		ID:   8,
		Text: "download at https://ex.com/get",
		Entities: []telegram.Entity{
			{Kind: telegram.EntityURL, Offset: 12, Length: 18},
		},
		Buttons: []telegram.Button{
			{Label: "Download", URL: "https://ex.com/get"},
			{Label: "Homepage", URL: "https://ex.com"},
		},
	}

	links := Extract(msg)
	require.Len(t, links, 2)
	assert.Equal(t, models.SourceEntityURL, links[0].Source)
	assert.Equal(t, "https://ex.com", links[1].URL)
	assert.Equal(t, models.SourceButton, links[1].Source)
	assert.Equal(t, "Homepage", links[1].Anchor)
}

func TestExtractDedupAcrossCaseAndSlash(t *testing.T) {
	// Same target in different spellings dedupes to one link.
	links := Extract(telegram.Message{
		ID:   9,
		Text: "https://Example.COM/path and https://example.com/path/",
	})
	require.Len(t, links, 1)
}

func TestExtractMalformedEntityFallsBackToRegex(t *testing.T) {
	msg := telegram.Message{
		ID:   10,
		Text: "go to https://ex.com/a now",
		Entities: []telegram.Entity{
			// Length runs past the end of the text.
			{Kind: telegram.EntityURL, Offset: 6, Length: 500},
		},
	}

	links := Extract(msg)
	require.Len(t, links, 1)
	assert.Equal(t, models.SourceRegex, links[0].Source)
	assert.Equal(t, "https://ex.com/a", links[0].URL)
}

func TestExtractUnicodeOffsets(t *testing.T) {
	// Entity offsets count runes, not bytes.
	msg := telegram.Message{
		ID:   11,
		Text: "привет мир https://ex.com/a",
		Entities: []telegram.Entity{
			{Kind: telegram.EntityURL, Offset: 11, Length: 16},
		},
	}

	links := Extract(msg)
	require.Len(t, links, 1)
	assert.Equal(t, "https://ex.com/a", links[0].URL)
	assert.Equal(t, models.SourceEntityURL, links[0].Source)
}

func TestExtractDeterministic(t *testing.T) {
	msg := telegram.Message{
		ID:   12,
		Text: "a https://one.example.com b https://two.example.com c www.three.example.com",
		Buttons: []telegram.Button{
			{Label: "More", URL: "https://two.example.com"},
		},
	}

	first := Extract(msg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Extract(msg))
	}
}
