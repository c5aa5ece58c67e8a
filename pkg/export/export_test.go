package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telelink/pkg/models"
)

func sampleLinks() []models.Link {
	return []models.Link{
		{ChannelID: 7, MessageID: 101, URL: "https://ex.com/a", Domain: "ex.com", Source: models.SourceEntityURL},
		{ChannelID: 7, MessageID: 103, URL: "https://ex.com/b", Domain: "ex.com", Source: models.SourceEntityTextURL, Anchor: "the docs"},
	}
}

func sampleMessages() []models.Message {
	return []models.Message{
		{ChannelID: 7, MessageID: 101, Date: time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC), Text: "see https://ex.com/a", HasLink: true},
		{ChannelID: 7, MessageID: 102, Date: time.Date(2026, 8, 10, 9, 1, 0, 0, time.UTC), Text: "nothing"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestLinksCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Links(&buf, sampleLinks(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"channel_id", "message_id", "url", "domain", "source", "anchor"}, records[0])
	assert.Equal(t, []string{"7", "101", "https://ex.com/a", "ex.com", "entity_url", ""}, records[1])
	assert.Equal(t, []string{"7", "103", "https://ex.com/b", "ex.com", "entity_text_url", "the docs"}, records[2])
}

func TestLinksJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Links(&buf, sampleLinks(), FormatJSON))

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, "https://ex.com/a", rows[0]["url"])
	assert.Equal(t, "entity_url", rows[0]["source"])
	_, hasAnchor := rows[0]["anchor"]
	assert.False(t, hasAnchor, "empty anchor is omitted")
	assert.Equal(t, "the docs", rows[1]["anchor"])
}

func TestMessagesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Messages(&buf, sampleMessages(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"channel_id", "message_id", "date", "text", "has_link"}, records[0])
	assert.Equal(t, []string{"7", "101", "2026-08-10T09:00:00Z", "see https://ex.com/a", "true"}, records[1])
	assert.Equal(t, "false", records[2][4])
}

func TestMessagesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Messages(&buf, sampleMessages(), FormatJSON))

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "nothing", rows[1]["text"])
	assert.Equal(t, false, rows[1]["has_link"])
}

func TestEmptyExports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Links(&buf, nil, FormatJSON))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, Links(&buf, nil, FormatCSV))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
