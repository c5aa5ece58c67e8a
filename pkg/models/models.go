package models

import "time"

// LinkSource identifies which extraction pass produced a link.
type LinkSource string

const (
	// SourceEntityURL is an explicit link entity (the URL is visible in the text).
	SourceEntityURL LinkSource = "entity_url"
	// SourceEntityTextURL is a masked link entity (displayed text differs from the URL).
	SourceEntityTextURL LinkSource = "entity_text_url"
	// SourceRegex is a plain-text URL found by pattern matching.
	SourceRegex LinkSource = "regex"
	// SourceButton is an inline keyboard button target.
	SourceButton LinkSource = "button"
)

// Precedence returns the rank of a source kind; lower wins when the same
// normalized URL is produced by more than one pass.
func (s LinkSource) Precedence() int {
	switch s {
	case SourceEntityURL:
		return 0
	case SourceEntityTextURL:
		return 1
	case SourceRegex:
		return 2
	case SourceButton:
		return 3
	default:
		return 4
	}
}

// Channel is a message source the scraper is permitted to read.
type Channel struct {
	ID       int64
	Username string
	Title    string
}

// Message is a single scraped message. Message IDs are source-assigned,
// unique per channel, and monotonically increasing, so storage is
// append-only per channel.
type Message struct {
	ChannelID int64
	MessageID int64
	Date      time.Time
	Text      string
	HasLink   bool
}

// Link is one extracted URL. URL keeps the original casing and path; the
// store dedupes on the normalized form.
type Link struct {
	ChannelID int64
	MessageID int64
	URL       string
	Domain    string
	Source    LinkSource
	Anchor    string
}

// ScrapeCursor records the last ingested message id per channel. It only
// ever moves forward.
type ScrapeCursor struct {
	ChannelID     int64
	LastMessageID int64
	LastScrapedAt time.Time
}

// Filter bounds a single channel scrape.
type Filter struct {
	FromDate    *time.Time
	ToDate      *time.Time
	Keyword     string // server-side search filter
	Limit       int    // max messages, 0 = unlimited
	LinksOnly   bool   // store only messages that carry at least one link
	SkipScraped bool   // resume from the stored cursor
}
