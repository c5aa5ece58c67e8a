// Package telegram defines the contract the scraper needs from a Telegram
// client: channel resolution and paginated history retrieval. The MTProto
// session itself (connect, OTP, 2FA) lives behind implementations of Client.
package telegram

import (
	"context"
	"time"
)

// EntityKind distinguishes the two structured link annotations Telegram
// attaches to message text.
type EntityKind string

const (
	// EntityURL marks a span of the text that is itself a URL.
	EntityURL EntityKind = "url"
	// EntityTextURL marks a span whose displayed text differs from the
	// underlying URL (a masked link).
	EntityTextURL EntityKind = "text_url"
)

// Entity is a formatting annotation over a rune range of the message text.
// For EntityTextURL the target is in URL; for EntityURL the target is the
// covered text itself.
type Entity struct {
	Kind   EntityKind
	Offset int // rune offset into the message text
	Length int // rune length of the span
	URL    string
}

// Button is an inline keyboard button attached below a message.
type Button struct {
	Label string
	URL   string
}

// Message is one message as returned by the source, with the structured
// annotations the link extractor needs.
type Message struct {
	ID       int64
	Date     time.Time
	Text     string
	Entities []Entity
	Buttons  []Button
}

// Channel is resolved channel metadata.
type Channel struct {
	ID       int64
	Username string
	Title    string
}

// HistoryRequest is one page request. Results must be in strictly
// increasing message id order, contain only ids > AfterID, and at most
// PageSize messages.
type HistoryRequest struct {
	ChannelID int64
	AfterID   int64
	PageSize  int
	FromDate  *time.Time
	ToDate    *time.Time
	Keyword   string // server-side search filter, empty = none
}

// Client is the messaging-source collaborator. Implementations must return
// *errors.FloodWaitError when the source demands a pause, and classified
// *errors.Error values otherwise.
type Client interface {
	// ResolveChannel resolves a channel identifier (username, t.me link,
	// web client URL, or raw id) to channel metadata.
	ResolveChannel(ctx context.Context, identifier string) (*Channel, error)

	// History returns one page of messages per HistoryRequest.
	History(ctx context.Context, req HistoryRequest) ([]Message, error)
}
