// Package export serializes stored messages and links to CSV or JSON. It
// consumes the store's query results unchanged; nothing here re-derives or
// filters data.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"telelink/pkg/models"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q (expected csv or json)", s)
	}
}

type linkRow struct {
	ChannelID int64  `json:"channel_id"`
	MessageID int64  `json:"message_id"`
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	Source    string `json:"source"`
	Anchor    string `json:"anchor,omitempty"`
}

type messageRow struct {
	ChannelID int64     `json:"channel_id"`
	MessageID int64     `json:"message_id"`
	Date      time.Time `json:"date"`
	Text      string    `json:"text"`
	HasLink   bool      `json:"has_link"`
}

// Links writes the given links to w in the requested format.
func Links(w io.Writer, links []models.Link, format Format) error {
	switch format {
	case FormatJSON:
		rows := make([]linkRow, 0, len(links))
		for _, l := range links {
			rows = append(rows, linkRow{
				ChannelID: l.ChannelID,
				MessageID: l.MessageID,
				URL:       l.URL,
				Domain:    l.Domain,
				Source:    string(l.Source),
				Anchor:    l.Anchor,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"channel_id", "message_id", "url", "domain", "source", "anchor"}); err != nil {
			return err
		}
		for _, l := range links {
			record := []string{
				strconv.FormatInt(l.ChannelID, 10),
				strconv.FormatInt(l.MessageID, 10),
				l.URL,
				l.Domain,
				string(l.Source),
				l.Anchor,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// Messages writes the given messages to w in the requested format.
func Messages(w io.Writer, messages []models.Message, format Format) error {
	switch format {
	case FormatJSON:
		rows := make([]messageRow, 0, len(messages))
		for _, m := range messages {
			rows = append(rows, messageRow{
				ChannelID: m.ChannelID,
				MessageID: m.MessageID,
				Date:      m.Date,
				Text:      m.Text,
				HasLink:   m.HasLink,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"channel_id", "message_id", "date", "text", "has_link"}); err != nil {
			return err
		}
		for _, m := range messages {
			record := []string{
				strconv.FormatInt(m.ChannelID, 10),
				strconv.FormatInt(m.MessageID, 10),
				m.Date.UTC().Format(time.RFC3339),
				m.Text,
				strconv.FormatBool(m.HasLink),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
