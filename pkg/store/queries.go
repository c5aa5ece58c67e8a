package store

import (
	"strings"
	"time"

	errs "telelink/pkg/errors"
	"telelink/pkg/models"
)

// MessageQuery filters the message listing. Zero values mean "no filter".
type MessageQuery struct {
	ChannelID int64
	From      *time.Time
	To        *time.Time
	Keyword   string // substring match on the message text
	HasLink   *bool
	Limit     int
}

// LinkQuery filters the link listing. Zero values mean "no filter".
type LinkQuery struct {
	ChannelID int64
	Domain    string
	Search    string // substring match on the URL
	From      *time.Time
	To        *time.Time
	Limit     int
}

// ChannelStats is a channel with aggregate counts for the browsing surface.
type ChannelStats struct {
	Channel       models.Channel
	MessageCount  int64
	LinkCount     int64
	LastScrapedAt *time.Time
}

// Messages lists stored messages, newest first.
func (s *Store) Messages(q MessageQuery) ([]models.Message, error) {
	var clauses []string
	var args []interface{}

	if q.ChannelID != 0 {
		clauses = append(clauses, "channel_id = ?")
		args = append(args, q.ChannelID)
	}
	if q.From != nil {
		clauses = append(clauses, "ts >= ?")
		args = append(args, q.From.UTC())
	}
	if q.To != nil {
		clauses = append(clauses, "ts <= ?")
		args = append(args, q.To.UTC())
	}
	if q.Keyword != "" {
		clauses = append(clauses, "text LIKE ?")
		args = append(args, "%"+q.Keyword+"%")
	}
	if q.HasLink != nil {
		clauses = append(clauses, "has_link = ?")
		args = append(args, *q.HasLink)
	}

	query := "SELECT channel_id, message_id, ts, text, has_link FROM messages"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY ts DESC, message_id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "failed to query messages", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ChannelID, &m.MessageID, &m.Date, &m.Text, &m.HasLink); err != nil {
			return nil, errs.Wrap(errs.KindStorage, "failed to scan message", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Links lists stored links, newest message first.
func (s *Store) Links(q LinkQuery) ([]models.Link, error) {
	var clauses []string
	var args []interface{}

	if q.ChannelID != 0 {
		clauses = append(clauses, "l.channel_id = ?")
		args = append(args, q.ChannelID)
	}
	if q.Domain != "" {
		clauses = append(clauses, "l.domain = ?")
		args = append(args, q.Domain)
	}
	if q.Search != "" {
		clauses = append(clauses, "l.url LIKE ?")
		args = append(args, "%"+q.Search+"%")
	}
	if q.From != nil {
		clauses = append(clauses, "m.ts >= ?")
		args = append(args, q.From.UTC())
	}
	if q.To != nil {
		clauses = append(clauses, "m.ts <= ?")
		args = append(args, q.To.UTC())
	}

	query := `
		SELECT l.channel_id, l.message_id, l.url, l.domain, l.source_kind, l.anchor_text
		FROM links l
		JOIN messages m ON m.channel_id = l.channel_id AND m.message_id = l.message_id`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY m.ts DESC, l.message_id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "failed to query links", err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var l models.Link
		var source string
		if err := rows.Scan(&l.ChannelID, &l.MessageID, &l.URL, &l.Domain, &source, &l.Anchor); err != nil {
			return nil, errs.Wrap(errs.KindStorage, "failed to scan link", err)
		}
		l.Source = models.LinkSource(source)
		links = append(links, l)
	}
	return links, rows.Err()
}

// Domains returns the sorted list of distinct link domains.
func (s *Store) Domains() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT domain FROM links WHERE domain != '' ORDER BY domain`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "failed to query domains", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errs.Wrap(errs.KindStorage, "failed to scan domain", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// Channels lists stored channels with message/link counts and the last
// scrape time, most recently scraped first.
func (s *Store) Channels() ([]ChannelStats, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.username, c.title,
		       (SELECT COUNT(*) FROM messages m WHERE m.channel_id = c.id),
		       (SELECT COUNT(*) FROM links l WHERE l.channel_id = c.id),
		       (SELECT last_scraped_at FROM cursors cu WHERE cu.channel_id = c.id)
		FROM channels c
		ORDER BY 6 DESC NULLS LAST`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "failed to query channels", err)
	}
	defer rows.Close()

	var stats []ChannelStats
	for rows.Next() {
		var cs ChannelStats
		var last *time.Time
		if err := rows.Scan(&cs.Channel.ID, &cs.Channel.Username, &cs.Channel.Title,
			&cs.MessageCount, &cs.LinkCount, &last); err != nil {
			return nil, errs.Wrap(errs.KindStorage, "failed to scan channel stats", err)
		}
		cs.LastScrapedAt = last
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}
