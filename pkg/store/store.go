// Package store is the durable layer: channels, messages, links, and
// per-channel scrape cursors in SQLite. All writes for one page commit in a
// single transaction so a concurrent reader never observes a message
// without its links or an advanced cursor without its messages.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	errs "telelink/pkg/errors"
	"telelink/pkg/extract"
	"telelink/pkg/logger"
	"telelink/pkg/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS channels (
    id        INTEGER PRIMARY KEY,
    username  TEXT,
    title     TEXT
);

CREATE TABLE IF NOT EXISTS messages (
    channel_id  INTEGER NOT NULL,
    message_id  INTEGER NOT NULL,
    ts          TIMESTAMP NOT NULL,
    text        TEXT NOT NULL DEFAULT '',
    has_link    INTEGER NOT NULL DEFAULT 0,
    scraped_at  TIMESTAMP NOT NULL,
    PRIMARY KEY (channel_id, message_id)
);

CREATE TABLE IF NOT EXISTS links (
    channel_id      INTEGER NOT NULL,
    message_id      INTEGER NOT NULL,
    url             TEXT NOT NULL,
    normalized_url  TEXT NOT NULL,
    domain          TEXT NOT NULL DEFAULT '',
    source_kind     TEXT NOT NULL,
    anchor_text     TEXT NOT NULL DEFAULT '',
    UNIQUE (channel_id, message_id, normalized_url)
);

CREATE TABLE IF NOT EXISTS cursors (
    channel_id       INTEGER PRIMARY KEY,
    last_message_id  INTEGER NOT NULL,
    last_scraped_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages (channel_id, ts);
CREATE INDEX IF NOT EXISTS idx_links_domain ON links (domain);
`

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.Wrap(errs.KindStorage, "failed to create database directory", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "failed to open database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindStorage, "failed to connect to database", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindStorage, "failed to create schema", err)
	}

	log.InfoWithFields("database opened", map[string]interface{}{"path": path})
	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// UpsertChannel inserts channel metadata or refreshes its title and
// username on conflict.
func (s *Store) UpsertChannel(ch models.Channel) error {
	_, err := s.db.Exec(`
		INSERT INTO channels (id, username, title) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			title    = excluded.title`,
		ch.ID, ch.Username, ch.Title)
	if err != nil {
		return errs.Wrap(errs.KindStorage, "failed to upsert channel", err)
	}
	return nil
}

// Cursor returns the last ingested message id for a channel. The second
// return value is false for a channel never scraped.
func (s *Store) Cursor(channelID int64) (int64, bool, error) {
	var last int64
	err := s.db.QueryRow(
		`SELECT last_message_id FROM cursors WHERE channel_id = ?`, channelID).Scan(&last)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.Wrap(errs.KindStorage, "failed to read cursor", err)
	}
	return last, true, nil
}

// AdvanceCursor moves the cursor forward. A value at or below the stored
// cursor is a no-op, which protects against out-of-order replays.
func (s *Store) AdvanceCursor(channelID, newLastID int64) error {
	return s.advanceCursor(s.db, channelID, newLastID)
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) advanceCursor(e execer, channelID, newLastID int64) error {
	_, err := e.Exec(`
		INSERT INTO cursors (channel_id, last_message_id, last_scraped_at)
		VALUES (?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			last_message_id = MAX(last_message_id, excluded.last_message_id),
			last_scraped_at = excluded.last_scraped_at`,
		channelID, newLastID, time.Now().UTC())
	if err != nil {
		return errs.Wrap(errs.KindStorage, "failed to advance cursor", err)
	}
	return nil
}

// PageWrite is one durably-committed unit: the messages of a fetched page,
// their links, and the cursor position after the page.
type PageWrite struct {
	ChannelID int64
	Messages  []models.Message
	Links     []models.Link
	NewCursor int64
}

// PageResult reports how many rows the commit actually inserted; re-runs
// over already-stored pages insert zero.
type PageResult struct {
	MessagesInserted int
	LinksInserted    int
}

// CommitPage writes messages, links, and the cursor advance atomically.
// Message and link inserts are insert-or-ignore, so committing the same
// page twice is harmless.
func (s *Store) CommitPage(page PageWrite) (PageResult, error) {
	var result PageResult

	tx, err := s.db.Begin()
	if err != nil {
		return result, errs.Wrap(errs.KindStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	msgStmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO messages (channel_id, message_id, ts, text, has_link, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return result, errs.Wrap(errs.KindStorage, "failed to prepare message insert", err)
	}
	defer msgStmt.Close()

	now := time.Now().UTC()
	for _, m := range page.Messages {
		res, err := msgStmt.Exec(page.ChannelID, m.MessageID, m.Date.UTC(), m.Text, m.HasLink, now)
		if err != nil {
			return result, errs.Wrap(errs.KindStorage,
				fmt.Sprintf("failed to insert message %d", m.MessageID), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			result.MessagesInserted++
		}
	}

	linkStmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO links (channel_id, message_id, url, normalized_url, domain, source_kind, anchor_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return result, errs.Wrap(errs.KindStorage, "failed to prepare link insert", err)
	}
	defer linkStmt.Close()

	for _, l := range page.Links {
		res, err := linkStmt.Exec(page.ChannelID, l.MessageID, l.URL,
			extract.NormalizeURL(l.URL), l.Domain, string(l.Source), l.Anchor)
		if err != nil {
			return result, errs.Wrap(errs.KindStorage,
				fmt.Sprintf("failed to insert link for message %d", l.MessageID), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			result.LinksInserted++
		}
	}

	if err := s.advanceCursor(tx, page.ChannelID, page.NewCursor); err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, errs.Wrap(errs.KindStorage, "failed to commit page", err)
	}
	return result, nil
}

// ClearChannel deletes all stored rows for a channel, including its cursor.
func (s *Store) ClearChannel(channelID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.KindStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"messages", "links", "cursors"} {
		if _, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE channel_id = ?`, table), channelID); err != nil {
			return errs.Wrap(errs.KindStorage, "failed to clear "+table, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM channels WHERE id = ?`, channelID); err != nil {
		return errs.Wrap(errs.KindStorage, "failed to clear channel row", err)
	}
	return tx.Commit()
}
