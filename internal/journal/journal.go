// Package journal records every message the bot sees or sends. The Bot API
// cannot list chat history, so the journal is what IterateMessages walks.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
	"github.com/pkg/errors"

	"wipe-commander/internal/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	chat_id     INTEGER NOT NULL,
	message_id  INTEGER NOT NULL,
	sender_id   INTEGER NOT NULL,
	text        TEXT    NOT NULL DEFAULT '',
	reply_to_id INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (chat_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages (chat_id, sender_id);
`

// Journal is a SQLite-backed message log.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path. ":memory:" keeps it in RAM.
func Open(path string) (*Journal, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create journal directory for %q", path)
		}
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %q", path)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping journal")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate journal")
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores m, replacing an earlier copy (edits keep the same id).
func (j *Journal) Record(ctx context.Context, chatID int64, m chat.MessageRecord, createdAt int64) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (chat_id, message_id, sender_id, text, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		chatID, m.ID, m.SenderID, m.Text, m.ReplyToID, createdAt,
	)
	if err != nil {
		return errors.Wrapf(err, "record message %d of chat %d", m.ID, chatID)
	}
	return nil
}

// Forget removes ids from the journal.
func (j *Journal) Forget(ctx context.Context, chatID int64, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, chatID)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := j.db.ExecContext(ctx,
		"DELETE FROM messages WHERE chat_id = ? AND message_id IN ("+placeholders+")", args...)
	if err != nil {
		return errors.Wrapf(err, "forget %d messages of chat %d", len(ids), chatID)
	}
	return nil
}

// Iterate calls fn for every message of chatID matching filter, newest first.
func (j *Journal) Iterate(ctx context.Context, chatID int64, filter chat.Filter, fn func(chat.MessageRecord) error) error {
	query := "SELECT message_id, sender_id, text, reply_to_id FROM messages WHERE chat_id = ?"
	args := []any{chatID}
	if filter.SenderID != 0 {
		query += " AND sender_id = ?"
		args = append(args, filter.SenderID)
	}
	query += " ORDER BY message_id DESC"

	// Materialize before calling fn so callbacks may write to the journal.
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "list messages of chat %d", chatID)
	}
	var records []chat.MessageRecord
	for rows.Next() {
		var m chat.MessageRecord
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Text, &m.ReplyToID); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan message")
		}
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errors.Wrap(err, "iterate messages")
	}
	rows.Close()

	for _, m := range records {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}
