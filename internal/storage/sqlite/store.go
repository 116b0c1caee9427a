// Package sqlite provides an embedded SQLite storage.Store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

//go:embed schema.sql
var schema string

// Store persists messages and logs in one SQLite database.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// one writer connection; the engine serialises statements on it
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateMessage inserts a message stamped with the current UTC time.
func (s *Store) CreateMessage(ctx context.Context, user, body string) (storage.Message, error) {
	if err := storage.ValidateMessage(user, body); err != nil {
		return storage.Message{}, err
	}
	createdAt := storage.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (username, message, created_at) VALUES (?, ?, ?)`,
		user, body, storage.FormatTime(createdAt))
	if err != nil {
		return storage.Message{}, mapError("create message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.Message{}, mapError("create message", err)
	}
	return storage.Message{ID: id, Username: user, Body: body, CreatedAt: createdAt}, nil
}

// UpdateMessage rewrites the body of a message authored by user.
func (s *Store) UpdateMessage(ctx context.Context, id int64, user, body string) error {
	if err := storage.ValidateMessage(user, body); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET message = ? WHERE id = ? AND username = ?`, body, id, user)
	if err != nil {
		return mapError("update message", err)
	}
	return expectOneRow("update message", res)
}

// DeleteMessage removes a message authored by user.
func (s *Store) DeleteMessage(ctx context.Context, id int64, user string) error {
	if err := storage.ValidateUser(user); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ? AND username = ?`, id, user)
	if err != nil {
		return mapError("delete message", err)
	}
	return expectOneRow("delete message", res)
}

// ListMessages returns one page, newest first.
func (s *Store) ListMessages(ctx context.Context, page shared.Page) ([]storage.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, message, created_at FROM messages
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset())
	if err != nil {
		return nil, mapError("list messages", err)
	}
	defer rows.Close()

	msgs := make([]storage.Message, 0, page.Limit)
	for rows.Next() {
		var (
			msg       storage.Message
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &msg.Username, &msg.Body, &createdAt); err != nil {
			return nil, mapError("list messages", err)
		}
		if msg.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
			return nil, mapError("list messages", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list messages", err)
	}
	return msgs, nil
}

// AppendLog inserts one audit record.
func (s *Store) AppendLog(ctx context.Context, entry storage.LogEntry) (storage.LogEntry, error) {
	if err := storage.ValidateLogEntry(entry); err != nil {
		return storage.LogEntry{}, err
	}
	if entry.TS.IsZero() {
		entry.TS = storage.Now()
	}
	entry.TS = entry.TS.UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (ts, action, user, content, semaphore_value) VALUES (?, ?, ?, ?, ?)`,
		storage.FormatTime(entry.TS), string(entry.Action), entry.User, entry.Content, entry.PermitValue)
	if err != nil {
		return storage.LogEntry{}, mapError("append log", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return storage.LogEntry{}, mapError("append log", err)
	}
	return entry, nil
}

// ListLogs returns one page of audit records, newest first.
func (s *Store) ListLogs(ctx context.Context, page shared.Page) ([]storage.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, action, user, content, semaphore_value FROM transactions
		 ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset())
	if err != nil {
		return nil, mapError("list logs", err)
	}
	defer rows.Close()

	logs := make([]storage.LogEntry, 0, page.Limit)
	for rows.Next() {
		var (
			entry  storage.LogEntry
			ts     string
			action string
		)
		if err := rows.Scan(&entry.ID, &ts, &action, &entry.User, &entry.Content, &entry.PermitValue); err != nil {
			return nil, mapError("list logs", err)
		}
		if entry.TS, err = storage.ParseTime(ts); err != nil {
			return nil, mapError("list logs", err)
		}
		entry.Action = storage.Action(action)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list logs", err)
	}
	return logs, nil
}

func expectOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return shared.ErrNotFoundOrNotOwned
	}
	return nil
}

func mapError(op string, err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidInput, op, err)
	}
	return storage.Wrap(op, err)
}
