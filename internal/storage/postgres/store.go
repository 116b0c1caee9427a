// Package postgres provides a PostgreSQL storage.Store on top of pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

// checkViolation is the SQLSTATE raised by CHECK constraints.
const checkViolation = "23514"

// Store persists messages and logs in PostgreSQL. Schema is owned by platform/db migrations.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// CreateMessage inserts a message stamped with the current UTC time.
func (s *Store) CreateMessage(ctx context.Context, user, body string) (storage.Message, error) {
	if err := storage.ValidateMessage(user, body); err != nil {
		return storage.Message{}, err
	}
	msg := storage.Message{Username: user, Body: body, CreatedAt: storage.Now()}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (username, message, created_at) VALUES ($1, $2, $3) RETURNING id`,
		user, body, msg.CreatedAt).Scan(&msg.ID)
	if err != nil {
		return storage.Message{}, mapError("create message", err)
	}
	return msg, nil
}

// UpdateMessage rewrites the body of a message authored by user.
func (s *Store) UpdateMessage(ctx context.Context, id int64, user, body string) error {
	if err := storage.ValidateMessage(user, body); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET message = $1 WHERE id = $2 AND username = $3`, body, id, user)
	if err != nil {
		return mapError("update message", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFoundOrNotOwned
	}
	return nil
}

// DeleteMessage removes a message authored by user.
func (s *Store) DeleteMessage(ctx context.Context, id int64, user string) error {
	if err := storage.ValidateUser(user); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1 AND username = $2`, id, user)
	if err != nil {
		return mapError("delete message", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFoundOrNotOwned
	}
	return nil
}

// ListMessages returns one page, newest first.
func (s *Store) ListMessages(ctx context.Context, page shared.Page) ([]storage.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, username, message, created_at FROM messages
		 ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset())
	if err != nil {
		return nil, mapError("list messages", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Message, error) {
		var msg storage.Message
		err := row.Scan(&msg.ID, &msg.Username, &msg.Body, &msg.CreatedAt)
		msg.CreatedAt = msg.CreatedAt.UTC()
		return msg, err
	})
	if err != nil {
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
	err := s.pool.QueryRow(ctx,
		`INSERT INTO transactions (ts, action, username, content, semaphore_value)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		entry.TS, string(entry.Action), entry.User, entry.Content, entry.PermitValue).Scan(&entry.ID)
	if err != nil {
		return storage.LogEntry{}, mapError("append log", err)
	}
	return entry, nil
}

// ListLogs returns one page of audit records, newest first.
func (s *Store) ListLogs(ctx context.Context, page shared.Page) ([]storage.LogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, action, username, content, semaphore_value FROM transactions
		 ORDER BY ts DESC, id DESC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset())
	if err != nil {
		return nil, mapError("list logs", err)
	}
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.LogEntry, error) {
		var (
			entry  storage.LogEntry
			action string
			value  int16
		)
		err := row.Scan(&entry.ID, &entry.TS, &action, &entry.User, &entry.Content, &value)
		entry.TS = entry.TS.UTC()
		entry.Action = storage.Action(action)
		entry.PermitValue = int(value)
		return entry, err
	})
	if err != nil {
		return nil, mapError("list logs", err)
	}
	return logs, nil
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
		return fmt.Errorf("%w: %s: %s", shared.ErrInvalidInput, op, pgErr.Message)
	}
	return storage.Wrap(op, err)
}
