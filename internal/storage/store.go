// Package storage defines the persistence contract shared by every backend.
package storage

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/AkZcH/MutexTalk/internal/shared"
)

const (
	// MaxUsernameLen bounds message authors.
	MaxUsernameLen = 64
	// MaxMessageLen bounds message bodies and log content.
	MaxMessageLen = 2000
	// TimestampLayout is the ISO-8601 UTC layout used for persisted timestamps.
	TimestampLayout = "2006-01-02T15:04:05Z"
)

// Action enumerates audit log actions.
type Action string

const (
	ActionCreate      Action = "CREATE"
	ActionUpdate      Action = "UPDATE"
	ActionDelete      Action = "DELETE"
	ActionRead        Action = "READ"
	ActionAcquire     Action = "ACQUIRE"
	ActionRelease     Action = "RELEASE"
	ActionAdminAction Action = "ADMIN_ACTION"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionRead, ActionAcquire, ActionRelease, ActionAdminAction:
		return true
	}
	return false
}

// Message is one chat log entry.
type Message struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// LogEntry is one audit record. User and Content are nil when absent.
type LogEntry struct {
	ID          int64     `json:"id"`
	TS          time.Time `json:"ts"`
	Action      Action    `json:"action"`
	User        *string   `json:"user"`
	Content     *string   `json:"content"`
	PermitValue int       `json:"semaphore"`
}

// Store is the persistence contract. Implementations must behave identically.
type Store interface {
	CreateMessage(ctx context.Context, user, body string) (Message, error)
	UpdateMessage(ctx context.Context, id int64, user, body string) error
	DeleteMessage(ctx context.Context, id int64, user string) error
	ListMessages(ctx context.Context, page shared.Page) ([]Message, error)
	AppendLog(ctx context.Context, entry LogEntry) (LogEntry, error)
	ListLogs(ctx context.Context, page shared.Page) ([]LogEntry, error)
	Close() error
}

// Now returns the current UTC time at second precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// FormatTime renders t with TimestampLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTime parses a TimestampLayout value.
func ParseTime(value string) (time.Time, error) {
	return time.Parse(TimestampLayout, value)
}

// ValidateMessage enforces the author and body bounds.
func ValidateMessage(user, body string) error {
	if err := ValidateUser(user); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(body); n == 0 || n > MaxMessageLen {
		return fmt.Errorf("%w: message must be 1-%d characters", shared.ErrInvalidInput, MaxMessageLen)
	}
	return nil
}

// ValidateUser enforces the author bounds.
func ValidateUser(user string) error {
	if n := utf8.RuneCountInString(user); n == 0 || n > MaxUsernameLen {
		return fmt.Errorf("%w: username must be 1-%d characters", shared.ErrInvalidInput, MaxUsernameLen)
	}
	return nil
}

// ValidateLogEntry checks an entry before it is appended.
func ValidateLogEntry(entry LogEntry) error {
	if !entry.Action.Valid() {
		return fmt.Errorf("%w: unknown log action %q", shared.ErrInvalidInput, entry.Action)
	}
	if entry.PermitValue != 0 && entry.PermitValue != 1 {
		return fmt.Errorf("%w: permit value must be 0 or 1", shared.ErrInvalidInput)
	}
	if entry.Content != nil && utf8.RuneCountInString(*entry.Content) > MaxMessageLen {
		return fmt.Errorf("%w: log content longer than %d characters", shared.ErrInvalidInput, MaxMessageLen)
	}
	return nil
}

// Wrap marks err as a storage failure unless it already carries a code.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if shared.CodeOf(err) != shared.CodeGeneral {
		return err
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrStorage, op, err)
}
