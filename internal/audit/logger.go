// Package audit records every transaction into two independent sinks: the
// storage backend and an append-only JSON-lines file.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

// Sink names used in logs and metrics.
const (
	SinkStore = "store"
	SinkFile  = "file"
)

// StoreSink is the storage half of the audit trail.
type StoreSink interface {
	AppendLog(ctx context.Context, entry storage.LogEntry) (storage.LogEntry, error)
}

// FailureCounter receives one call per record a sink failed to persist.
type FailureCounter interface {
	AuditSinkFailed(sink string)
}

// Receipt reports what each sink did with one record.
type Receipt struct {
	Entry    storage.LogEntry
	Rejected error
	StoreErr error
	FileErr  error
}

// Err joins every failure on the receipt; nil when both sinks succeeded.
func (r Receipt) Err() error {
	return errors.Join(r.Rejected, r.StoreErr, r.FileErr)
}

// Logger fans records out to its sinks. Sink failures never propagate to the
// operation being audited.
type Logger struct {
	store   StoreSink
	file    *FileSink
	log     *slog.Logger
	metrics FailureCounter
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the structured logger used for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		if logger != nil {
			l.log = logger
		}
	}
}

// WithMetrics sets the failure counter.
func WithMetrics(metrics FailureCounter) Option {
	return func(l *Logger) { l.metrics = metrics }
}

// New builds a Logger. Either sink may be nil to disable it.
func New(store StoreSink, file *FileSink, opts ...Option) *Logger {
	l := &Logger{store: store, file: file, log: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record writes one audit record. Empty user or content are stored as null.
// permitValue is the permit state after the action: 0 held, 1 free.
func (l *Logger) Record(ctx context.Context, action storage.Action, user, content string, permitValue int) Receipt {
	if permitValue != 0 && permitValue != 1 {
		err := fmt.Errorf("%w: permit value %d", shared.ErrInvalidInput, permitValue)
		l.log.Warn("audit record rejected", slog.String("action", string(action)), slog.Any("error", err))
		return Receipt{Rejected: err}
	}

	entry := storage.LogEntry{
		TS:          storage.Now(),
		Action:      action,
		User:        optional(user),
		Content:     optional(truncate(content, storage.MaxMessageLen)),
		PermitValue: permitValue,
	}
	receipt := Receipt{Entry: entry}

	if l.store != nil {
		stored, err := l.store.AppendLog(ctx, entry)
		if err != nil {
			receipt.StoreErr = err
			l.failed(SinkStore, entry, err)
		} else {
			receipt.Entry = stored
		}
	}
	if l.file != nil {
		if err := l.file.Write(entry); err != nil {
			receipt.FileErr = err
			l.failed(SinkFile, entry, err)
		}
	}
	return receipt
}

func (l *Logger) failed(sink string, entry storage.LogEntry, err error) {
	l.log.Warn("audit sink failed",
		slog.String("sink", sink),
		slog.String("action", string(entry.Action)),
		slog.Any("error", err))
	if l.metrics != nil {
		l.metrics.AuditSinkFailed(sink)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// Recorder is the write side of the audit trail consumed by the services.
type Recorder interface {
	Record(ctx context.Context, action storage.Action, user, content string, permitValue int) Receipt
}

var _ Recorder = (*Logger)(nil)
