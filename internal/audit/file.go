package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/AkZcH/MutexTalk/internal/storage"
)

// Lifecycle markers written only to the file sink.
const (
	EventInit     = "LOGGER_INIT"
	EventShutdown = "LOGGER_SHUTDOWN"
)

type fileRecord struct {
	TxID        string  `json:"txid"`
	TS          string  `json:"ts"`
	Action      string  `json:"action"`
	User        *string `json:"user"`
	Content     *string `json:"content"`
	PermitValue int     `json:"semaphore"`
}

type markerRecord struct {
	TxID  string `json:"txid"`
	TS    string `json:"ts"`
	Event string `json:"event"`
}

// FileSink appends one JSON object per line and fsyncs after every write.
type FileSink struct {
	mu     sync.Mutex
	f      *os.File
	closed bool
}

// OpenFile opens path for appending, creating it with mode 0600.
func OpenFile(path string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("audit: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	// tighten files created by an older build
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("audit: chmod: %w", err)
	}
	s := &FileSink{f: f}
	if err := s.marker(EventInit); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// Write appends entry as one JSON line.
func (s *FileSink) Write(entry storage.LogEntry) error {
	return s.writeLine(fileRecord{
		TxID:        uuid.NewString(),
		TS:          storage.FormatTime(entry.TS),
		Action:      string(entry.Action),
		User:        entry.User,
		Content:     entry.Content,
		PermitValue: entry.PermitValue,
	})
}

// Close writes the shutdown marker and closes the file. Safe to call twice.
func (s *FileSink) Close() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	markErr := s.marker(EventShutdown)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return errors.Join(markErr, s.f.Close())
}

func (s *FileSink) marker(event string) error {
	return s.writeLine(markerRecord{
		TxID:  uuid.NewString(),
		TS:    storage.FormatTime(storage.Now()),
		Event: event,
	})
}

func (s *FileSink) writeLine(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("audit: encode: %w", err)
	}
	raw = append(raw, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("audit: file sink closed")
	}
	if _, err := s.f.Write(raw); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}
	return nil
}
