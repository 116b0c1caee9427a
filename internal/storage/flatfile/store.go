// Package flatfile stores messages and logs as JSON-lines files.
//
// Messages are kept as a journal of create/update/delete events that is
// replayed on open; logs are appended one record per line. Every write is
// fsynced before the call returns.
package flatfile

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

const (
	messagesFile = "messages.jsonl"
	logsFile     = "logs.jsonl"
)

type op string

const (
	opCreate op = "create"
	opUpdate op = "update"
	opDelete op = "delete"
)

type event struct {
	Op        op     `json:"op"`
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	Body      string `json:"message,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type logLine struct {
	ID          int64   `json:"id"`
	TS          string  `json:"ts"`
	Action      string  `json:"action"`
	User        *string `json:"user"`
	Content     *string `json:"content"`
	PermitValue int     `json:"semaphore"`
}

// Store is a storage.Store backed by two append-only files.
type Store struct {
	mu sync.RWMutex

	messagesF *os.File
	logsF     *os.File

	messages  map[int64]storage.Message
	nextMsgID int64
	logs      []storage.LogEntry
	nextLogID int64
}

var _ storage.Store = (*Store)(nil)

// Open creates dir if needed and replays existing files.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("flatfile: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("flatfile: create dir: %w", err)
	}
	s := &Store{messages: make(map[int64]storage.Message), nextMsgID: 1, nextLogID: 1}

	var err error
	if s.messagesF, err = openAppend(filepath.Join(dir, messagesFile)); err != nil {
		return nil, err
	}
	if s.logsF, err = openAppend(filepath.Join(dir, logsFile)); err != nil {
		_ = s.messagesF.Close()
		return nil, err
	}
	if err := replay(s.messagesF, s.applyEvent); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("flatfile: replay messages: %w", err)
	}
	if err := replay(s.logsF, s.applyLog); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("flatfile: replay logs: %w", err)
	}
	return s, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("flatfile: open %s: %w", path, err)
	}
	return f, nil
}

// replay feeds every complete line to apply. A torn final line left by a
// crash mid-write is cut off so later appends start on a clean line.
func replay(f *os.File, apply func([]byte) error) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	reader := bufio.NewReader(f)
	var complete int64
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				return f.Truncate(complete)
			}
			return nil
		}
		if err != nil {
			return err
		}
		complete += int64(len(line))
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := apply(line); err != nil {
			return err
		}
	}
}

func (s *Store) applyEvent(line []byte) error {
	var ev event
	if err := json.Unmarshal(line, &ev); err != nil {
		return err
	}
	switch ev.Op {
	case opCreate:
		createdAt, err := storage.ParseTime(ev.CreatedAt)
		if err != nil {
			return err
		}
		s.messages[ev.ID] = storage.Message{ID: ev.ID, Username: ev.Username, Body: ev.Body, CreatedAt: createdAt}
	case opUpdate:
		if msg, ok := s.messages[ev.ID]; ok {
			msg.Body = ev.Body
			s.messages[ev.ID] = msg
		}
	case opDelete:
		delete(s.messages, ev.ID)
	default:
		return fmt.Errorf("unknown op %q", ev.Op)
	}
	if ev.ID >= s.nextMsgID {
		s.nextMsgID = ev.ID + 1
	}
	return nil
}

func (s *Store) applyLog(line []byte) error {
	var rec logLine
	if err := json.Unmarshal(line, &rec); err != nil {
		return err
	}
	ts, err := storage.ParseTime(rec.TS)
	if err != nil {
		return err
	}
	s.logs = append(s.logs, storage.LogEntry{
		ID:          rec.ID,
		TS:          ts,
		Action:      storage.Action(rec.Action),
		User:        rec.User,
		Content:     rec.Content,
		PermitValue: rec.PermitValue,
	})
	if rec.ID >= s.nextLogID {
		s.nextLogID = rec.ID + 1
	}
	return nil
}

func writeLine(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// CreateMessage appends a create event.
func (s *Store) CreateMessage(ctx context.Context, user, body string) (storage.Message, error) {
	if err := storage.ValidateMessage(user, body); err != nil {
		return storage.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return storage.Message{}, storage.Wrap("create message", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := storage.Message{ID: s.nextMsgID, Username: user, Body: body, CreatedAt: storage.Now()}
	ev := event{Op: opCreate, ID: msg.ID, Username: user, Body: body, CreatedAt: storage.FormatTime(msg.CreatedAt)}
	if err := writeLine(s.messagesF, ev); err != nil {
		return storage.Message{}, storage.Wrap("create message", err)
	}
	s.messages[msg.ID] = msg
	s.nextMsgID++
	return msg, nil
}

// UpdateMessage appends an update event when user authored id.
func (s *Store) UpdateMessage(ctx context.Context, id int64, user, body string) error {
	if err := storage.ValidateMessage(user, body); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return storage.Wrap("update message", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.Username != user {
		return shared.ErrNotFoundOrNotOwned
	}
	if err := writeLine(s.messagesF, event{Op: opUpdate, ID: id, Body: body}); err != nil {
		return storage.Wrap("update message", err)
	}
	msg.Body = body
	s.messages[id] = msg
	return nil
}

// DeleteMessage appends a delete event when user authored id.
func (s *Store) DeleteMessage(ctx context.Context, id int64, user string) error {
	if err := storage.ValidateUser(user); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return storage.Wrap("delete message", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.Username != user {
		return shared.ErrNotFoundOrNotOwned
	}
	if err := writeLine(s.messagesF, event{Op: opDelete, ID: id}); err != nil {
		return storage.Wrap("delete message", err)
	}
	delete(s.messages, id)
	return nil
}

// ListMessages returns one page, newest first.
func (s *Store) ListMessages(ctx context.Context, page shared.Page) ([]storage.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Wrap("list messages", err)
	}
	s.mu.RLock()
	all := make([]storage.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		all = append(all, msg)
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b storage.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	start, end := page.Window(len(all))
	return slices.Clone(all[start:end]), nil
}

// AppendLog writes one log line.
func (s *Store) AppendLog(ctx context.Context, entry storage.LogEntry) (storage.LogEntry, error) {
	if err := storage.ValidateLogEntry(entry); err != nil {
		return storage.LogEntry{}, err
	}
	if err := ctx.Err(); err != nil {
		return storage.LogEntry{}, storage.Wrap("append log", err)
	}
	if entry.TS.IsZero() {
		entry.TS = storage.Now()
	}
	entry.TS = entry.TS.UTC().Truncate(time.Second)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextLogID
	rec := logLine{
		ID:          entry.ID,
		TS:          storage.FormatTime(entry.TS),
		Action:      string(entry.Action),
		User:        entry.User,
		Content:     entry.Content,
		PermitValue: entry.PermitValue,
	}
	if err := writeLine(s.logsF, rec); err != nil {
		return storage.LogEntry{}, storage.Wrap("append log", err)
	}
	s.logs = append(s.logs, entry)
	s.nextLogID++
	return entry, nil
}

// ListLogs returns one page of logs, newest first.
func (s *Store) ListLogs(ctx context.Context, page shared.Page) ([]storage.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Wrap("list logs", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.logs)
	start, end := page.Window(n)
	out := make([]storage.LogEntry, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, s.logs[n-1-i])
	}
	return out, nil
}

// Close closes both files.
func (s *Store) Close() error {
	var errs []error
	if s.messagesF != nil {
		errs = append(errs, s.messagesF.Close())
	}
	if s.logsF != nil {
		errs = append(errs, s.logsF.Close())
	}
	return errors.Join(errs...)
}
