// Package redisstore provides a Redis-backed storage.Store.
//
// Layout under the configured prefix:
//
//	<p>:messages:seq   INCR counter for message ids
//	<p>:message:<id>   hash {username, message, created_at}
//	<p>:messages       sorted set of ids scored by id
//	<p>:logs:seq       INCR counter for log ids
//	<p>:logs           sorted set of JSON log records scored by id
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "mutextalk"

// Owner check and write happen in one script so they cannot interleave.
var (
	updateScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'username') ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'message', ARGV[2])
return 1
`)
	deleteScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'username') ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return 1
`)
)

// Store persists messages and logs in Redis.
type Store struct {
	client *redis.Client
	prefix string
}

var _ storage.Store = (*Store)(nil)

// New wraps client. An empty prefix falls back to DefaultPrefix.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *Store) messageKey(id int64) string {
	return s.key("message", strconv.FormatInt(id, 10))
}

type logRecord struct {
	ID          int64   `json:"id"`
	TS          string  `json:"ts"`
	Action      string  `json:"action"`
	User        *string `json:"user"`
	Content     *string `json:"content"`
	PermitValue int     `json:"semaphore"`
}

// CreateMessage stores a message under a fresh id.
func (s *Store) CreateMessage(ctx context.Context, user, body string) (storage.Message, error) {
	if err := storage.ValidateMessage(user, body); err != nil {
		return storage.Message{}, err
	}
	id, err := s.client.Incr(ctx, s.key("messages", "seq")).Result()
	if err != nil {
		return storage.Message{}, storage.Wrap("create message", err)
	}
	msg := storage.Message{ID: id, Username: user, Body: body, CreatedAt: storage.Now()}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.messageKey(id), map[string]any{
			"username":   user,
			"message":    body,
			"created_at": storage.FormatTime(msg.CreatedAt),
		})
		pipe.ZAdd(ctx, s.key("messages"), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
		return nil
	})
	if err != nil {
		return storage.Message{}, storage.Wrap("create message", err)
	}
	return msg, nil
}

// UpdateMessage rewrites the body of a message authored by user.
func (s *Store) UpdateMessage(ctx context.Context, id int64, user, body string) error {
	if err := storage.ValidateMessage(user, body); err != nil {
		return err
	}
	n, err := updateScript.Run(ctx, s.client, []string{s.messageKey(id)}, user, body).Int()
	if err != nil {
		return storage.Wrap("update message", err)
	}
	if n == 0 {
		return shared.ErrNotFoundOrNotOwned
	}
	return nil
}

// DeleteMessage removes a message authored by user.
func (s *Store) DeleteMessage(ctx context.Context, id int64, user string) error {
	if err := storage.ValidateUser(user); err != nil {
		return err
	}
	keys := []string{s.messageKey(id), s.key("messages")}
	n, err := deleteScript.Run(ctx, s.client, keys, user, strconv.FormatInt(id, 10)).Int()
	if err != nil {
		return storage.Wrap("delete message", err)
	}
	if n == 0 {
		return shared.ErrNotFoundOrNotOwned
	}
	return nil
}

// ListMessages returns one page, newest first. Ids are issued in time order so the
// id ranking matches created_at ordering.
func (s *Store) ListMessages(ctx context.Context, page shared.Page) ([]storage.Message, error) {
	start := int64(page.Offset())
	ids, err := s.client.ZRevRange(ctx, s.key("messages"), start, start+int64(page.Limit)-1).Result()
	if err != nil {
		return nil, storage.Wrap("list messages", err)
	}
	if len(ids) == 0 {
		return []storage.Message{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, raw := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.key("message", raw))
		}
		return nil
	})
	if err != nil {
		return nil, storage.Wrap("list messages", err)
	}

	msgs := make([]storage.Message, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// deleted between the range and the fetch
			continue
		}
		id, err := strconv.ParseInt(ids[i], 10, 64)
		if err != nil {
			return nil, storage.Wrap("list messages", err)
		}
		createdAt, err := storage.ParseTime(fields["created_at"])
		if err != nil {
			return nil, storage.Wrap("list messages", err)
		}
		msgs = append(msgs, storage.Message{
			ID:        id,
			Username:  fields["username"],
			Body:      fields["message"],
			CreatedAt: createdAt,
		})
	}
	return msgs, nil
}

// AppendLog adds one audit record.
func (s *Store) AppendLog(ctx context.Context, entry storage.LogEntry) (storage.LogEntry, error) {
	if err := storage.ValidateLogEntry(entry); err != nil {
		return storage.LogEntry{}, err
	}
	if entry.TS.IsZero() {
		entry.TS = storage.Now()
	}
	entry.TS = entry.TS.UTC().Truncate(time.Second)

	id, err := s.client.Incr(ctx, s.key("logs", "seq")).Result()
	if err != nil {
		return storage.LogEntry{}, storage.Wrap("append log", err)
	}
	entry.ID = id
	raw, err := json.Marshal(logRecord{
		ID:          entry.ID,
		TS:          storage.FormatTime(entry.TS),
		Action:      string(entry.Action),
		User:        entry.User,
		Content:     entry.Content,
		PermitValue: entry.PermitValue,
	})
	if err != nil {
		return storage.LogEntry{}, storage.Wrap("append log", err)
	}
	if err := s.client.ZAdd(ctx, s.key("logs"), redis.Z{Score: float64(id), Member: string(raw)}).Err(); err != nil {
		return storage.LogEntry{}, storage.Wrap("append log", err)
	}
	return entry, nil
}

// ListLogs returns one page of audit records, newest first.
func (s *Store) ListLogs(ctx context.Context, page shared.Page) ([]storage.LogEntry, error) {
	start := int64(page.Offset())
	raws, err := s.client.ZRevRange(ctx, s.key("logs"), start, start+int64(page.Limit)-1).Result()
	if err != nil {
		return nil, storage.Wrap("list logs", err)
	}

	logs := make([]storage.LogEntry, 0, len(raws))
	for _, raw := range raws {
		var rec logRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, storage.Wrap("list logs", fmt.Errorf("decode log record: %w", err))
		}
		ts, err := storage.ParseTime(rec.TS)
		if err != nil {
			return nil, storage.Wrap("list logs", err)
		}
		logs = append(logs, storage.LogEntry{
			ID:          rec.ID,
			TS:          ts,
			Action:      storage.Action(rec.Action),
			User:        rec.User,
			Content:     rec.Content,
			PermitValue: rec.PermitValue,
		})
	}
	return logs, nil
}
