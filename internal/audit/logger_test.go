package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

type memorySink struct {
	entries []storage.LogEntry
	err     error
}

func (m *memorySink) AppendLog(_ context.Context, entry storage.LogEntry) (storage.LogEntry, error) {
	if m.err != nil {
		return storage.LogEntry{}, m.err
	}
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return entry, nil
}

type countingMetrics struct {
	failures map[string]int
}

func (c *countingMetrics) AuditSinkFailed(sink string) {
	if c.failures == nil {
		c.failures = map[string]int{}
	}
	c.failures[sink]++
}

func openSink(t *testing.T) (*FileSink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit", "transactions.log")
	sink, err := OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink, path
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestRecordWritesBothSinks(t *testing.T) {
	store := &memorySink{}
	file, path := openSink(t)
	logger := New(store, file)

	receipt := logger.Record(context.Background(), storage.ActionCreate, "alice", "hello", 0)

	require.NoError(t, receipt.Err())
	assert.Equal(t, int64(1), receipt.Entry.ID)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "alice", *store.entries[0].User)
	assert.Equal(t, "hello", *store.entries[0].Content)

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, EventInit, lines[0]["event"])
	assert.Equal(t, "CREATE", lines[1]["action"])
	assert.Equal(t, "alice", lines[1]["user"])
	assert.EqualValues(t, 0, lines[1]["semaphore"])
	assert.NotEmpty(t, lines[1]["txid"])
}

func TestRecordEmptyUserIsNull(t *testing.T) {
	store := &memorySink{}
	file, path := openSink(t)
	logger := New(store, file)

	receipt := logger.Record(context.Background(), storage.ActionRead, "", "", 1)

	require.NoError(t, receipt.Err())
	assert.Nil(t, store.entries[0].User)
	assert.Nil(t, store.entries[0].Content)
	lines := readLines(t, path)
	user, present := lines[1]["user"]
	assert.True(t, present)
	assert.Nil(t, user)
}

func TestRecordRejectsInvalidPermitValue(t *testing.T) {
	store := &memorySink{}
	file, path := openSink(t)
	logger := New(store, file)

	receipt := logger.Record(context.Background(), storage.ActionAcquire, "alice", "", 2)

	require.ErrorIs(t, receipt.Err(), shared.ErrInvalidInput)
	assert.Empty(t, store.entries)
	assert.Len(t, readLines(t, path), 1)
}

func TestStoreFailureStillWritesFile(t *testing.T) {
	store := &memorySink{err: errors.New("disk full")}
	file, path := openSink(t)
	metrics := &countingMetrics{}
	logger := New(store, file, WithMetrics(metrics))

	receipt := logger.Record(context.Background(), storage.ActionDelete, "bob", "gone", 0)

	require.Error(t, receipt.StoreErr)
	require.NoError(t, receipt.FileErr)
	require.Error(t, receipt.Err())
	assert.Equal(t, 1, metrics.failures[SinkStore])

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "DELETE", lines[1]["action"])
}

func TestFileFailureStillWritesStore(t *testing.T) {
	store := &memorySink{}
	file, _ := openSink(t)
	require.NoError(t, file.Close())
	metrics := &countingMetrics{}
	logger := New(store, file, WithMetrics(metrics))

	receipt := logger.Record(context.Background(), storage.ActionUpdate, "bob", "edit", 0)

	require.NoError(t, receipt.StoreErr)
	require.Error(t, receipt.FileErr)
	assert.Len(t, store.entries, 1)
	assert.Equal(t, 1, metrics.failures[SinkFile])
}

func TestContentTruncated(t *testing.T) {
	store := &memorySink{}
	logger := New(store, nil)
	long := strings.Repeat("é", storage.MaxMessageLen+10)

	receipt := logger.Record(context.Background(), storage.ActionCreate, "alice", long, 0)

	require.NoError(t, receipt.Err())
	assert.Equal(t, storage.MaxMessageLen, len([]rune(*store.entries[0].Content)))
}

func TestFileSinkPermissionsAndLifecycle(t *testing.T) {
	file, path := openSink(t)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, file.Close())
	require.NoError(t, file.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, EventInit, lines[0]["event"])
	assert.Equal(t, EventShutdown, lines[1]["event"])
}

func TestFileSinkAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.log")
	first, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, New(nil, first).Record(context.Background(), storage.ActionAcquire, "alice", "", 0).Err())
	require.NoError(t, first.Close())

	second, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())

	assert.Len(t, readLines(t, path), 5)
}
