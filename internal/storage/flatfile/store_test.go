package flatfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
	"github.com/AkZcH/MutexTalk/internal/storage/storagetest"
)

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestReopenReplaysJournal(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	a, err := s.CreateMessage(ctx, "alice", "one")
	require.NoError(t, err)
	b, err := s.CreateMessage(ctx, "alice", "two")
	require.NoError(t, err)
	require.NoError(t, s.UpdateMessage(ctx, a.ID, "alice", "one edited"))
	require.NoError(t, s.DeleteMessage(ctx, b.ID, "alice"))
	_, err = s.AppendLog(ctx, storage.LogEntry{TS: storage.Now(), Action: storage.ActionCreate, PermitValue: 0})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	msgs, err := reopened.ListMessages(ctx, shared.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "one edited", msgs[0].Body)

	c, err := reopened.CreateMessage(ctx, "alice", "three")
	require.NoError(t, err)
	assert.Greater(t, c.ID, b.ID)

	entry, err := reopened.AppendLog(ctx, storage.LogEntry{TS: storage.Now(), Action: storage.ActionRead, PermitValue: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, entry.ID)
}

func TestTornTrailingLineIsDropped(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, "alice", "intact")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	f, err := os.OpenFile(filepath.Join(dir, messagesFile), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"op":"create","id":2,"user`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	_, err = reopened.CreateMessage(ctx, "alice", "after crash")
	require.NoError(t, err)
	require.NoError(t, reopened.Close())

	again, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })
	msgs, err := again.ListMessages(ctx, shared.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "after crash", msgs[0].Body)
}

func TestFilesArePrivate(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	info, err := os.Stat(filepath.Join(dir, logsFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
