package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
	"github.com/AkZcH/MutexTalk/internal/storage/storagetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := New(client, "test")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestKeysUsePrefix(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	msg, err := s.CreateMessage(ctx, "alice", "hello")
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:message:1"))
	assert.True(t, mr.Exists("test:messages"))
	assert.Equal(t, int64(1), msg.ID)
	got, err := mr.Get("test:messages:seq")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestDeleteRemovesHashAndIndex(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	msg, err := s.CreateMessage(ctx, "alice", "hello")
	require.NoError(t, err)
	require.NoError(t, s.DeleteMessage(ctx, msg.ID, "alice"))

	assert.False(t, mr.Exists("test:message:1"))
	members, err := mr.ZMembers("test:messages")
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestDefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer s.Close()

	_, err := s.AppendLog(context.Background(), storage.LogEntry{Action: storage.ActionRead, PermitValue: 1})
	require.NoError(t, err)
	assert.True(t, mr.Exists(DefaultPrefix+":logs"))
}

func TestUnreachableServerIsStorageError(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, err := s.ListMessages(context.Background(), shared.Page{Page: 1, Limit: 10})
	require.ErrorIs(t, err, shared.ErrStorage)
}
