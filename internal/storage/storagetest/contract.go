// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkZcH/MutexTalk/internal/shared"
	"github.com/AkZcH/MutexTalk/internal/storage"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) storage.Store

// Run exercises the storage contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	t.Run("CreateAndListNewestFirst", func(t *testing.T) { testCreateAndList(t, newStore(t)) })
	t.Run("CreateValidatesBounds", func(t *testing.T) { testCreateValidation(t, newStore(t)) })
	t.Run("UpdateRequiresAuthor", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("DeleteRequiresAuthor", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ListPagination", func(t *testing.T) { testPagination(t, newStore(t)) })
	t.Run("PageBeyondDataIsEmpty", func(t *testing.T) { testPageBeyondData(t, newStore(t)) })
	t.Run("AppendAndListLogs", func(t *testing.T) { testLogs(t, newStore(t)) })
	t.Run("AppendLogRejectsInvalid", func(t *testing.T) { testLogValidation(t, newStore(t)) })
}

func page(t *testing.T, p, limit int) shared.Page {
	t.Helper()
	pg, err := shared.NewPage(p, limit)
	require.NoError(t, err)
	return pg
}

func testCreateAndList(t *testing.T, s storage.Store) {
	ctx := context.Background()

	empty, err := s.ListMessages(ctx, page(t, 1, 10))
	require.NoError(t, err)
	assert.Empty(t, empty)

	before := time.Now().UTC().Add(-time.Second)
	first, err := s.CreateMessage(ctx, "alice", "hello")
	require.NoError(t, err)
	second, err := s.CreateMessage(ctx, "bob", "hi | there")
	require.NoError(t, err)

	assert.Greater(t, first.ID, int64(0))
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.CreatedAt.Before(before.Truncate(time.Second)))
	assert.Equal(t, time.UTC, first.CreatedAt.Location())
	assert.Zero(t, first.CreatedAt.Nanosecond())

	msgs, err := s.ListMessages(ctx, page(t, 1, 10))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, second.ID, msgs[0].ID)
	assert.Equal(t, "bob", msgs[0].Username)
	assert.Equal(t, "hi | there", msgs[0].Body)
	assert.Equal(t, first.ID, msgs[1].ID)
	assert.True(t, first.CreatedAt.Equal(msgs[1].CreatedAt))
}

func testCreateValidation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	cases := []struct{ user, body string }{
		{"", "body"},
		{strings.Repeat("u", storage.MaxUsernameLen+1), "body"},
		{"alice", ""},
		{"alice", strings.Repeat("m", storage.MaxMessageLen+1)},
	}
	for _, tc := range cases {
		_, err := s.CreateMessage(ctx, tc.user, tc.body)
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	}
	_, err := s.CreateMessage(ctx, strings.Repeat("u", storage.MaxUsernameLen), strings.Repeat("m", storage.MaxMessageLen))
	require.NoError(t, err)

	msgs, err := s.ListMessages(ctx, page(t, 1, 10))
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func testUpdate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	msg, err := s.CreateMessage(ctx, "alice", "draft")
	require.NoError(t, err)

	require.ErrorIs(t, s.UpdateMessage(ctx, msg.ID, "bob", "hijack"), shared.ErrNotFoundOrNotOwned)
	require.ErrorIs(t, s.UpdateMessage(ctx, msg.ID+100, "alice", "ghost"), shared.ErrNotFoundOrNotOwned)
	require.NoError(t, s.UpdateMessage(ctx, msg.ID, "alice", "final"))

	msgs, err := s.ListMessages(ctx, page(t, 1, 10))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "final", msgs[0].Body)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.True(t, msg.CreatedAt.Equal(msgs[0].CreatedAt))
}

func testDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	keep, err := s.CreateMessage(ctx, "alice", "keep")
	require.NoError(t, err)
	drop, err := s.CreateMessage(ctx, "alice", "drop")
	require.NoError(t, err)

	require.ErrorIs(t, s.DeleteMessage(ctx, drop.ID, "bob"), shared.ErrNotFoundOrNotOwned)
	require.NoError(t, s.DeleteMessage(ctx, drop.ID, "alice"))
	require.ErrorIs(t, s.DeleteMessage(ctx, drop.ID, "alice"), shared.ErrNotFoundOrNotOwned)

	msgs, err := s.ListMessages(ctx, page(t, 1, 10))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, keep.ID, msgs[0].ID)

	next, err := s.CreateMessage(ctx, "alice", "after delete")
	require.NoError(t, err)
	assert.Greater(t, next.ID, drop.ID)
}

func testPagination(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := s.CreateMessage(ctx, "alice", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	first, err := s.ListMessages(ctx, page(t, 1, 2))
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "m5", first[0].Body)
	assert.Equal(t, "m4", first[1].Body)

	third, err := s.ListMessages(ctx, page(t, 3, 2))
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, "m1", third[0].Body)

	beyond, err := s.ListMessages(ctx, page(t, 9, 2))
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func testPageBeyondData(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.CreateMessage(ctx, "alice", "only")
	require.NoError(t, err)
	_, err = s.AppendLog(ctx, storage.LogEntry{TS: storage.Now(), Action: storage.ActionRead, PermitValue: 1})
	require.NoError(t, err)

	for _, p := range []shared.Page{
		page(t, 2, 1),
		page(t, 3, 100),
		page(t, shared.MaxOffset/100+1, 100),
		page(t, shared.MaxOffset, 1),
	} {
		msgs, err := s.ListMessages(ctx, p)
		require.NoError(t, err, "messages page %d limit %d", p.Page, p.Limit)
		assert.Empty(t, msgs, "messages page %d limit %d", p.Page, p.Limit)

		logs, err := s.ListLogs(ctx, p)
		require.NoError(t, err, "logs page %d limit %d", p.Page, p.Limit)
		assert.Empty(t, logs, "logs page %d limit %d", p.Page, p.Limit)
	}
}

func testLogs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	user := "alice"
	content := "hello"
	ts := storage.Now()

	first, err := s.AppendLog(ctx, storage.LogEntry{TS: ts, Action: storage.ActionCreate, User: &user, Content: &content, PermitValue: 0})
	require.NoError(t, err)
	second, err := s.AppendLog(ctx, storage.LogEntry{TS: ts, Action: storage.ActionRead, PermitValue: 1})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	logs, err := s.ListLogs(ctx, page(t, 1, 10))
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, storage.ActionRead, logs[0].Action)
	assert.Nil(t, logs[0].User)
	assert.Nil(t, logs[0].Content)
	assert.Equal(t, 1, logs[0].PermitValue)

	assert.Equal(t, storage.ActionCreate, logs[1].Action)
	require.NotNil(t, logs[1].User)
	assert.Equal(t, "alice", *logs[1].User)
	require.NotNil(t, logs[1].Content)
	assert.Equal(t, "hello", *logs[1].Content)
	assert.Equal(t, 0, logs[1].PermitValue)
	assert.True(t, ts.Equal(logs[1].TS))

	tail, err := s.ListLogs(ctx, page(t, 2, 1))
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, first.ID, tail[0].ID)
}

func testLogValidation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.AppendLog(ctx, storage.LogEntry{TS: storage.Now(), Action: storage.ActionCreate, PermitValue: 2})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = s.AppendLog(ctx, storage.LogEntry{TS: storage.Now(), Action: "ACQUIRE_MUTEX", PermitValue: 1})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	logs, err := s.ListLogs(ctx, page(t, 1, 10))
	require.NoError(t, err)
	assert.Empty(t, logs)
}
