package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/hume"
	"github.com/xraph/hume/message"
	"github.com/xraph/hume/store/memory"
)

func msg(text string) *message.EventMessage {
	m := &message.EventMessage{SchemaVersion: 1, Hostname: "example.com", Msg: text}
	m.FillDefaults()
	return m
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(ctx), hume.ErrStoreClosed)

	_, err := s.Enqueue(ctx, msg("late"))
	assert.ErrorIs(t, err, hume.ErrStoreClosed)
}

func TestEnqueueListMarkSent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	first, err := s.Enqueue(ctx, msg("one"))
	require.NoError(t, err)
	second, err := s.Enqueue(ctx, msg("two"))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first, pending[0].ID)
	assert.Equal(t, second, pending[1].ID)

	require.NoError(t, s.MarkSent(ctx, first))
	require.NoError(t, s.MarkSent(ctx, first))

	pending, err = s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)

	assert.ErrorIs(t, s.MarkSent(ctx, 999), hume.ErrRecordNotFound)
}

func TestMarkFailedAndPrune(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	rid, err := s.Enqueue(ctx, msg("flaky"))
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, rid, "connection refused"))

	r, err := s.GetRecord(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Attempts)
	assert.Equal(t, "connection refused", r.LastError)
	assert.False(t, r.Sent)

	n, err := s.PruneSent(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.MarkSent(ctx, rid))
	n, err = s.PruneSent(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetRecord(ctx, rid)
	assert.ErrorIs(t, err, hume.ErrRecordNotFound)
}
