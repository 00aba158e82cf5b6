package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client)
}

func TestRedisStore_SaveAndGetMessages(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMessage(ctx, Message{ID: "m1", RoomID: "r1", Text: "hi", Timestamp: 2}))
	require.NoError(t, s.SaveMessage(ctx, Message{ID: "m2", RoomID: "r1", Text: "yo", Timestamp: 1}))

	msgs, err := s.GetMessages(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID)
	assert.Equal(t, "m1", msgs[1].ID)
}

func TestRedisStore_DeleteRoomMessages(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveMessage(ctx, Message{ID: "m1", RoomID: "r1", Timestamp: 1}))

	require.NoError(t, s.DeleteRoomMessages(ctx, "r1"))
	msgs, err := s.GetMessages(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRedisStore_AddReaction_TogglesAndPersists(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveMessage(ctx, Message{ID: "m1", RoomID: "r1", Timestamp: 5}))

	reactions, err := s.AddReaction(ctx, "r1", "m1", "u1", "🔥")
	require.NoError(t, err)
	require.Len(t, reactions, 1)

	msgs, err := s.GetMessages(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(5), msgs[0].Timestamp, "score must survive the remove+re-add")
	require.Len(t, msgs[0].Reactions, 1)

	reactions, err = s.AddReaction(ctx, "r1", "m1", "u1", "🔥")
	require.NoError(t, err)
	assert.Empty(t, reactions)
}

func TestRedisStore_AddReaction_UnknownMessage(t *testing.T) {
	s := newTestRedisStore(t)
	_, err := s.AddReaction(context.Background(), "r1", "ghost", "u1", "🔥")
	assert.Error(t, err)
}
