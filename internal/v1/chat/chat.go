// Package chat implements the Chat & Reaction Coordinator (spec §4.5): a
// thin layer over the storage and profanity collaborators that encodes
// which failures are best-effort (history, persistence) and which are
// authoritative (reactions), per spec §7's error taxonomy.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/metrics"
	"github.com/spinlive/roomserver/internal/v1/profanity"
	"github.com/spinlive/roomserver/internal/v1/storage"
)

// Coordinator composes a storage backend with the profanity filter. It
// holds no state of its own; every method is safe for concurrent use as
// long as the underlying Store is.
type Coordinator struct {
	store storage.Store
}

// New constructs a Coordinator over the given storage backend.
func New(store storage.Store) *Coordinator {
	return &Coordinator{store: store}
}

// History returns the room's recent messages. Best-effort: a storage
// failure is logged and an empty list is returned rather than surfaced to
// the caller, matching spec §4.5's "history load on join is best-effort"
// rule.
func (c *Coordinator) History(ctx context.Context, roomID string, limit int) []storage.Message {
	msgs, err := c.store.GetMessages(ctx, roomID, limit)
	if err != nil {
		logging.Warn(ctx, "chat: history load failed, returning empty", zap.String("room_id", roomID), zap.Error(err))
		return nil
	}
	return msgs
}

// Send builds and persists a chat message, running it through the
// profanity filter first. Persistence failure is logged, not returned —
// spec §4.5 prioritizes delivery over durability, so the caller still
// gets the message back to broadcast.
func (c *Coordinator) Send(ctx context.Context, roomID, userID, userName, text string) storage.Message {
	result := profanity.Validate(text)
	outcome := "accepted"
	if result.ContainsProfanity {
		outcome = "censored"
	}
	metrics.ChatMessagesTotal.WithLabelValues(outcome).Inc()

	msg := storage.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		UserID:    userID,
		UserName:  userName,
		Text:      result.CleanedText,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := c.store.SaveMessage(ctx, msg); err != nil {
		logging.Warn(ctx, "chat: message persistence failed", zap.String("room_id", roomID), zap.String("message_id", msg.ID), zap.Error(err))
	}

	return msg
}

// DeleteRoomHistory removes a room's persisted messages. Called when a
// room is torn down (spec §4.2 closeRoom path). Best-effort, logged on
// failure — a leftover history file is cosmetic, not a correctness bug.
func (c *Coordinator) DeleteRoomHistory(ctx context.Context, roomID string) {
	if err := c.store.DeleteRoomMessages(ctx, roomID); err != nil {
		logging.Warn(ctx, "chat: history cleanup failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

// React applies the toggle rule to a message's reactions. Authoritative:
// errors are returned so the caller can surface an `error` event rather
// than silently dropping the reaction (spec §4.5).
func (c *Coordinator) React(ctx context.Context, roomID, messageID, userID, emoji string) ([]storage.Reaction, error) {
	return c.store.AddReaction(ctx, roomID, messageID, userID, emoji)
}
