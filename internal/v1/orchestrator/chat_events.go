package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/spinlive/roomserver/internal/v1/registry"
	"github.com/spinlive/roomserver/internal/v1/storage"
)

type chatMessagePayload struct {
	Message storage.Message `json:"message"`
}

type messageReactionUpdatedPayload struct {
	MessageID string             `json:"messageId"`
	Reactions []storage.Reaction `json:"reactions"`
}

type themeUpdatedPayload struct {
	Theme string `json:"theme"`
}

type livestreamReactionOutPayload struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Emoji    string `json:"emoji"`
	UserID   string `json:"userId"`
}

type spinResultOutPayload struct {
	Result json.RawMessage `json:"result"`
}

// handleSendMessage runs a chat message through the profanity filter and
// persistence layer, then broadcasts it to the room (spec §4.5).
func (o *Orchestrator) handleSendMessage(ctx context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[sendMessagePayload](raw)
	if !ok {
		return
	}

	msg := o.chat.Send(ctx, p.RoomID, p.UserID, p.UserName, p.Message)
	o.bus.Broadcast(p.RoomID, "chat-message", chatMessagePayload{Message: msg})
}

// handleReactToMessage toggles a reaction and broadcasts the message's
// updated reaction list, or replies with an error if the message doesn't
// exist (spec §4.5's "reactions are authoritative" rule).
func (o *Orchestrator) handleReactToMessage(ctx context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[reactToMessagePayload](raw)
	if !ok {
		return
	}

	reactions, err := o.chat.React(ctx, p.RoomID, p.MessageID, p.UserID, p.Emoji)
	if err != nil {
		o.bus.SendTo(connectionID, "error", errorPayload{Message: "message not found"})
		return
	}

	o.bus.Broadcast(p.RoomID, "message-reaction-updated", messageReactionUpdatedPayload{
		MessageID: p.MessageID,
		Reactions: reactions,
	})
}

// handleUpdateTheme stores decoration state on the Room itself rather than
// in chat storage (spec §4.2's room state table). The sender is not checked
// against the room's host.
func (o *Orchestrator) handleUpdateTheme(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[updateThemePayload](raw)
	if !ok {
		return
	}

	o.mu.Lock()
	room, exists := o.registry.FindRoomByID(p.RoomID)
	if !exists {
		o.mu.Unlock()
		return
	}

	room.SetTheme(registry.Theme(p.Theme))
	o.mu.Unlock()
	o.bus.Broadcast(p.RoomID, "theme-updated", themeUpdatedPayload{Theme: p.Theme})
}

// handleLivestreamReaction is a pure, unpersisted broadcast: emoji bursts
// are ephemeral, never replayed from chat history (spec §4.5 Non-goals).
func (o *Orchestrator) handleLivestreamReaction(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[livestreamReactionPayload](raw)
	if !ok {
		return
	}

	o.bus.Broadcast(p.RoomID, "livestream-reaction", livestreamReactionOutPayload{
		ID:       newID(),
		UserName: p.UserName,
		Emoji:    p.Emoji,
		UserID:   p.UserID,
	})
}

// handleSpinResult relays a client-computed wheel-spin outcome verbatim;
// the orchestrator trusts the sender and doesn't validate the result shape.
func (o *Orchestrator) handleSpinResult(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[spinResultPayload](raw)
	if !ok {
		return
	}

	o.bus.Broadcast(p.RoomID, "spin-result", spinResultOutPayload{Result: p.Result}, connectionID)
}
