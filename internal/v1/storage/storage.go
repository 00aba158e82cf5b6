// Package storage implements the chat persistence collaborator spec §6
// names: save/list/delete messages for a room, and the authoritative
// add-or-toggle reaction update. Two backends are provided; both satisfy
// the same Store interface so the chat coordinator never branches on
// which one is active.
package storage

import "context"

// Reaction groups every user who reacted to a message with a given emoji.
type Reaction struct {
	Emoji   string   `json:"emoji"`
	UserIDs []string `json:"userIds"`
}

// Message is a single persisted chat entry.
type Message struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"roomId"`
	UserID    string     `json:"userId"`
	UserName  string     `json:"userName"`
	Text      string     `json:"message"`
	Timestamp int64      `json:"timestamp"`
	Reactions []Reaction `json:"reactions,omitempty"`
}

// defaultHistoryLimit is the message count returned by GetMessages when a
// caller asks for everything (spec §6: "getMessages(roomId, limit=50)").
const defaultHistoryLimit = 50

// Store is the storage collaborator the orchestrator and chat coordinator
// consume. Implementations must be safe for concurrent use.
type Store interface {
	SaveMessage(ctx context.Context, msg Message) error
	GetMessages(ctx context.Context, roomID string, limit int) ([]Message, error)
	DeleteRoomMessages(ctx context.Context, roomID string) error
	AddReaction(ctx context.Context, roomID, messageID, userID, emoji string) ([]Reaction, error)
}

// toggleReaction applies the spec §4.4 toggle rule to an in-memory slice of
// reactions and returns the updated slice: if userID already reacted with
// emoji, it is removed (dropping the whole entry once empty); otherwise
// userID is added, creating the entry if necessary. Shared by both
// backends so the toggle semantics can't drift between them.
func toggleReaction(reactions []Reaction, userID, emoji string) []Reaction {
	for i, r := range reactions {
		if r.Emoji != emoji {
			continue
		}
		for j, uid := range r.UserIDs {
			if uid != userID {
				continue
			}
			r.UserIDs = append(r.UserIDs[:j], r.UserIDs[j+1:]...)
			if len(r.UserIDs) == 0 {
				return append(reactions[:i:i], reactions[i+1:]...)
			}
			reactions[i] = r
			return reactions
		}
		r.UserIDs = append(r.UserIDs, userID)
		reactions[i] = r
		return reactions
	}
	return append(reactions, Reaction{Emoji: emoji, UserIDs: []string{userID}})
}
