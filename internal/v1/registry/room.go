// Package registry holds the in-memory room/member/presence bookkeeping that
// the signaling orchestrator consults on every event.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Theme enumerates the decorative room themes a host may select.
type Theme string

const (
	ThemeNone          Theme = "none"
	ThemeChristmas     Theme = "christmas"
	ThemeLunarNewYear  Theme = "lunar-new-year"
)

// Room is a single live screen-share/chat room.
//
// members is ordered (append-only aside from removal) so that fan-out events
// observe a stable, reproducible list across recipients for the same event.
type Room struct {
	mu sync.RWMutex

	RoomID    string
	HostID    string
	CreatedAt time.Time
	theme     Theme
	members   []string
}

// DeriveRoomID computes the stable room identifier for a host identity.
// Stability is load-bearing: the same host always recreates the same room,
// which is what lets chat history survive a host reload.
func DeriveRoomID(hostID string) string {
	sum := sha256.Sum256([]byte("room-" + hostID))
	return "room-" + hex.EncodeToString(sum[:])[:12]
}

func newRoom(hostID string) *Room {
	return &Room{
		RoomID:    DeriveRoomID(hostID),
		HostID:    hostID,
		CreatedAt: time.Now(),
		theme:     ThemeNone,
		members:   []string{hostID},
	}
}

// Members returns a snapshot copy of the room's member list. Callers must
// snapshot before broadcasting so every recipient of the same event sees the
// same list (spec §5 ordering guarantee).
func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}

// HasMember reports whether userID currently belongs to the room.
func (r *Room) HasMember(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m == userID {
			return true
		}
	}
	return false
}

// MemberCount returns the number of members currently in the room.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) addMember(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m == userID {
			return false
		}
	}
	r.members = append(r.members, userID)
	return true
}

func (r *Room) removeMember(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m == userID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// Theme returns the room's current theme.
func (r *Room) Theme() Theme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.theme
}

// SetTheme updates the room's theme.
func (r *Room) SetTheme(theme Theme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theme = theme
}
