package registry

import "sync"

// Presence is the "logged-in user" record the spec names in §3: it tracks
// where a user identity currently is, independent of the Room's own member
// list (a user has presence the instant it joins/creates, and loses it only
// when its grace window expires without a reconnect).
type Presence struct {
	UserID       string
	Name         string
	RoomID       string // empty when the user belongs to no room
	ConnectionID string
}

// Registry is the mutable store described in spec §4.1. All
// operations are single-step; callers (the orchestrator) are responsible for
// serializing multi-step sequences under their own exclusion domain (§5).
//
// Mirrors the teacher's hub.rooms map plus room.go's participant bookkeeping,
// generalized into the Registry/Presence split spec §4.1/§4.2 calls for.
type Registry struct {
	mu sync.Mutex

	rooms map[string]*Room

	userSocket map[string]string // userId -> connectionId
	socketUser map[string]string // connectionId -> userId
	userRoom   map[string]string // userId -> roomId

	presence map[string]Presence // userId -> presence
}

// New constructs an empty Registry. Tests must create a fresh instance per
// case; there is no shared package-level singleton.
func New() *Registry {
	return &Registry{
		rooms:      make(map[string]*Room),
		userSocket: make(map[string]string),
		socketUser: make(map[string]string),
		userRoom:   make(map[string]string),
		presence:   make(map[string]Presence),
	}
}

// CreateRoom is idempotent for a given host: a second call for the same
// hostID returns the existing room, re-adding the host as a member if it was
// somehow missing (spec §4.1).
func (r *Registry) CreateRoom(hostID string) (room *Room, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID := DeriveRoomID(hostID)
	if existing, ok := r.rooms[roomID]; ok {
		existing.addMember(hostID)
		return existing, false
	}

	room = newRoom(hostID)
	r.rooms[room.RoomID] = room
	return room, true
}

// FindRoomByID returns the room with the given id, if any.
func (r *Registry) FindRoomByID(roomID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// DeleteRoom removes a room from the registry.
func (r *Registry) DeleteRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
}

// AddMemberToRoom adds userID to the room's member list. Returns false if
// the room doesn't exist or the user was already a member.
func (r *Registry) AddMemberToRoom(roomID, userID string) bool {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return room.addMember(userID)
}

// RemoveMemberFromRoom removes userID from the room's member list.
func (r *Registry) RemoveMemberFromRoom(roomID, userID string) bool {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return room.removeMember(userID)
}

// SetUserSocket binds userID to connectionID, replacing any prior binding.
// The stale reverse mapping for the user's previous connection (if any) is
// cleaned up so FindUserIDBySocketID never returns a dangling association.
func (r *Registry) SetUserSocket(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.userSocket[userID]; ok && old != connectionID {
		if boundUser, ok := r.socketUser[old]; ok && boundUser == userID {
			delete(r.socketUser, old)
		}
	}

	r.userSocket[userID] = connectionID
	r.socketUser[connectionID] = userID
}

// GetUserSocket returns the connection currently bound to userID.
func (r *Registry) GetUserSocket(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cid, ok := r.userSocket[userID]
	return cid, ok
}

// DeleteUserSocket removes a user's connection binding in both directions.
func (r *Registry) DeleteUserSocket(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cid, ok := r.userSocket[userID]; ok {
		if boundUser, ok := r.socketUser[cid]; ok && boundUser == userID {
			delete(r.socketUser, cid)
		}
		delete(r.userSocket, userID)
	}
}

// FindUserIDBySocketID resolves a connectionId back to the userId currently
// bound to it.
func (r *Registry) FindUserIDBySocketID(connectionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uid, ok := r.socketUser[connectionID]
	return uid, ok
}

// SetUserRoom binds userID to roomID.
func (r *Registry) SetUserRoom(userID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userRoom[userID] = roomID
}

// GetUserRoom returns the room currently bound to userID.
func (r *Registry) GetUserRoom(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rid, ok := r.userRoom[userID]
	return rid, ok
}

// DeleteUserRoom removes a user's room binding.
func (r *Registry) DeleteUserRoom(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.userRoom, userID)
}

// UpsertPresence creates or replaces a user's presence record.
func (r *Registry) UpsertPresence(p Presence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence[p.UserID] = p
}

// GetPresence returns a user's presence record, if any.
func (r *Registry) GetPresence(userID string) (Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.presence[userID]
	return p, ok
}

// DeletePresence removes a user's presence record.
func (r *Registry) DeletePresence(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.presence, userID)
}

// PresenceByRoom enumerates all presence records currently bound to roomID.
func (r *Registry) PresenceByRoom(roomID string) []Presence {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Presence
	for _, p := range r.presence {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	return out
}

// MemberNameTaken reports whether name is already used by a member of
// roomID other than excludeUserID (spec §4.4 unique-name-per-room rule).
func (r *Registry) MemberNameTaken(roomID, name, excludeUserID string) bool {
	for _, p := range r.PresenceByRoom(roomID) {
		if p.UserID != excludeUserID && p.Name == name {
			return true
		}
	}
	return false
}

// RoomCount returns the number of live rooms, used by the media engine
// facade's auto-scaling early-exit (spec §4.3 step 1).
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
