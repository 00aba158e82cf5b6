package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/registry"
)

type roomCreatedPayload struct {
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
	Theme   string   `json:"theme"`
}

type roomValidatedPayload struct {
	Exists      bool   `json:"exists"`
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount,omitempty"`
}

type roomJoinedPayload struct {
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
}

type roomDeletedPayload struct {
	Message string `json:"message"`
}

type memberJoinedPayload struct {
	MemberID string   `json:"memberId"`
	Members  []string `json:"members"`
}

type memberLeftPayload struct {
	MemberID string   `json:"memberId"`
	Members  []string `json:"members"`
}

type hostReconnectedPayload struct {
	HostID       string `json:"hostId"`
	HostSocketID string `json:"hostSocketId"`
}

type viewerJoinedPayload struct {
	ViewerID string `json:"viewerId"`
}

type chatHistoryPayload struct {
	Messages any `json:"messages"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type producerClosedPayload struct {
	ProducerID string `json:"producerId"`
}

// handleCreateRoom implements spec §4.4's create-room contract, grounded on
// the teacher's host-reload handling in internal/v1/session/hub.go's
// removeRoom/reconnect pairing, generalized to this module's Registry.
func (o *Orchestrator) handleCreateRoom(ctx context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[createRoomPayload](raw)
	if !ok {
		return
	}

	o.presence.Cancel(p.HostID)

	roomID := registry.DeriveRoomID(p.HostID)

	o.mu.Lock()
	existingRoom, exists := o.registry.FindRoomByID(roomID)
	oldConnID, hadSocket := o.registry.GetUserSocket(p.HostID)
	connectionChanged := hadSocket && oldConnID != connectionID
	rejoinWithViewers := false
	if exists {
		if existingRoom.MemberCount() <= 1 {
			// Clean recreate: drop the host as a member but keep the room
			// entity itself, so theme/createdAt survive (spec §4.4 step 2).
			o.registry.RemoveMemberFromRoom(roomID, p.HostID)
		} else {
			rejoinWithViewers = connectionChanged
		}
	}
	if connectionChanged {
		delete(o.connUser, oldConnID)
		delete(o.connRoom, oldConnID)
	}
	o.mu.Unlock()

	if connectionChanged {
		for _, producerID := range o.media.CleanupUserMedia(roomID, oldConnID) {
			o.bus.Broadcast(roomID, "producerClosed", producerClosedPayload{ProducerID: producerID})
		}
	}

	o.mu.Lock()
	room, _ := o.registry.CreateRoom(p.HostID)
	o.registry.SetUserSocket(p.HostID, connectionID)
	o.registry.SetUserRoom(p.HostID, room.RoomID)
	o.registry.UpsertPresence(registry.Presence{UserID: p.HostID, Name: p.Name, RoomID: room.RoomID, ConnectionID: connectionID})
	o.connUser[connectionID] = p.HostID
	o.connRoom[connectionID] = room.RoomID
	members := room.Members()
	theme := room.Theme()
	o.mu.Unlock()

	o.bus.JoinScope(connectionID, room.RoomID)

	if connectionChanged {
		// connUser/connRoom for oldConnID are already cleared above, so the
		// disconnect this drives finds no stale binding and arms no grace
		// timer over the user that's actively present on connectionID.
		o.bus.CloseConnection(oldConnID)
	}

	o.bus.SendTo(connectionID, "room-created", roomCreatedPayload{RoomID: room.RoomID, Members: members, Theme: string(theme)})

	if rejoinWithViewers {
		o.bus.Broadcast(room.RoomID, "host-reconnected", hostReconnectedPayload{HostID: p.HostID, HostSocketID: connectionID}, connectionID)
	}

	history := o.chat.History(ctx, room.RoomID, 0)
	o.bus.SendTo(connectionID, "chat-history", chatHistoryPayload{Messages: history})
}

func (o *Orchestrator) handleValidateRoom(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[validateRoomPayload](raw)
	if !ok {
		return
	}

	room, exists := o.registry.FindRoomByID(p.RoomID)
	resp := roomValidatedPayload{Exists: exists, RoomID: p.RoomID}
	if exists {
		resp.MemberCount = room.MemberCount()
	}
	o.bus.SendTo(connectionID, "room-validated", resp)
}

// handleJoinRoom implements spec §4.4's join-room contract.
func (o *Orchestrator) handleJoinRoom(ctx context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[joinRoomPayload](raw)
	if !ok {
		return
	}

	o.mu.Lock()
	room, exists := o.registry.FindRoomByID(p.RoomID)
	o.mu.Unlock()
	if !exists {
		o.bus.SendTo(connectionID, "error", errorPayload{Message: "room not found"})
		return
	}

	wasPending := o.presence.Cancel(p.MemberID)

	o.mu.Lock()
	isReconnect := room.HasMember(p.MemberID) || wasPending
	if !isReconnect {
		if pres, ok := o.registry.GetPresence(p.MemberID); ok && pres.RoomID == p.RoomID {
			isReconnect = true
		}
	}

	if !isReconnect && o.registry.MemberNameTaken(p.RoomID, p.Name, p.MemberID) {
		o.mu.Unlock()
		o.bus.SendTo(connectionID, "error", errorPayload{
			Message: fmt.Sprintf("The name %q is already taken in this room. Please choose another.", p.Name),
		})
		return
	}

	oldConnID, hadSocket := o.registry.GetUserSocket(p.MemberID)
	connectionChanged := hadSocket && oldConnID != connectionID

	var priorRoomID string
	var leftPriorRoom bool
	if !isReconnect {
		if rid, ok := o.registry.GetUserRoom(p.MemberID); ok && rid != "" && rid != p.RoomID {
			if o.registry.RemoveMemberFromRoom(rid, p.MemberID) {
				priorRoomID = rid
				leftPriorRoom = true
			}
			o.registry.DeleteUserRoom(p.MemberID)
		}
	}

	o.registry.AddMemberToRoom(p.RoomID, p.MemberID)
	o.registry.SetUserSocket(p.MemberID, connectionID)
	o.registry.SetUserRoom(p.MemberID, p.RoomID)
	o.registry.UpsertPresence(registry.Presence{UserID: p.MemberID, Name: p.Name, RoomID: p.RoomID, ConnectionID: connectionID})
	o.connUser[connectionID] = p.MemberID
	o.connRoom[connectionID] = p.RoomID
	members := room.Members()
	hostID := room.HostID
	if connectionChanged {
		delete(o.connUser, oldConnID)
		delete(o.connRoom, oldConnID)
	}
	o.mu.Unlock()

	o.bus.JoinScope(connectionID, p.RoomID)

	if connectionChanged {
		// connUser/connRoom for oldConnID are already cleared above, so the
		// disconnect this drives finds no stale binding and arms no grace
		// timer over the user that's actively present on connectionID.
		o.bus.CloseConnection(oldConnID)
	}

	if leftPriorRoom {
		o.bus.LeaveScope(connectionID, priorRoomID)
		if priorRoom, ok := o.registry.FindRoomByID(priorRoomID); ok {
			o.bus.Broadcast(priorRoomID, "member-left", memberLeftPayload{MemberID: p.MemberID, Members: priorRoom.Members()})
		}
	}

	o.bus.SendTo(connectionID, "room-joined", roomJoinedPayload{RoomID: p.RoomID, Members: members})

	if !isReconnect {
		o.bus.Broadcast(p.RoomID, "member-joined", memberJoinedPayload{MemberID: p.MemberID, Members: members}, connectionID)
		if p.MemberID != hostID {
			if hostConnID, ok := o.registry.GetUserSocket(hostID); ok {
				o.bus.SendTo(hostConnID, "viewer-joined", viewerJoinedPayload{ViewerID: connectionID})
			}
		}
	}

	history := o.chat.History(ctx, p.RoomID, 0)
	o.bus.SendTo(connectionID, "chat-history", chatHistoryPayload{Messages: history})
}

func (o *Orchestrator) handleLeaveRoom(ctx context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[leaveRoomPayload](raw)
	if !ok {
		return
	}
	o.presence.Cancel(p.MemberID)
	o.departUser(ctx, p.RoomID, p.MemberID, connectionID)
}

// departUser removes userID from roomID, destroying the room if userID was
// the host (spec §4.2's host-left rule), and always cleans up the
// registry's socket/room/presence bindings for userID.
func (o *Orchestrator) departUser(ctx context.Context, roomID, userID, connectionID string) {
	o.mu.Lock()
	room, exists := o.registry.FindRoomByID(roomID)
	if !exists {
		o.mu.Unlock()
		return
	}
	isHost := userID == room.HostID
	o.registry.RemoveMemberFromRoom(roomID, userID)
	members := room.Members()
	o.mu.Unlock()

	o.bus.Broadcast(roomID, "member-left", memberLeftPayload{MemberID: userID, Members: members})

	if isHost {
		o.destroyRoom(ctx, roomID, "Host has left the room")
	}

	o.bus.LeaveScope(connectionID, roomID)

	o.mu.Lock()
	o.registry.DeleteUserSocket(userID)
	o.registry.DeleteUserRoom(userID)
	o.registry.DeletePresence(userID)
	delete(o.connUser, connectionID)
	delete(o.connRoom, connectionID)
	o.mu.Unlock()
}

// destroyRoom tears down a room's media resources, chat history, and
// registry entry, notifying members first (spec §5's ordering guarantee:
// producerClosed/member-left precede room-deleted).
func (o *Orchestrator) destroyRoom(ctx context.Context, roomID, message string) {
	o.bus.Broadcast(roomID, "room-deleted", roomDeletedPayload{Message: message})
	o.media.CloseRoom(roomID)
	o.chat.DeleteRoomHistory(ctx, roomID)
	o.mu.Lock()
	o.registry.DeleteRoom(roomID)
	o.mu.Unlock()
	logging.Info(ctx, "room destroyed", zap.String("room_id", roomID))
}
