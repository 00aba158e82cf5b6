// Package transport is the Event Bus Adapter: a thin abstraction over a
// bidirectional WebSocket transport providing per-connection identity,
// room-scoped broadcast, targeted send, and connect/disconnect callbacks.
// Everything above this package — the signaling orchestrator, the
// registry, presence, chat — depends only on the Dispatcher/EventBus
// interfaces declared here, never on gorilla/websocket directly.
package transport

import "encoding/json"

// Envelope is the wire format for every message exchanged over the
// connection: a named event carrying a JSON payload whose shape is owned
// by the orchestrator, not by this package.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. A nil payload yields an
// Envelope with no payload; a payload that cannot be marshaled returns the
// marshaling error.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Payload: raw}, nil
}

// Dispatcher receives connection lifecycle and inbound message events from
// the Hub. The signaling orchestrator implements this; transport never
// imports the orchestrator package, avoiding an import cycle.
type Dispatcher interface {
	OnConnect(connectionID string)
	OnMessage(connectionID string, envelope Envelope)
	OnDisconnect(connectionID string)
}

// EventBus is the outbound half: what the orchestrator uses to talk back to
// connections, individually or by room scope. *Hub implements this
// structurally.
type EventBus interface {
	SendTo(connectionID string, event string, payload any)
	Broadcast(roomID string, event string, payload any, exclude ...string)
	JoinScope(connectionID string, roomID string)
	LeaveScope(connectionID string, roomID string)
	CloseConnection(connectionID string)
	// KnownLocally reports whether connectionID is currently held by this
	// process. The orchestrator uses this to decide whether a targeted
	// relay message (offer/answer/ice-candidate/request-stream) can be
	// delivered directly or must be republished on the cross-pod bus.
	KnownLocally(connectionID string) bool
}
