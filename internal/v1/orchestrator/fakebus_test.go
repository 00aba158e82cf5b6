package orchestrator

import "sync"

type sentMessage struct {
	to      string
	event   string
	payload any
}

type broadcastMessage struct {
	roomID  string
	event   string
	payload any
	exclude []string
}

// fakeBus is a minimal in-memory transport.EventBus recording every call,
// standing in for *transport.Hub the way the teacher's tests stand in for
// the Hub's gorilla/websocket connections with fake writers.
type fakeBus struct {
	mu sync.Mutex

	sent       []sentMessage
	broadcasts []broadcastMessage
	joined     map[string][]string
	left       map[string][]string
	closed     []string
	local      map[string]bool

	// onClose mirrors transport.Hub.CloseConnection's real behavior: closing
	// the underlying socket drives handleDisconnect -> OnDisconnect. Set
	// after the Orchestrator exists so CloseConnection exercises the same
	// close->disconnect chain production traffic does, instead of merely
	// recording the call.
	onClose func(connectionID string)
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		joined: make(map[string][]string),
		left:   make(map[string][]string),
		local:  make(map[string]bool),
	}
}

func (b *fakeBus) SendTo(connectionID string, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{to: connectionID, event: event, payload: payload})
}

func (b *fakeBus) Broadcast(roomID string, event string, payload any, exclude ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = append(b.broadcasts, broadcastMessage{roomID: roomID, event: event, payload: payload, exclude: exclude})
}

func (b *fakeBus) JoinScope(connectionID string, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joined[roomID] = append(b.joined[roomID], connectionID)
	b.local[connectionID] = true
}

func (b *fakeBus) LeaveScope(connectionID string, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.left[roomID] = append(b.left[roomID], connectionID)
}

func (b *fakeBus) CloseConnection(connectionID string) {
	b.mu.Lock()
	b.closed = append(b.closed, connectionID)
	delete(b.local, connectionID)
	onClose := b.onClose
	b.mu.Unlock()

	if onClose != nil {
		onClose(connectionID)
	}
}

func (b *fakeBus) KnownLocally(connectionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.local[connectionID]
}

func (b *fakeBus) sentTo(connID string) []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentMessage
	for _, m := range b.sent {
		if m.to == connID {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBus) lastEvent(event string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.broadcasts) - 1; i >= 0; i-- {
		if b.broadcasts[i].event == event {
			return b.broadcasts[i].payload, true
		}
	}
	for i := len(b.sent) - 1; i >= 0; i-- {
		if b.sent[i].event == event {
			return b.sent[i].payload, true
		}
	}
	return nil, false
}
