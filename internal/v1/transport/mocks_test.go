package transport

import (
	"sync"
	"time"

	"github.com/spinlive/roomserver/internal/v1/auth"
)

// mockConnection implements wsConnection for deterministic client/hub tests.
type mockConnection struct {
	mu               sync.Mutex
	ReadMessageFunc  func() (int, []byte, error)
	WriteMessageFunc func(int, []byte) error
	CloseFunc        func() error
	writes           [][]byte
	closed           bool
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	if m.ReadMessageFunc != nil {
		return m.ReadMessageFunc()
	}
	return 0, nil, nil
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, append([]byte(nil), data...))
	if m.WriteMessageFunc != nil {
		return m.WriteMessageFunc(messageType, data)
	}
	return nil
}

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *mockConnection) SetWriteDeadline(_ time.Time) error { return nil }
func (m *mockConnection) SetReadDeadline(_ time.Time) error  { return nil }
func (m *mockConnection) SetPongHandler(_ func(string) error) {}

func (m *mockConnection) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *mockConnection) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockDispatcher records the lifecycle/message callbacks a Hub delivers.
type mockDispatcher struct {
	mu           sync.Mutex
	connected    []string
	disconnected []string
	messages     []Envelope
}

func (d *mockDispatcher) OnConnect(connectionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = append(d.connected, connectionID)
}

func (d *mockDispatcher) OnMessage(connectionID string, envelope Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, envelope)
}

func (d *mockDispatcher) OnDisconnect(connectionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnected = append(d.disconnected, connectionID)
}

// mockValidator implements TokenValidator.
type mockValidator struct {
	claims *auth.CustomClaims
	err    error
}

func (m *mockValidator) ValidateToken(string) (*auth.CustomClaims, error) {
	return m.claims, m.err
}
