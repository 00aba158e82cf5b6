package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsConnection is the subset of *websocket.Conn the Client needs, narrowed
// for testability the way the teacher's transport package does.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client represents one connected WebSocket peer. It knows nothing about
// rooms, users, or media — it is a pure framing/delivery primitive that the
// Hub and, through it, the orchestrator drive.
type Client struct {
	conn         wsConnection
	hub          *Hub
	connectionID string

	send chan []byte

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func newClient(hub *Hub, conn wsConnection, connectionID string) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		connectionID: connectionID,
		send:         make(chan []byte, 256),
	}
}

// enqueue pushes a framed message onto the client's send channel. Full
// channels drop the message and log, matching the teacher's non-blocking
// send convention, rather than stalling the writer pump.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		logging.Warn(context.Background(), "client send channel full, dropping message",
			zap.String("connectionId", c.connectionID))
	}
}

// close shuts down the client's send channel exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		c.conn.Close()
		metrics.DecConnection()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn(context.Background(), "failed to unmarshal envelope",
				zap.String("connectionId", c.connectionID), zap.Error(err))
			continue
		}

		c.hub.dispatchMessage(c.connectionID, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Error(context.Background(), "error writing message",
					zap.String("connectionId", c.connectionID), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
