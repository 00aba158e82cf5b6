package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/spinlive/roomserver/internal/v1/auth"
	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenValidator is the admission gate contract. *auth.Validator satisfies
// it; nil disables the gate entirely (every connection is admitted).
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.CustomClaims, error)
}

// Hub upgrades WebSocket connections, assigns each an opaque connectionId,
// tracks room-scoped broadcast sets, and forwards lifecycle/message events
// to a Dispatcher. It implements EventBus.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	// scopes maps roomId -> set of member connectionIds, used for Broadcast.
	scopes map[string]map[string]struct{}
	// connScopes maps connectionId -> set of roomIds it has joined, so
	// CloseConnection/disconnect cleanup doesn't need to scan every room.
	connScopes map[string]map[string]struct{}

	dispatcher       Dispatcher
	validator        TokenValidator
	allowedOrigins   []string
	admissionEnabled bool
}

// NewHub constructs a Hub. validator may be nil when admissionEnabled is
// false. allowedOriginsCSV is a comma-separated list as read from
// config.Config.AllowedOrigins; an empty string allows only
// http://localhost:3000, matching the teacher's development default.
func NewHub(dispatcher Dispatcher, validator TokenValidator, admissionEnabled bool, allowedOriginsCSV string) *Hub {
	return &Hub{
		clients:          make(map[string]*Client),
		scopes:           make(map[string]map[string]struct{}),
		connScopes:       make(map[string]map[string]struct{}),
		dispatcher:       dispatcher,
		validator:        validator,
		admissionEnabled: admissionEnabled,
		allowedOrigins:   parseOrigins(allowedOriginsCSV),
	}
}

func parseOrigins(csv string) []string {
	if csv == "" {
		return []string{"http://localhost:3000"}
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		allowedURL, err := url.Parse(a)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

// ServeWs is the gin.HandlerFunc that admits and upgrades a connection.
// When the admission gate is enabled, a bearer token is required (query
// param "token" or the "Sec-WebSocket-Protocol" header) and must validate;
// the authenticated subject is logged only, never used as the room-level
// userId (see internal/v1/auth's doc comment).
func (h *Hub) ServeWs(c *gin.Context) {
	if !validateOrigin(c.Request, h.allowedOrigins) {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	if h.admissionEnabled {
		token := c.Query("token")
		if token == "" {
			token = c.GetHeader("Sec-WebSocket-Protocol")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token not provided"})
			return
		}
		claims, err := h.validator.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		logging.Info(c.Request.Context(), "admission gate validated connection", zap.String("subject", claims.Subject))
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins)
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to upgrade connection", zap.Error(err))
		return
	}

	connectionID := uuid.New().String()
	client := newClient(h, conn, connectionID)

	h.mu.Lock()
	h.clients[connectionID] = client
	h.connScopes[connectionID] = make(map[string]struct{})
	h.mu.Unlock()

	metrics.ActiveWebSocketConnections.Inc()
	logging.Info(c.Request.Context(), "connection established", zap.String("connectionId", connectionID))

	go client.writePump()
	go client.readPump()

	h.dispatcher.OnConnect(connectionID)
}

func (h *Hub) dispatchMessage(connectionID string, env Envelope) {
	h.dispatcher.OnMessage(connectionID, env)
}

// handleDisconnect is called from the client's readPump once its connection
// loop exits for any reason (client close, network error).
func (h *Hub) handleDisconnect(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.connectionID)
	rooms := h.connScopes[c.connectionID]
	delete(h.connScopes, c.connectionID)
	for roomID := range rooms {
		if members, ok := h.scopes[roomID]; ok {
			delete(members, c.connectionID)
			if len(members) == 0 {
				delete(h.scopes, roomID)
			}
		}
	}
	h.mu.Unlock()

	c.close()
	h.dispatcher.OnDisconnect(c.connectionID)
}

// --- EventBus ---

// SendTo delivers an event to a single connection. A non-existent
// connection is a silent no-op (the target may have just disconnected).
func (h *Hub) SendTo(connectionID string, event string, payload any) {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	env, err := NewEnvelope(event, payload)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal outbound envelope", zap.String("event", event), zap.Error(err))
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal outbound envelope", zap.String("event", event), zap.Error(err))
		return
	}
	client.enqueue(data)
}

// Broadcast delivers an event to every connection currently joined to
// roomID, skipping any connectionId listed in exclude.
func (h *Hub) Broadcast(roomID string, event string, payload any, exclude ...string) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal outbound envelope", zap.String("event", event), zap.Error(err))
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal outbound envelope", zap.String("event", event), zap.Error(err))
		return
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	h.mu.RLock()
	members := h.scopes[roomID]
	targets := make([]*Client, 0, len(members))
	for connID := range members {
		if _, excluded := skip[connID]; excluded {
			continue
		}
		if c, ok := h.clients[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// JoinScope adds a connection to a room's broadcast set.
func (h *Hub) JoinScope(connectionID string, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.scopes[roomID] == nil {
		h.scopes[roomID] = make(map[string]struct{})
	}
	h.scopes[roomID][connectionID] = struct{}{}
	if h.connScopes[connectionID] == nil {
		h.connScopes[connectionID] = make(map[string]struct{})
	}
	h.connScopes[connectionID][roomID] = struct{}{}
}

// LeaveScope removes a connection from a room's broadcast set.
func (h *Hub) LeaveScope(connectionID string, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.scopes[roomID]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(h.scopes, roomID)
		}
	}
	if rooms, ok := h.connScopes[connectionID]; ok {
		delete(rooms, roomID)
	}
}

// CloseConnection forcibly closes a connection's underlying transport. The
// resulting read error drives the normal handleDisconnect/OnDisconnect
// path, so callers don't invoke OnDisconnect themselves.
func (h *Hub) CloseConnection(connectionID string) {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	client.conn.Close()
}

// KnownLocally reports whether connectionID is currently held by this Hub.
func (h *Hub) KnownLocally(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connectionID]
	return ok
}

// Shutdown closes every active connection, used on process shutdown.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
	}
	logging.Info(ctx, "transport hub shut down", zap.Int("connectionsClosed", len(clients)))
}
