// Package orchestrator implements the Signaling Orchestrator (spec §4.4):
// the event-driven dispatcher that ties the Room Registry, Presence
// Controller, and Media Engine Facade together over the Event Bus
// Adapter's Dispatcher/EventBus seam.
//
// Every mutation of the registry, presence table, or media router map
// happens under mu, the single exclusion domain spec §5 requires; handlers
// release it before any Media Engine or storage call that can block, then
// reacquire it to commit the result (spec §5's "acquire, release, await,
// reacquire" rule).
package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/spinlive/roomserver/internal/v1/chat"
	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/mediaengine"
	"github.com/spinlive/roomserver/internal/v1/metrics"
	"github.com/spinlive/roomserver/internal/v1/presence"
	"github.com/spinlive/roomserver/internal/v1/registry"
	"github.com/spinlive/roomserver/internal/v1/transport"
)

var tracer = otel.Tracer("roomserver/orchestrator")

// CrossPodBus is the subset of the Redis pub/sub bus the orchestrator needs
// to relay an event to a connection this process doesn't hold locally. A
// nil CrossPodBus disables cross-pod relay — the common single-process
// deployment mode.
type CrossPodBus interface {
	Publish(ctx context.Context, roomID string, event string, payload any, senderID string, roles []string) error
}

// Orchestrator implements transport.Dispatcher and drives every inbound
// event named in spec §6.
type Orchestrator struct {
	mu sync.Mutex

	registry *registry.Registry
	presence *presence.Controller
	media    *mediaengine.Pool
	chat     *chat.Coordinator
	bus      transport.EventBus
	crossPod CrossPodBus

	// connRoom/connUser track the per-connection binding the registry
	// itself doesn't: which roomId and userId a given connectionId last
	// announced itself as, so disconnect/relay handlers don't need the
	// client to resend identity on every message.
	connRoom map[string]string
	connUser map[string]string
}

// New constructs an Orchestrator. crossPod may be nil.
func New(reg *registry.Registry, pres *presence.Controller, media *mediaengine.Pool, chatCoord *chat.Coordinator, bus transport.EventBus, crossPod CrossPodBus) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		presence: pres,
		media:    media,
		chat:     chatCoord,
		bus:      bus,
		crossPod: crossPod,
		connRoom: make(map[string]string),
		connUser: make(map[string]string),
	}
}

// OnConnect is a no-op: identity isn't known until the first create-room
// or join-room event carries it.
func (o *Orchestrator) OnConnect(connectionID string) {}

// decodePayload unmarshals an envelope's raw JSON payload into T. Mirrors
// the teacher's own assertPayload[T] generic, adapted for a payload that
// always arrives as json.RawMessage rather than a pre-decoded any.
func decodePayload[T any](raw json.RawMessage) (T, bool) {
	var out T
	if len(raw) == 0 {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		logging.Error(context.Background(), "orchestrator: payload decode failed", zap.Error(err))
		return out, false
	}
	return out, true
}

// OnMessage is the dispatch-by-event-name switch (spec §4.4), grounded on
// the teacher's own router() in internal/v1/session/room.go.
func (o *Orchestrator) OnMessage(connectionID string, env transport.Envelope) {
	ctx, span := tracer.Start(context.Background(), env.Event)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.MessageProcessingDuration.WithLabelValues(env.Event).Observe(time.Since(start).Seconds())
		metrics.WebsocketEvents.WithLabelValues(env.Event, "processed").Inc()
	}()

	switch env.Event {
	case "create-room":
		o.handleCreateRoom(ctx, connectionID, env.Payload)
	case "validate-room":
		o.handleValidateRoom(ctx, connectionID, env.Payload)
	case "join-room":
		o.handleJoinRoom(ctx, connectionID, env.Payload)
	case "leave-room":
		o.handleLeaveRoom(ctx, connectionID, env.Payload)

	case "offer", "answer", "ice-candidate", "stop-sharing", "host-ready-to-share", "request-stream":
		o.handleRelay(ctx, connectionID, env.Event, env.Payload)

	case "getRouterRtpCapabilities":
		o.handleGetRouterRtpCapabilities(ctx, connectionID, env.Payload)
	case "createTransport":
		o.handleCreateTransport(ctx, connectionID, env.Payload)
	case "connectTransport":
		o.handleConnectTransport(ctx, connectionID, env.Payload)
	case "produce":
		o.handleProduce(ctx, connectionID, env.Payload)
	case "consume":
		o.handleConsume(ctx, connectionID, env.Payload)
	case "resumeConsumer":
		o.handleResumeConsumer(ctx, connectionID, env.Payload)
	case "getProducers":
		o.handleGetProducers(ctx, connectionID, env.Payload)
	case "closeProducer":
		o.handleCloseProducer(ctx, connectionID, env.Payload)

	case "send-message":
		o.handleSendMessage(ctx, connectionID, env.Payload)
	case "react-to-message":
		o.handleReactToMessage(ctx, connectionID, env.Payload)
	case "update-theme":
		o.handleUpdateTheme(ctx, connectionID, env.Payload)
	case "livestream-reaction":
		o.handleLivestreamReaction(ctx, connectionID, env.Payload)
	case "spin-result":
		o.handleSpinResult(ctx, connectionID, env.Payload)

	default:
		logging.Warn(ctx, "orchestrator: unknown event", zap.String("event", env.Event))
	}
}

// OnDisconnect arms the disconnect grace timer for whatever user this
// connection was bound to (spec §4.4 Disconnect / §4.2).
func (o *Orchestrator) OnDisconnect(connectionID string) {
	o.mu.Lock()
	userID, ok := o.connUser[connectionID]
	delete(o.connUser, connectionID)
	delete(o.connRoom, connectionID)
	o.mu.Unlock()

	if !ok {
		return
	}

	o.presence.Arm(userID, func() {
		o.commitDeparture(context.Background(), userID, connectionID)
	})
}

// commitDeparture re-checks liveness before acting — the grace timer is
// advisory, not authoritative (spec §9).
func (o *Orchestrator) commitDeparture(ctx context.Context, userID, expiredConnectionID string) {
	o.mu.Lock()
	current, bound := o.registry.GetUserSocket(userID)
	if bound && current != expiredConnectionID {
		o.mu.Unlock()
		metrics.PresenceGraceExpirations.WithLabelValues("reconnected").Inc()
		return
	}

	roomID, hasRoom := o.registry.GetUserRoom(userID)
	if !hasRoom {
		o.registry.DeleteUserSocket(userID)
		o.registry.DeletePresence(userID)
	}
	o.mu.Unlock()

	metrics.PresenceGraceExpirations.WithLabelValues("expired").Inc()

	if !hasRoom {
		return
	}

	o.departUser(ctx, roomID, userID, expiredConnectionID)
}

func newID() string { return uuid.New().String() }
