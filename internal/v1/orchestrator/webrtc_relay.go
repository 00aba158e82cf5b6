package orchestrator

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spinlive/roomserver/internal/v1/logging"
)

type offerOutPayload struct {
	Offer json.RawMessage `json:"offer"`
	From  string          `json:"from"`
}

type answerOutPayload struct {
	Answer json.RawMessage `json:"answer"`
	From   string          `json:"from"`
}

type iceCandidateOutPayload struct {
	Candidate json.RawMessage `json:"candidate"`
	From      string          `json:"from"`
}

type existingViewersPayload struct {
	ViewerIDs []string `json:"viewerIds"`
}

type requestStreamOutPayload struct {
	ViewerID string `json:"viewerId"`
}

// relayedPayload is what crosses the cross-pod bus: the intended recipient
// plus the original outbound payload, so the receiving pod can filter
// locally (spec §4.4's "carrying the target id in the payload" rule).
type relayedPayload struct {
	Target  string `json:"target"`
	Payload any    `json:"payload"`
}

// relayTo delivers event/payload to targetConnID. Local delivery goes
// through the EventBus, whose SendTo is itself non-blocking (spec §4.4).
// When the target isn't held by this process, the message is republished
// on the cross-pod bus carrying the target id, rather than silently
// dropped — grounded on the teacher's own forwardWebRTCSignal in
// internal/v1/session/webrtc.go.
func (o *Orchestrator) relayTo(ctx context.Context, roomID, senderConnID, targetConnID, event string, payload any) {
	if o.bus.KnownLocally(targetConnID) {
		o.bus.SendTo(targetConnID, event, payload)
		return
	}
	if o.crossPod == nil {
		logging.Warn(ctx, "orchestrator: relay target not found locally and no cross-pod bus configured",
			zap.String("event", event), zap.String("target", targetConnID))
		return
	}
	if err := o.crossPod.Publish(ctx, roomID, event, relayedPayload{Target: targetConnID, Payload: payload}, senderConnID, nil); err != nil {
		logging.Error(ctx, "orchestrator: cross-pod relay publish failed", zap.String("event", event), zap.Error(err))
	}
}

// handleRelay dispatches the six WebRTC legacy-signaling events (spec
// §4.4's "WebRTC relay" paragraph). It's one function, not six, because
// every branch needs the same roomId-scoped payload decode and all but
// stop-sharing/host-ready-to-share/request-stream share the
// targeted-vs-broadcast shape.
func (o *Orchestrator) handleRelay(ctx context.Context, connectionID, event string, raw json.RawMessage) {
	switch event {
	case "offer":
		p, ok := decodePayload[offerPayload](raw)
		if !ok {
			return
		}
		o.relayTo(ctx, p.RoomID, connectionID, p.To, "offer", offerOutPayload{Offer: p.Offer, From: connectionID})

	case "answer":
		p, ok := decodePayload[answerPayload](raw)
		if !ok {
			return
		}
		o.bus.Broadcast(p.RoomID, "answer", answerOutPayload{Answer: p.Answer, From: connectionID}, connectionID)

	case "ice-candidate":
		p, ok := decodePayload[iceCandidatePayload](raw)
		if !ok {
			return
		}
		out := iceCandidateOutPayload{Candidate: p.Candidate, From: connectionID}
		if p.To != "" {
			o.relayTo(ctx, p.RoomID, connectionID, p.To, "ice-candidate", out)
		} else {
			o.bus.Broadcast(p.RoomID, "ice-candidate", out, connectionID)
		}

	case "stop-sharing":
		p, ok := decodePayload[stopSharingPayload](raw)
		if !ok {
			return
		}
		o.bus.Broadcast(p.RoomID, "stop-sharing", nil)

	case "host-ready-to-share":
		o.handleHostReadyToShare(ctx, connectionID, raw)

	case "request-stream":
		o.handleRequestStream(ctx, connectionID, raw)
	}
}

// handleHostReadyToShare replies to the host with the connectionIds of
// every other member currently in the room (spec §4.4).
func (o *Orchestrator) handleHostReadyToShare(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[hostReadyToSharePayload](raw)
	if !ok {
		return
	}

	room, exists := o.registry.FindRoomByID(p.RoomID)
	if !exists {
		return
	}

	var viewers []string
	for _, memberID := range room.Members() {
		if memberID == room.HostID {
			continue
		}
		if connID, ok := o.registry.GetUserSocket(memberID); ok {
			viewers = append(viewers, connID)
		}
	}

	o.bus.SendTo(connectionID, "existing-viewers", existingViewersPayload{ViewerIDs: viewers})
}

// handleRequestStream forwards a viewer's stream request to the room's
// host, identified by the requester's connectionId (spec §4.4).
func (o *Orchestrator) handleRequestStream(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[requestStreamPayload](raw)
	if !ok {
		return
	}

	room, exists := o.registry.FindRoomByID(p.RoomID)
	if !exists {
		return
	}

	hostConnID, ok := o.registry.GetUserSocket(room.HostID)
	if !ok {
		return
	}

	o.bus.SendTo(hostConnID, "request-stream", requestStreamOutPayload{ViewerID: connectionID})
}
