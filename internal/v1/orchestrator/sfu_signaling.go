package orchestrator

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/mediaengine"
)

type routerRtpCapabilitiesPayload struct {
	RtpCapabilities mediaengine.RtpCapabilities `json:"rtpCapabilities"`
}

type transportCreatedPayload struct {
	Direction      string           `json:"direction"`
	TransportID    string           `json:"transportId"`
	ID             string           `json:"id"`
	IceParameters  map[string]any   `json:"iceParameters"`
	IceCandidates  []map[string]any `json:"iceCandidates"`
	DtlsParameters map[string]any   `json:"dtlsParameters"`
}

type transportConnectedPayload struct {
	TransportID string `json:"transportId"`
}

type producedPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type newProducerPayload struct {
	ProducerID string `json:"producerId"`
	Kind       string `json:"kind"`
}

type consumedPayload struct {
	ID         string `json:"id"`
	ProducerID string `json:"producerId"`
	Kind       string `json:"kind"`
}

type consumerResumedPayload struct {
	ConsumerID string `json:"consumerId"`
}

type producersPayload struct {
	Producers []string `json:"producers"`
}

// handleGetRouterRtpCapabilities ensures a router exists for the room and
// replies with its capabilities (spec §4.4 SFU signaling).
func (o *Orchestrator) handleGetRouterRtpCapabilities(ctx context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[getRouterRtpCapabilitiesPayload](raw)
	if !ok {
		return
	}

	caps, err := o.media.CreateRouter(p.RoomID)
	if err != nil {
		logging.Error(ctx, "orchestrator: createRouter failed", zap.String("room_id", p.RoomID), zap.Error(err))
		o.bus.SendTo(connectionID, "error", errorPayload{Message: "media engine unavailable"})
		return
	}

	o.bus.SendTo(connectionID, "routerRtpCapabilities", routerRtpCapabilitiesPayload{RtpCapabilities: caps})
}

func (o *Orchestrator) handleCreateTransport(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[createTransportPayload](raw)
	if !ok {
		return
	}

	t, created := o.media.CreateWebRtcTransport(p.RoomID, connectionID, p.Direction)
	if !created {
		o.bus.SendTo(connectionID, "error", errorPayload{Message: "room has no router"})
		return
	}

	o.bus.SendTo(connectionID, "transportCreated", transportCreatedPayload{
		Direction:      t.Direction,
		TransportID:    t.ID,
		ID:             t.ID,
		IceParameters:  t.IceParameters,
		IceCandidates:  t.IceCandidates,
		DtlsParameters: t.DtlsParameters,
	})
}

func (o *Orchestrator) handleConnectTransport(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[connectTransportPayload](raw)
	if !ok {
		return
	}

	if !o.media.ConnectTransport(p.RoomID, p.TransportID) {
		o.bus.SendTo(connectionID, "error", errorPayload{Message: "transport not found"})
		return
	}

	o.bus.SendTo(connectionID, "transportConnected", transportConnectedPayload{TransportID: p.TransportID})
}

func (o *Orchestrator) handleProduce(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[producePayload](raw)
	if !ok {
		return
	}

	prod, created := o.media.Produce(p.RoomID, p.TransportID, p.Kind)
	if !created {
		o.bus.SendTo(connectionID, "error", errorPayload{Message: "transport not found"})
		return
	}

	o.bus.SendTo(connectionID, "produced", producedPayload{Kind: prod.Kind, ID: prod.ID})
	o.bus.Broadcast(p.RoomID, "newProducer", newProducerPayload{ProducerID: prod.ID, Kind: prod.Kind}, connectionID)
}

func (o *Orchestrator) handleConsume(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[consumePayload](raw)
	if !ok {
		return
	}

	cons, created := o.media.Consume(p.RoomID, p.TransportID, p.ProducerID, "")
	if !created {
		o.bus.SendTo(connectionID, "error", errorPayload{Message: "producer or transport not found"})
		return
	}

	o.bus.SendTo(connectionID, "consumed", consumedPayload{ID: cons.ID, ProducerID: cons.ProducerID, Kind: cons.Kind})
}

func (o *Orchestrator) handleResumeConsumer(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[resumeConsumerPayload](raw)
	if !ok {
		return
	}

	if !o.media.ResumeConsumer(p.RoomID, p.ConsumerID) {
		o.bus.SendTo(connectionID, "error", errorPayload{Message: "consumer not found"})
		return
	}

	o.bus.SendTo(connectionID, "consumerResumed", consumerResumedPayload{ConsumerID: p.ConsumerID})
}

func (o *Orchestrator) handleGetProducers(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[getProducersPayload](raw)
	if !ok {
		return
	}

	producers := o.media.GetProducers(p.RoomID)
	ids := make([]string, 0, len(producers))
	for _, prod := range producers {
		ids = append(ids, prod.ID)
	}

	o.bus.SendTo(connectionID, "producers", producersPayload{Producers: ids})
}

// handleCloseProducer enforces spec §9's resolution of the closeProducer
// ownership open question: only the room's host connection may close a
// producer, mirroring the teacher's HasPermission(role, ...) gate in
// internal/v1/session/handlers.go. The facade itself performs no such
// check.
func (o *Orchestrator) handleCloseProducer(_ context.Context, connectionID string, raw json.RawMessage) {
	p, ok := decodePayload[closeProducerPayload](raw)
	if !ok {
		return
	}

	room, exists := o.registry.FindRoomByID(p.RoomID)
	if !exists {
		return
	}

	o.mu.Lock()
	userID, knownConn := o.connUser[connectionID]
	o.mu.Unlock()
	if !knownConn || userID != room.HostID {
		o.bus.SendTo(connectionID, "error", errorPayload{Message: "only the host may close a producer"})
		return
	}

	if !o.media.CloseProducer(p.RoomID, p.ProducerID) {
		return
	}

	o.bus.Broadcast(p.RoomID, "producerClosed", producerClosedPayload{ProducerID: p.ProducerID})
}
