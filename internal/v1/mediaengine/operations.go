package mediaengine

import (
	"fmt"
	"strings"

	"github.com/spinlive/roomserver/internal/v1/metrics"
)

// ErrNoWorkers is returned when a room-creating operation is attempted
// against an empty pool (all workers dead, recovery exhausted, termination
// pending).
var ErrNoWorkers = fmt.Errorf("media engine: no workers available")

// CreateRouter assigns a room to a worker via round-robin and creates its
// media bundle, returning the room's RtpCapabilities. Idempotent: calling
// it again for a room that already has a bundle returns the existing
// bundle's capabilities without reassigning a worker.
func (p *Pool) CreateRouter(roomID string) (RtpCapabilities, error) {
	p.mu.Lock()
	if b, ok := p.rooms[roomID]; ok {
		p.mu.Unlock()
		b.mu.Lock()
		caps := b.caps
		b.mu.Unlock()
		return caps, nil
	}
	p.mu.Unlock()

	w := p.nextWorker()
	if w == nil {
		return RtpCapabilities{}, ErrNoWorkers
	}

	b := newBundle(roomID, w.PID)

	p.mu.Lock()
	p.rooms[roomID] = b
	p.mu.Unlock()

	p.triggerAutoscale()

	return b.caps, nil
}

// getBundle fetches a room's bundle. Returns nil if the room has no
// bundle — callers treat this as a no-op per spec §4.3's
// idempotent-on-missing-room rule, not an error.
func (p *Pool) getBundle(roomID string) *bundle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rooms[roomID]
}

func (p *Pool) workerFor(pid int) *Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		if w.PID == pid {
			return w
		}
	}
	return nil
}

// GetRouterRtpCapabilities returns a room's RtpCapabilities. Returns false
// if the room has no router yet.
func (p *Pool) GetRouterRtpCapabilities(roomID string) (RtpCapabilities, bool) {
	b := p.getBundle(roomID)
	if b == nil {
		return RtpCapabilities{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caps, true
}

// CreateWebRtcTransport creates a simulated transport for a connection in a
// given direction ("send" or "recv"), id "{connectionId}-{direction}" per
// spec §3. No-op (nil, false) if the room has no router.
func (p *Pool) CreateWebRtcTransport(roomID, connectionID, direction string) (*Transport, bool) {
	b := p.getBundle(roomID)
	if b == nil {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := connectionID + "-" + direction
	t := &Transport{
		ID:        id,
		Direction: direction,
		IceParameters: map[string]any{
			"usernameFragment": b.mintID("ufrag"),
			"password":         b.mintID("pwd"),
		},
		IceCandidates: []map[string]any{
			{"ip": p.announcedIP, "protocol": "udp", "port": 0},
		},
		DtlsParameters: map[string]any{"role": "auto"},
	}
	b.transports[id] = t
	return t, true
}

// ConnectTransport marks a transport as DTLS-connected. Returns false if the
// room or the transport is unknown.
func (p *Pool) ConnectTransport(roomID, transportID string) bool {
	b := p.getBundle(roomID)
	if b == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.transports[transportID]
	if !ok {
		return false
	}
	t.connected = true
	return true
}

// Produce creates a producer on a transport and attributes it to the
// bundle's owning worker for load accounting. Returns false if the room or
// transport is unknown.
func (p *Pool) Produce(roomID, transportID, kind string) (*Producer, bool) {
	b := p.getBundle(roomID)
	if b == nil {
		return nil, false
	}

	b.mu.Lock()
	if _, ok := b.transports[transportID]; !ok {
		b.mu.Unlock()
		return nil, false
	}
	prod := &Producer{ID: b.mintID("producer"), Kind: kind}
	b.producers[prod.ID] = prod
	workerID := b.workerID
	b.mu.Unlock()

	if w := p.workerFor(workerID); w != nil {
		w.incProducers(1)
	}
	metrics.MediaEngineProducers.Inc()

	return prod, true
}

// Consume creates a consumer for a given producer on a transport. Consumers
// start unpaused (spec §9 resolution). Returns false if the room,
// transport, or producer is unknown.
func (p *Pool) Consume(roomID, transportID, producerID, kind string) (*Consumer, bool) {
	b := p.getBundle(roomID)
	if b == nil {
		return nil, false
	}

	b.mu.Lock()
	if _, ok := b.transports[transportID]; !ok {
		b.mu.Unlock()
		return nil, false
	}
	prod, ok := b.producers[producerID]
	if !ok {
		b.mu.Unlock()
		return nil, false
	}
	if kind == "" {
		kind = prod.Kind
	}
	cons := &Consumer{ID: b.mintID("consumer"), ProducerID: producerID, Kind: kind}
	b.consumers[cons.ID] = cons
	workerID := b.workerID
	b.mu.Unlock()

	if w := p.workerFor(workerID); w != nil {
		w.incConsumers(1)
	}
	metrics.MediaEngineConsumers.Inc()

	return cons, true
}

// ResumeConsumer unpauses a consumer. Idempotent: resuming an already
// unpaused consumer is a no-op that returns true (spec §9 resolution).
// Returns false only if the room or consumer is unknown.
func (p *Pool) ResumeConsumer(roomID, consumerID string) bool {
	b := p.getBundle(roomID)
	if b == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.consumers[consumerID]
	if !ok {
		return false
	}
	c.paused = false
	return true
}

// GetProducers lists a room's active producers. Returns nil, not an error,
// if the room has no router.
func (p *Pool) GetProducers(roomID string) []*Producer {
	b := p.getBundle(roomID)
	if b == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Producer, 0, len(b.producers))
	for _, prod := range b.producers {
		out = append(out, prod)
	}
	return out
}

// CloseProducer removes a producer and every consumer feeding off it. Per
// spec §9's resolution, callers are expected to have already restricted
// this to the room's host connection — this method itself only performs
// the bookkeeping. A no-op (false) if the room or producer is unknown.
func (p *Pool) CloseProducer(roomID, producerID string) bool {
	b := p.getBundle(roomID)
	if b == nil {
		return false
	}

	b.mu.Lock()
	if _, ok := b.producers[producerID]; !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.producers, producerID)

	removedConsumers := 0
	for id, c := range b.consumers {
		if c.ProducerID == producerID {
			delete(b.consumers, id)
			removedConsumers++
		}
	}
	workerID := b.workerID
	b.mu.Unlock()

	if w := p.workerFor(workerID); w != nil {
		w.incProducers(-1)
		if removedConsumers > 0 {
			w.incConsumers(-removedConsumers)
		}
	}
	metrics.MediaEngineProducers.Dec()
	for i := 0; i < removedConsumers; i++ {
		metrics.MediaEngineConsumers.Dec()
	}

	return true
}

// CloseTransport removes a transport record only: producers and consumers
// created through it are left in place (CleanupUserMedia is the call that
// tears those down). Returns false if the room or transport is unknown.
func (p *Pool) CloseTransport(roomID, transportID string) bool {
	b := p.getBundle(roomID)
	if b == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.transports[transportID]; !ok {
		return false
	}
	delete(b.transports, transportID)
	return true
}

// CleanupUserMedia closes every transport whose id begins with
// "{connectionID}-". Ownership below the transport level cannot be
// attributed (producer/consumer ids don't encode a connection), so if any
// transport was closed, every producer in the room is closed too and the
// producer map is cleared, along with any consumer feeding off one of
// them. Returns the ids of closed producers. A no-op if the room is
// unknown.
func (p *Pool) CleanupUserMedia(roomID, connectionID string) []string {
	b := p.getBundle(roomID)
	if b == nil {
		return nil
	}

	prefix := connectionID + "-"

	b.mu.Lock()
	closedAny := false
	for id := range b.transports {
		if strings.HasPrefix(id, prefix) {
			delete(b.transports, id)
			closedAny = true
		}
	}

	if !closedAny {
		b.mu.Unlock()
		return nil
	}

	closedProducerIDs := make([]string, 0, len(b.producers))
	for id := range b.producers {
		closedProducerIDs = append(closedProducerIDs, id)
	}
	removedProducers := len(b.producers)
	removedConsumers := len(b.consumers)
	b.producers = make(map[string]*Producer)
	b.consumers = make(map[string]*Consumer)
	workerID := b.workerID
	b.mu.Unlock()

	if w := p.workerFor(workerID); w != nil {
		if removedProducers > 0 {
			w.incProducers(-removedProducers)
		}
		if removedConsumers > 0 {
			w.incConsumers(-removedConsumers)
		}
	}
	metrics.MediaEngineProducers.Sub(float64(removedProducers))
	metrics.MediaEngineConsumers.Sub(float64(removedConsumers))

	return closedProducerIDs
}

// CloseRoom tears down a room's entire bundle, freeing its worker-attributed
// load. A no-op if the room is unknown.
func (p *Pool) CloseRoom(roomID string) {
	p.mu.Lock()
	b, ok := p.rooms[roomID]
	if ok {
		delete(p.rooms, roomID)
	}
	p.mu.Unlock()

	if !ok {
		return
	}

	b.mu.Lock()
	producers := len(b.producers)
	consumers := len(b.consumers)
	workerID := b.workerID
	b.mu.Unlock()

	if w := p.workerFor(workerID); w != nil {
		if producers > 0 {
			w.incProducers(-producers)
		}
		if consumers > 0 {
			w.incConsumers(-consumers)
		}
	}
	metrics.MediaEngineProducers.Sub(float64(producers))
	metrics.MediaEngineConsumers.Sub(float64(consumers))

	p.triggerAutoscale()
}
