package mediaengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p, err := NewPool(context.Background(), 1, 2, "203.0.113.5")
	require.NoError(t, err)
	return p
}

func TestCreateRouter_IdempotentAndAssignsWorker(t *testing.T) {
	p := newTestPool(t)

	caps1, err := p.CreateRouter("room-a")
	require.NoError(t, err)
	assert.NotEmpty(t, caps1.Codecs)

	caps2, err := p.CreateRouter("room-a")
	require.NoError(t, err)
	assert.Equal(t, caps1, caps2)
}

func TestCreateRouter_NoWorkers(t *testing.T) {
	p := &Pool{rooms: make(map[string]*bundle)}
	_, err := p.CreateRouter("room-a")
	assert.ErrorIs(t, err, ErrNoWorkers)
}

func TestGetRouterRtpCapabilities_UnknownRoom(t *testing.T) {
	p := newTestPool(t)
	_, ok := p.GetRouterRtpCapabilities("ghost")
	assert.False(t, ok)
}

func TestTransportLifecycle(t *testing.T) {
	p := newTestPool(t)
	_, err := p.CreateRouter("room-a")
	require.NoError(t, err)

	tr, ok := p.CreateWebRtcTransport("room-a", "conn-1", "send")
	require.True(t, ok)
	assert.Equal(t, "conn-1-send", tr.ID)

	assert.True(t, p.ConnectTransport("room-a", tr.ID))
	assert.False(t, p.ConnectTransport("room-a", "nonexistent"))
}

func TestProduceConsumeResume(t *testing.T) {
	p := newTestPool(t)
	_, err := p.CreateRouter("room-a")
	require.NoError(t, err)

	tr, ok := p.CreateWebRtcTransport("room-a", "conn-1", "send")
	require.True(t, ok)

	prod, ok := p.Produce("room-a", tr.ID, "video")
	require.True(t, ok)

	rtr, ok := p.CreateWebRtcTransport("room-a", "conn-2", "recv")
	require.True(t, ok)

	cons, ok := p.Consume("room-a", rtr.ID, prod.ID, "video")
	require.True(t, ok)
	assert.False(t, cons.paused, "consumers must start unpaused")

	assert.True(t, p.ResumeConsumer("room-a", cons.ID), "resuming an already-unpaused consumer is a no-op success")
	assert.False(t, p.ResumeConsumer("room-a", "ghost"))

	producers := p.GetProducers("room-a")
	assert.Len(t, producers, 1)
}

func TestProduce_UnknownTransport(t *testing.T) {
	p := newTestPool(t)
	_, err := p.CreateRouter("room-a")
	require.NoError(t, err)

	_, ok := p.Produce("room-a", "ghost-transport", "video")
	assert.False(t, ok)
}

func TestCloseProducer_RemovesDependentConsumers(t *testing.T) {
	p := newTestPool(t)
	_, err := p.CreateRouter("room-a")
	require.NoError(t, err)

	tr, _ := p.CreateWebRtcTransport("room-a", "conn-1", "send")
	prod, _ := p.Produce("room-a", tr.ID, "video")

	rtr, _ := p.CreateWebRtcTransport("room-a", "conn-2", "recv")
	_, ok := p.Consume("room-a", rtr.ID, prod.ID, "video")
	require.True(t, ok)

	assert.True(t, p.CloseProducer("room-a", prod.ID))
	assert.Empty(t, p.GetProducers("room-a"))
	assert.False(t, p.CloseProducer("room-a", prod.ID), "closing an already-closed producer is a no-op")
}

func TestCleanupUserMedia_ClosesOwnTransportAndAllRoomProducers(t *testing.T) {
	p := newTestPool(t)
	_, err := p.CreateRouter("room-a")
	require.NoError(t, err)

	tr1, _ := p.CreateWebRtcTransport("room-a", "conn-1", "send")
	prod1, _ := p.Produce("room-a", tr1.ID, "video")

	tr2, _ := p.CreateWebRtcTransport("room-a", "conn-2", "send")
	prod2, _ := p.Produce("room-a", tr2.ID, "video")

	closed := p.CleanupUserMedia("room-a", "conn-1")

	assert.ElementsMatch(t, []string{prod1.ID, prod2.ID}, closed)
	assert.Empty(t, p.GetProducers("room-a"))

	b := p.getBundle("room-a")
	_, stillThere := b.transports[tr2.ID]
	assert.True(t, stillThere, "only conn-1's transport should be closed")
	_, gone := b.transports[tr1.ID]
	assert.False(t, gone)
}

func TestCleanupUserMedia_NoMatchingTransportIsNoop(t *testing.T) {
	p := newTestPool(t)
	_, err := p.CreateRouter("room-a")
	require.NoError(t, err)

	tr, _ := p.CreateWebRtcTransport("room-a", "conn-1", "send")
	prod, _ := p.Produce("room-a", tr.ID, "video")

	closed := p.CleanupUserMedia("room-a", "conn-2")

	assert.Empty(t, closed)
	remaining := p.GetProducers("room-a")
	require.Len(t, remaining, 1)
	assert.Equal(t, prod.ID, remaining[0].ID)
}

func TestCloseRoom_RemovesBundleAndFreesLoad(t *testing.T) {
	p := newTestPool(t)
	_, err := p.CreateRouter("room-a")
	require.NoError(t, err)

	tr, _ := p.CreateWebRtcTransport("room-a", "conn-1", "send")
	p.Produce("room-a", tr.ID, "video")

	p.CloseRoom("room-a")

	_, ok := p.GetRouterRtpCapabilities("room-a")
	assert.False(t, ok)

	// Idempotent: closing again is a no-op, not a panic.
	p.CloseRoom("room-a")
}

func TestOperations_NoOpOnMissingRoom(t *testing.T) {
	p := newTestPool(t)

	_, ok := p.CreateWebRtcTransport("ghost", "conn-1", "send")
	assert.False(t, ok)
	assert.False(t, p.ConnectTransport("ghost", "t1"))
	_, ok = p.Produce("ghost", "t1", "video")
	assert.False(t, ok)
	_, ok = p.Consume("ghost", "t1", "p1", "video")
	assert.False(t, ok)
	assert.False(t, p.ResumeConsumer("ghost", "c1"))
	assert.Empty(t, p.GetProducers("ghost"))
	assert.False(t, p.CloseProducer("ghost", "p1"))
	assert.False(t, p.CloseTransport("ghost", "t1"))
	p.CleanupUserMedia("ghost", "conn-1")
	p.CloseRoom("ghost")
}
