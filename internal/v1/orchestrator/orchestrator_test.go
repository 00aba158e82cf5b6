package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spinlive/roomserver/internal/v1/chat"
	"github.com/spinlive/roomserver/internal/v1/mediaengine"
	"github.com/spinlive/roomserver/internal/v1/presence"
	"github.com/spinlive/roomserver/internal/v1/registry"
	"github.com/spinlive/roomserver/internal/v1/storage"
	"github.com/spinlive/roomserver/internal/v1/transport"
)

type testHarness struct {
	o    *Orchestrator
	bus  *fakeBus
	reg  *registry.Registry
	pres *presence.Controller
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	reg := registry.New()
	pres := presence.New(50 * time.Millisecond)
	t.Cleanup(pres.Shutdown)

	pool, err := mediaengine.NewPool(context.Background(), 1, 2, "203.0.113.5")
	require.NoError(t, err)

	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	chatCoord := chat.New(store)

	bus := newFakeBus()
	o := New(reg, pres, pool, chatCoord, bus, nil)
	// CloseConnection drives OnDisconnect in production (transport.Hub); wire
	// the same chain here so reconnect-rebind tests exercise it for real.
	bus.onClose = o.OnDisconnect

	return &testHarness{o: o, bus: bus, reg: reg, pres: pres}
}

func (h *testHarness) send(connID, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	h.o.OnMessage(connID, transport.Envelope{Event: event, Payload: raw})
}
