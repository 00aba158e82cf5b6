package mediaengine

import (
	"strconv"
	"sync"
)

// RtpCapabilities is an opaque codec-capability payload. Its shape is not
// designed here — the real media engine's codec negotiation is explicitly
// out of scope (spec §1) — but a stable placeholder lets the signaling
// orchestrator round-trip it through routerRtpCapabilities/consume without
// caring about its contents.
type RtpCapabilities struct {
	Codecs []string `json:"codecs"`
}

// Transport is a simulated WebRTC transport between a client and the
// facade. transportId is "{connectionId}-{direction}" per spec §3.
type Transport struct {
	ID             string           `json:"id"`
	Direction      string           `json:"direction"`
	IceParameters  map[string]any   `json:"iceParameters"`
	IceCandidates  []map[string]any `json:"iceCandidates"`
	DtlsParameters map[string]any   `json:"dtlsParameters"`
	connected      bool
}

// Producer is a simulated inbound media track. It does not record its
// owning connection: ownership below the transport level cannot be
// attributed, which is why cleanupUserMedia falls back to closing every
// producer in the room once any of a connection's transports are found.
type Producer struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Consumer is a simulated outbound media track. Consumers start unpaused
// (this implementation's resolution of spec §9's open question).
type Consumer struct {
	ID         string `json:"id"`
	ProducerID string `json:"producerId"`
	Kind       string `json:"kind"`
	paused     bool
}

// bundle is the per-room {router, transports, producers, consumers} unit
// spec §3 names, owned by exactly one worker.
type bundle struct {
	mu sync.Mutex

	roomID   string
	workerID int
	caps     RtpCapabilities

	transports map[string]*Transport
	producers  map[string]*Producer
	consumers  map[string]*Consumer

	nextID int
}

func newBundle(roomID string, workerID int) *bundle {
	return &bundle{
		roomID:     roomID,
		workerID:   workerID,
		caps:       RtpCapabilities{Codecs: []string{"opus", "VP8", "H264"}},
		transports: make(map[string]*Transport),
		producers:  make(map[string]*Producer),
		consumers:  make(map[string]*Consumer),
	}
}

func (b *bundle) mintID(prefix string) string {
	b.nextID++
	return prefix + "-" + strconv.Itoa(b.nextID)
}
