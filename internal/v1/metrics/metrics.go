package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the room server control plane.
//
// Naming convention: namespace_subsystem_name
// - namespace: roomserver (application-level grouping)
// - subsystem: websocket, room, presence, media_engine, chat, circuit_breaker, rate_limit, redis
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, participants, workers)
// - Counter: Cumulative events (messages processed, errors)
// - Histogram: Latency distributions (processing time)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomserver",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomserver",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the number of members in each room (host + participants).
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roomserver",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of members in each room",
	}, []string{"room_id"})

	// RoomWaitingCount tracks the number of users waiting for admission per room.
	RoomWaitingCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roomserver",
		Subsystem: "room",
		Name:      "waiting_count",
		Help:      "Number of users waiting for admission in each room",
	}, []string{"room_id"})

	// WebsocketEvents tracks the total number of inbound WebSocket events processed.
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomserver",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks the time spent processing WebSocket messages.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roomserver",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing WebSocket messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// PresenceGraceTimersActive tracks the number of pending per-user grace timers.
	PresenceGraceTimersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomserver",
		Subsystem: "presence",
		Name:      "grace_timers_active",
		Help:      "Current number of pending disconnect grace timers",
	})

	// PresenceGraceExpirations tracks how grace periods resolved (reconnected vs expired).
	PresenceGraceExpirations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomserver",
		Subsystem: "presence",
		Name:      "grace_resolutions_total",
		Help:      "Total grace period resolutions by outcome",
	}, []string{"outcome"})

	// MediaEngineWorkersActive tracks the current size of the media engine worker pool.
	MediaEngineWorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomserver",
		Subsystem: "media_engine",
		Name:      "workers_active",
		Help:      "Current number of live media engine workers",
	})

	// MediaEngineWorkerRestarts tracks worker death/recovery events.
	MediaEngineWorkerRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomserver",
		Subsystem: "media_engine",
		Name:      "worker_restarts_total",
		Help:      "Total media engine worker restarts by outcome",
	}, []string{"outcome"})

	// MediaEngineProducers tracks the current number of live producers.
	MediaEngineProducers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomserver",
		Subsystem: "media_engine",
		Name:      "producers_active",
		Help:      "Current number of live media producers",
	})

	// MediaEngineConsumers tracks the current number of live consumers.
	MediaEngineConsumers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomserver",
		Subsystem: "media_engine",
		Name:      "consumers_active",
		Help:      "Current number of live media consumers",
	})

	// MediaEngineScalingEvents tracks pool scale up/down decisions.
	MediaEngineScalingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomserver",
		Subsystem: "media_engine",
		Name:      "scaling_events_total",
		Help:      "Total worker pool scaling decisions",
	}, []string{"direction"})

	// ChatMessagesTotal tracks chat messages accepted and rejected (e.g. profanity).
	ChatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomserver",
		Subsystem: "chat",
		Name:      "messages_total",
		Help:      "Total chat messages processed by outcome",
	}, []string{"outcome"})

	// CircuitBreakerState tracks the current state of a circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roomserver",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by a circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomserver",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomserver",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomserver",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// RedisOperationsTotal tracks the total number of Redis operations.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomserver",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations.
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roomserver",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
