// Package mediaengine is the facade the signaling orchestrator drives for
// everything SFU-shaped: worker pool lifecycle, per-room media routers,
// transports, producers and consumers, and CPU-driven auto-scaling (spec
// §4.3). The real media engine's internals (codec negotiation, RTP
// forwarding, DTLS, ICE) are explicitly out of scope and are not designed
// here — every operation below is a bookkeeping simulation over an opaque
// capability.
package mediaengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RoomCounter reports how many rooms currently exist, used by auto-scaling's
// early-exit (spec §4.3 step 1). Satisfied by *registry.Registry.
type RoomCounter interface {
	RoomCount() int
}

// Pool owns the worker pool and the roomId -> bundle map.
type Pool struct {
	mu              sync.Mutex
	workers         []*Worker
	nextPID         int
	nextWorkerIndex int

	minWorkers  int
	maxWorkers  int
	announcedIP string

	rooms map[string]*bundle

	// isScaling gates auto-scaling so only one scale operation runs at a
	// time (spec §4.3 step 5); TryLock doubles as a non-blocking guard.
	isScaling sync.Mutex

	cb *gobreaker.CircuitBreaker

	terminateFunc func()

	// autoscaleCtx/autoscaleProc/autoscaleRooms are populated by
	// RunAutoscaler so CreateRouter/CloseRoom can trigger an imperative
	// scaling check (spec §4.3: "triggered after every router creation and
	// room closure, not periodic"). Nil until RunAutoscaler starts, in
	// which case the imperative trigger is simply a no-op — tests that
	// construct a Pool without running the autoscaler never scale.
	autoscaleCtx   context.Context
	autoscaleProc  *process.Process
	autoscaleRooms RoomCounter
}

// NewPool starts minWorkers workers in parallel and returns a ready Pool.
// It fails fast only if every initial worker fails to start; a partial
// start (some but not all workers succeeding) is tolerated and left for
// auto-scaling to correct (spec §4.3).
func NewPool(ctx context.Context, minWorkers, maxWorkers int, announcedIP string) (*Pool, error) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if minWorkers < 1 {
		minWorkers = 1
	}
	if minWorkers > maxWorkers {
		minWorkers = maxWorkers
	}

	p := &Pool{
		minWorkers:    minWorkers,
		maxWorkers:    maxWorkers,
		announcedIP:   announcedIP,
		rooms:         make(map[string]*bundle),
		terminateFunc: defaultTerminate,
	}

	st := gobreaker.Settings{
		Name:        "media_engine_worker_pool",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     10 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("media_engine").Set(stateVal)
		},
	}
	p.cb = gobreaker.NewCircuitBreaker(st)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < minWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := p.spawnWorker()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Error(ctx, "media engine worker failed to start", zap.Error(err))
				return
			}
			_ = w
			succeeded++
		}()
	}
	wg.Wait()

	if succeeded == 0 {
		return nil, fmt.Errorf("media engine: all %d initial workers failed to start", minWorkers)
	}

	metrics.MediaEngineWorkersActive.Set(float64(succeeded))
	logging.Info(ctx, "media engine worker pool started",
		zap.Int("requested", minWorkers), zap.Int("started", succeeded))

	return p, nil
}

// spawnWorker creates and supervises a new worker. In this simulation
// worker creation cannot itself fail, but the signature and the gobreaker
// wrap match the teacher's facade-call shape so a future real backing
// engine's failure mode slots in without an API change.
func (p *Pool) spawnWorker() (*Worker, error) {
	res, err := p.cb.Execute(func() (interface{}, error) {
		p.mu.Lock()
		pid := p.nextPID
		p.nextPID++
		p.mu.Unlock()

		w := newWorker(pid)

		p.mu.Lock()
		p.workers = append(p.workers, w)
		p.mu.Unlock()

		go p.superviseWorker(w)
		return w, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("media_engine").Inc()
		}
		return nil, err
	}
	return res.(*Worker), nil
}

func (p *Pool) superviseWorker(w *Worker) {
	<-w.dead
	if w.isStopping() {
		p.removeWorker(w)
		return
	}
	p.handleWorkerDeath(w)
}

func (p *Pool) removeWorker(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cur := range p.workers {
		if cur == w {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			break
		}
	}
	metrics.MediaEngineWorkersActive.Set(float64(len(p.workers)))
}

// handleWorkerDeath implements spec §4.3's worker death handler: remove
// from the pool, attempt exactly one recovery, and if the pool is empty
// after a failed recovery, escalate to process termination after 5s.
func (p *Pool) handleWorkerDeath(w *Worker) {
	ctx := context.Background()
	p.removeWorker(w)
	metrics.MediaEngineWorkerRestarts.WithLabelValues("died").Inc()
	logging.Warn(ctx, "media engine worker died", zap.Int("pid", w.PID))

	if _, err := p.spawnWorker(); err != nil {
		metrics.MediaEngineWorkerRestarts.WithLabelValues("recovery_failed").Inc()
		logging.Error(ctx, "media engine worker recovery failed", zap.Error(err))

		p.mu.Lock()
		empty := len(p.workers) == 0
		p.mu.Unlock()

		if empty {
			logging.Error(ctx, "media engine worker pool empty after failed recovery, scheduling termination")
			time.AfterFunc(5*time.Second, p.terminateFunc)
		}
		return
	}

	metrics.MediaEngineWorkerRestarts.WithLabelValues("recovered").Inc()
}

func defaultTerminate() {
	logging.Fatal(context.Background(), "media engine worker pool exhausted, terminating process")
}

// SetTerminateFunc overrides the process-termination hook invoked when the
// worker pool is empty after a failed recovery. Tests use this to observe
// the escalation without killing the test process.
func (p *Pool) SetTerminateFunc(f func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminateFunc = f
}

// Healthy reports whether the pool has at least one live worker, satisfying
// health.MediaEngineChecker.
func (p *Pool) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers) > 0
}

// WorkerCount returns the current pool size.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// triggerAutoscale runs one auto-scaling evaluation immediately, if
// RunAutoscaler has been started. CreateRouter and CloseRoom call this
// instead of waiting for the next tick (spec §4.3).
func (p *Pool) triggerAutoscale() {
	p.mu.Lock()
	ctx := p.autoscaleCtx
	proc := p.autoscaleProc
	rooms := p.autoscaleRooms
	p.mu.Unlock()

	if proc == nil {
		return
	}
	p.tick(ctx, proc, rooms)
}

func (p *Pool) nextWorker() *Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.workers) == 0 {
		return nil
	}
	w := p.workers[p.nextWorkerIndex%len(p.workers)]
	p.nextWorkerIndex++
	return w
}
