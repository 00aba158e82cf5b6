package mediaengine

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/metrics"
	"go.uber.org/zap"
)

// scaleUpThreshold and scaleDownThreshold are the process CPU utilization
// bounds (0-1, normalized by core count) that drive auto-scaling (spec
// §4.3 steps 3-4).
const (
	scaleUpThreshold   = 0.75
	scaleDownThreshold = 0.30
	// autoscaleSafetyNetInterval backstops the imperative trigger CreateRouter
	// and CloseRoom fire on (spec §4.3): it exists only to catch CPU drift
	// during a long stretch with no router creation or room closure, not to
	// drive scaling itself.
	autoscaleSafetyNetInterval = 10 * time.Second
)

// RunAutoscaler wires up the CPU sampler CreateRouter/CloseRoom trigger
// imperatively and runs a periodic safety-net sweep alongside it, per spec
// §4.3's auto-scaling algorithm:
//  1. if no rooms exist, skip this evaluation entirely.
//  2. sample CPU, normalized to [0,1] by core count, and apply it uniformly
//     to every worker's reported load.
//  3. above scaleUpThreshold with room to grow, add a worker.
//  4. below scaleDownThreshold with room to shrink, gracefully remove the
//     most recently added worker (LIFO).
//  5. only one scaling operation may be in flight at a time.
//
// RunAutoscaler blocks until ctx is cancelled; call it in its own goroutine.
func (p *Pool) RunAutoscaler(ctx context.Context, rooms RoomCounter) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logging.Error(ctx, "media engine autoscaler: failed to open self process handle", zap.Error(err))
		return
	}

	p.mu.Lock()
	p.autoscaleCtx = ctx
	p.autoscaleProc = proc
	p.autoscaleRooms = rooms
	p.mu.Unlock()

	ticker := time.NewTicker(autoscaleSafetyNetInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, proc, rooms)
		}
	}
}

func (p *Pool) tick(ctx context.Context, proc *process.Process, rooms RoomCounter) {
	if rooms != nil && rooms.RoomCount() == 0 {
		return
	}

	if !p.isScaling.TryLock() {
		return
	}
	defer p.isScaling.Unlock()

	cpuPercent, err := proc.Percent(0)
	if err != nil {
		logging.Warn(ctx, "media engine autoscaler: CPU sample failed", zap.Error(err))
		return
	}

	cores := runtime.NumCPU()
	if cores < 1 {
		cores = 1
	}
	normalized := (cpuPercent / 100.0) / float64(cores)
	if normalized > 1 {
		normalized = 1
	}

	p.mu.Lock()
	for _, w := range p.workers {
		w.setCPU(normalized)
	}
	size := len(p.workers)
	p.mu.Unlock()

	switch {
	case normalized > scaleUpThreshold && size < p.maxWorkers:
		p.scaleUp(ctx, normalized)
	case normalized < scaleDownThreshold && size > p.minWorkers:
		p.scaleDown(ctx, normalized)
	}
}

func (p *Pool) scaleUp(ctx context.Context, cpu float64) {
	if _, err := p.spawnWorker(); err != nil {
		logging.Error(ctx, "media engine autoscaler: scale-up failed", zap.Error(err))
		return
	}
	metrics.MediaEngineScalingEvents.WithLabelValues("up").Inc()
	p.mu.Lock()
	size := len(p.workers)
	p.mu.Unlock()
	metrics.MediaEngineWorkersActive.Set(float64(size))
	logging.Info(ctx, "media engine scaled up", zap.Float64("cpu", cpu), zap.Int("workers", size))
}

func (p *Pool) scaleDown(ctx context.Context, cpu float64) {
	p.mu.Lock()
	if len(p.workers) == 0 {
		p.mu.Unlock()
		return
	}
	victim := p.workers[len(p.workers)-1]
	p.mu.Unlock()

	victim.gracefulStop()

	metrics.MediaEngineScalingEvents.WithLabelValues("down").Inc()
	p.mu.Lock()
	size := len(p.workers)
	p.mu.Unlock()
	metrics.MediaEngineWorkersActive.Set(float64(size))
	logging.Info(ctx, "media engine scaled down", zap.Float64("cpu", cpu), zap.Int("workers", size))
}
