package mediaengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomCounter struct{ count int }

func (f fakeRoomCounter) RoomCount() int { return f.count }

func TestScaleUp_AddsWorkerWithinMax(t *testing.T) {
	p, err := NewPool(context.Background(), 1, 3, "")
	require.NoError(t, err)

	p.scaleUp(context.Background(), 0.9)
	assert.Equal(t, 2, p.WorkerCount())
}

func TestScaleDown_RemovesMostRecentWorker(t *testing.T) {
	p, err := NewPool(context.Background(), 2, 2, "")
	require.NoError(t, err)

	p.mu.Lock()
	last := p.workers[len(p.workers)-1]
	p.mu.Unlock()

	p.scaleDown(context.Background(), 0.1)

	require.Eventually(t, func() bool {
		return p.WorkerCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, last.isStopping())
}

func TestTick_SkipsWhenNoRooms(t *testing.T) {
	p, err := NewPool(context.Background(), 1, 2, "")
	require.NoError(t, err)

	// No process handle needed: RoomCount()==0 short-circuits before any
	// CPU sampling happens.
	p.tick(context.Background(), nil, fakeRoomCounter{count: 0})
	assert.Equal(t, 1, p.WorkerCount())
}

func TestIsScaling_GuardsConcurrentTicks(t *testing.T) {
	p, err := NewPool(context.Background(), 1, 2, "")
	require.NoError(t, err)

	require.True(t, p.isScaling.TryLock())
	// A second acquire attempt must fail while the first holds the lock,
	// matching the one-scale-operation-at-a-time rule.
	assert.False(t, p.isScaling.TryLock())
	p.isScaling.Unlock()
}
