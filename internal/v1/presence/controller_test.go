package presence

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestArm_FiresAfterGracePeriod(t *testing.T) {
	c := New(20 * time.Millisecond)

	var fired atomic.Bool
	done := make(chan struct{})
	c.Arm("u1", func() {
		fired.Store(true)
		close(done)
	})

	assert.True(t, c.Pending("u1"))

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("onExpire did not fire in time")
	}

	assert.True(t, fired.Load())
	assert.False(t, c.Pending("u1"))
}

func TestCancel_PreventsExpiry(t *testing.T) {
	c := New(20 * time.Millisecond)

	var fired atomic.Bool
	c.Arm("u1", func() {
		fired.Store(true)
	})

	cancelled := c.Cancel("u1")
	require.True(t, cancelled)
	assert.False(t, c.Pending("u1"))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load(), "onExpire must not run after Cancel")
}

func TestCancel_NoopWhenNotPending(t *testing.T) {
	c := New(time.Second)
	assert.False(t, c.Cancel("ghost"))
}

func TestArm_RefreshesExistingTimer(t *testing.T) {
	c := New(40 * time.Millisecond)

	var fireCount atomic.Int32
	c.Arm("u1", func() { fireCount.Add(1) })

	time.Sleep(20 * time.Millisecond)
	// Re-arm before the first timer would fire: this must reset the window,
	// not stack a second callback.
	done := make(chan struct{})
	c.Arm("u1", func() {
		fireCount.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("refreshed timer did not fire")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fireCount.Load(), "only the refreshed timer's callback should have run")
}

func TestShutdown_StopsAllTimersWithoutFiring(t *testing.T) {
	c := New(20 * time.Millisecond)

	var fired atomic.Bool
	c.Arm("u1", func() { fired.Store(true) })
	c.Arm("u2", func() { fired.Store(true) })

	c.Shutdown()
	assert.Equal(t, 0, c.Count())

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
