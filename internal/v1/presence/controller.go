// Package presence implements the per-user disconnect grace period
// described in spec §4.2: a short window between a transport-level
// disconnect and the logical departure of a user from its room, during
// which a reconnect is treated as if nothing happened.
package presence

import (
	"sync"
	"time"

	"github.com/spinlive/roomserver/internal/v1/metrics"
)

// Controller owns one grace timer per userId — a generalization of the
// teacher's per-room `pendingRoomCleanups` timer map (see
// internal/v1/session/hub.go's removeRoom) keyed one level finer, since this
// spec's reconnection unit is the user identity, not the room.
//
// The controller never reads the Room Registry itself: arming a timer takes
// an onExpire callback supplied by the orchestrator, which re-checks
// liveness against the registry at fire time before committing the
// departure. The timer is advisory, not authoritative (spec §9).
type Controller struct {
	mu          sync.Mutex
	gracePeriod time.Duration
	timers      map[string]*time.Timer
}

// New constructs a Controller with the given grace period.
func New(gracePeriod time.Duration) *Controller {
	return &Controller{
		gracePeriod: gracePeriod,
		timers:      make(map[string]*time.Timer),
	}
}

// GracePeriod returns the configured grace window.
func (c *Controller) GracePeriod() time.Duration {
	return c.gracePeriod
}

// Arm starts (or refreshes) the grace timer for userID. If a timer is
// already pending for this user it is stopped and replaced — a fresh
// disconnect always resets the window rather than stacking callbacks.
// onExpire runs in its own goroutine once the grace period elapses without
// a matching Cancel.
func (c *Controller) Arm(userID string, onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.timers[userID]; ok {
		existing.Stop()
		delete(c.timers, userID)
		metrics.PresenceGraceTimersActive.Dec()
	}

	var timer *time.Timer
	timer = time.AfterFunc(c.gracePeriod, func() {
		c.mu.Lock()
		// Only run onExpire if this is still the live timer for userID —
		// a Cancel or a newer Arm may have already superseded it.
		if t, ok := c.timers[userID]; !ok || t != timer {
			c.mu.Unlock()
			return
		}
		delete(c.timers, userID)
		c.mu.Unlock()

		metrics.PresenceGraceTimersActive.Dec()
		onExpire()
	})

	c.timers[userID] = timer
	metrics.PresenceGraceTimersActive.Inc()
}

// Cancel stops any pending grace timer for userID. Returns true if a timer
// was actually pending (i.e. the user was mid-grace).
func (c *Controller) Cancel(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer, ok := c.timers[userID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(c.timers, userID)
	metrics.PresenceGraceTimersActive.Dec()
	return true
}

// Pending reports whether userID currently has a grace timer armed.
func (c *Controller) Pending(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[userID]
	return ok
}

// Count returns the number of currently pending grace timers.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Shutdown stops every pending timer without running their callbacks. Used
// during process shutdown so grace periods don't fire departures against a
// registry that's already being torn down.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for userID, timer := range c.timers {
		timer.Stop()
		delete(c.timers, userID)
		metrics.PresenceGraceTimersActive.Dec()
	}
}
