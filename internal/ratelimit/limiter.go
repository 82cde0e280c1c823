// Package ratelimit bounds write frequency per actor and action with a
// sliding window plus a cooldown gate. State is process-local; every
// client enforces its own limits.
package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Window is the span of the sliding count.
const Window = time.Minute

// Limiter tracks action timestamps per key. Construct one per client
// session and share it across the components that need gating.
type Limiter struct {
	clock clockwork.Clock

	mu      sync.Mutex
	actions map[string][]time.Time
}

// New creates a limiter on the wall clock
func New() *Limiter {
	return NewWithClock(clockwork.NewRealClock())
}

// NewWithClock creates a limiter on the given clock
func NewWithClock(clock clockwork.Clock) *Limiter {
	return &Limiter{
		clock:   clock,
		actions: make(map[string][]time.Time),
	}
}

// Allow reports whether another action is allowed under the sliding
// one-minute cap. Timestamps older than the window are pruned first;
// the current timestamp is recorded only when the action is allowed, so
// rejected attempts never consume a slot.
func (l *Limiter) Allow(key string, maxPerMinute int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	cutoff := now.Add(-Window)

	recent := l.actions[key][:0]
	for _, ts := range l.actions[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= maxPerMinute {
		l.actions[key] = recent
		return false
	}

	l.actions[key] = append(recent, now)
	return true
}

// CooldownRemaining returns how long until the cooldown since the most
// recent recorded action elapses, or zero when the action is allowed.
// It never mutates the tracker, so it is safe to call before Allow.
func (l *Limiter) CooldownRemaining(key string, cooldown time.Duration) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamps := l.actions[key]
	if len(timestamps) == 0 {
		return 0
	}

	elapsed := l.clock.Now().Sub(timestamps[len(timestamps)-1])
	if remaining := cooldown - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// Clear drops the tracked state for one key
func (l *Limiter) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.actions, key)
}

// Reset drops all tracked state
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = make(map[string][]time.Time)
}
