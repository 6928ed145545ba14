package core

import (
	"sync"
	"time"
)

// throttleExpiry is the minimum lifetime of a last-seen stamp; stamps older
// than the effective expiry are swept so the map does not grow with churn.
// A stamp must outlive the gate interval or the sweep would reopen the gate
// mid-interval.
const throttleExpiry = time.Second

type throttleKey struct {
	client string
	kind   string
}

// CommandThrottle gates latency-sensitive viewer input: at most one allowed
// call per (client, kind) pair per interval. The first sighting of a key
// always passes.
type CommandThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	expiry   time.Duration
	lastSeen map[throttleKey]time.Time
	now      func() time.Time
}

func NewCommandThrottle(interval time.Duration) *CommandThrottle {
	expiry := throttleExpiry
	if interval > expiry {
		expiry = interval
	}
	return &CommandThrottle{
		interval: interval,
		expiry:   expiry,
		lastSeen: make(map[throttleKey]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether this input may pass, recording the attempt time when
// it does. Rejected attempts do not refresh the stamp, so a viewer hammering
// a key still gets one event per interval rather than none.
func (t *CommandThrottle) Allow(clientID, kind string) bool {
	key := throttleKey{client: clientID, kind: kind}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.lastSeen[key]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.lastSeen[key] = now
	return true
}

// Forget drops all stamps for a disconnected client.
func (t *CommandThrottle) Forget(clientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.lastSeen {
		if key.client == clientID {
			delete(t.lastSeen, key)
		}
	}
}

// Expire removes stamps older than the expiry window. The GC sweep calls
// this periodically.
func (t *CommandThrottle) Expire() {
	cutoff := t.now().Add(-t.expiry)

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, stamp := range t.lastSeen {
		if stamp.Before(cutoff) {
			delete(t.lastSeen, key)
		}
	}
}
