package ari

import (
	"sync"
	"time"
)

// staleEntryTTL bounds how long an unmatched completion or abandonment
// record survives when its counterpart never arrives.
const staleEntryTTL = time.Minute

// waiterRegistry tracks callers waiting for completion events keyed by
// artifact ("playback:<id>", "recording:<name>"). Notifications that arrive
// before registration are remembered so a fast completion is never lost, and
// waiters abandoned mid-flight (barge-in, timeouts) leave a marker so their
// late completion event is dropped instead of retained.
type waiterRegistry struct {
	mu        sync.Mutex
	waiters   map[string]chan struct{}
	notified  map[string]time.Time
	abandoned map[string]time.Time
	ttl       time.Duration
}

func newWaiterRegistry() *waiterRegistry {
	return &waiterRegistry{
		waiters:   make(map[string]chan struct{}),
		notified:  make(map[string]time.Time),
		abandoned: make(map[string]time.Time),
		ttl:       staleEntryTTL,
	}
}

// register returns a channel closed when the keyed event arrives, plus a
// cancel that must be called when the waiter is abandoned.
func (r *waiterRegistry) register(key string) (<-chan struct{}, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purge()

	ch := make(chan struct{})
	if _, ok := r.notified[key]; ok {
		delete(r.notified, key)
		close(ch)
		return ch, func() {}
	}

	r.waiters[key] = ch
	return ch, func() {
		r.mu.Lock()
		if _, ok := r.waiters[key]; ok {
			delete(r.waiters, key)
			r.abandoned[key] = time.Now()
		}
		delete(r.notified, key)
		r.mu.Unlock()
	}
}

// notify wakes the waiter for key, drops the event if its waiter was
// abandoned, or records the completion if nobody is waiting yet.
func (r *waiterRegistry) notify(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purge()

	if ch, ok := r.waiters[key]; ok {
		delete(r.waiters, key)
		close(ch)
		return
	}
	if _, ok := r.abandoned[key]; ok {
		delete(r.abandoned, key)
		return
	}
	r.notified[key] = time.Now()
}

// purge drops stale unmatched records. Keys are unique per artifact, so an
// entry older than the TTL will never pair up. Caller holds the lock.
func (r *waiterRegistry) purge() {
	cutoff := time.Now().Add(-r.ttl)
	for key, at := range r.notified {
		if at.Before(cutoff) {
			delete(r.notified, key)
		}
	}
	for key, at := range r.abandoned {
		if at.Before(cutoff) {
			delete(r.abandoned, key)
		}
	}
}
