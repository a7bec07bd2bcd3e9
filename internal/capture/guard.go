package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when a channel's capture lease is held by another
// caller and the acquisition wait expires.
var ErrBusy = errors.New("capture lease busy")

// Guard serializes recording access per channel. The telephony platform
// rejects overlapping live recordings on one channel, so every capture must
// hold the channel's lease for its full duration.
type Guard struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{
		sems: make(map[string]chan struct{}),
	}
}

// Lease is an exclusive hold on one channel's recording access. Release is
// idempotent.
type Lease struct {
	sem     chan struct{}
	release sync.Once
}

// Release returns the lease. Subsequent calls are no-ops.
func (l *Lease) Release() {
	l.release.Do(func() {
		<-l.sem
	})
}

// Acquire obtains the channel's lease, waiting at most the given duration.
// It returns ErrBusy when the wait expires and the context error when ctx is
// cancelled first.
func (g *Guard) Acquire(ctx context.Context, channelID string, wait time.Duration) (*Lease, error) {
	sem := g.semaphore(channelID)

	// Fast path
	select {
	case sem <- struct{}{}:
		return &Lease{sem: sem}, nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return &Lease{sem: sem}, nil
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Held reports whether the channel's lease is currently taken.
func (g *Guard) Held(channelID string) bool {
	g.mu.Lock()
	sem, ok := g.sems[channelID]
	g.mu.Unlock()

	return ok && len(sem) > 0
}

// Forget drops the channel's semaphore after the call ends. Any lease still
// outstanding keeps its own reference and releases harmlessly.
func (g *Guard) Forget(channelID string) {
	g.mu.Lock()
	delete(g.sems, channelID)
	g.mu.Unlock()
}

func (g *Guard) semaphore(channelID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	sem, ok := g.sems[channelID]
	if !ok {
		sem = make(chan struct{}, 1)
		g.sems[channelID] = sem
	}
	return sem
}
