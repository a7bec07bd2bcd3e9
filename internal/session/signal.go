package session

import "sync"

// signal is a one-shot broadcast. fire is safe to call from multiple
// goroutines; the channel closes exactly once.
type signal struct {
	ch   chan struct{}
	once sync.Once
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) fire() {
	s.once.Do(func() {
		close(s.ch)
	})
}
