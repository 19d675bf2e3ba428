package docstore

import (
	"context"
	"sync"
)

// Subscription is a live view of a path. Batches arrive on C in commit
// order; C is closed once the subscription ends, after which Cause reports
// why (nil when disposed by the caller).
type Subscription struct {
	path string
	ch   chan Batch
	done chan struct{}

	// guarded by hub.mu
	hub    *Hub
	closed bool

	mu    sync.Mutex
	cause error
	stop  func() bool
}

func (s *Subscription) Path() string          { return s.path }
func (s *Subscription) C() <-chan Batch       { return s.ch }
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Cause returns the terminal error of the subscription, if any.
func (s *Subscription) Cause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Dispose releases the subscription. Safe to call more than once and from
// any goroutine.
func (s *Subscription) Dispose() {
	s.hub.mu.Lock()
	s.hub.endLocked(s, nil)
	s.hub.mu.Unlock()
}

func (s *Subscription) watch(ctx context.Context) {
	if ctx.Done() == nil {
		return
	}
	stop := context.AfterFunc(ctx, s.Dispose)
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()
	select {
	case <-s.done:
		stop()
	default:
	}
}
