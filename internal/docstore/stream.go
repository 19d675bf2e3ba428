package docstore

import "sync"

// Fold turns a batch into the next projected value. Returning emit=false
// skips the batch; a non-nil error ends the stream.
type Fold[T any] func(b Batch) (value T, emit bool, err error)

// Stream is a typed projection of a subscription. Values arrive on C; C
// is closed when the stream ends and Err reports why.
type Stream[T any] struct {
	sub  *Subscription
	out  chan T
	stop chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

// Project starts folding sub into a stream. Batches in initial are folded
// before anything read from sub, for callers that inspect the snapshot
// before handing the subscription over.
func Project[T any](sub *Subscription, fold Fold[T], initial ...Batch) *Stream[T] {
	s := &Stream[T]{
		sub:  sub,
		out:  make(chan T, 1),
		stop: make(chan struct{}),
	}
	go s.run(fold, initial)
	return s
}

func (s *Stream[T]) run(fold Fold[T], initial []Batch) {
	defer close(s.out)

	handle := func(b Batch) bool {
		v, emit, err := fold(b)
		if err != nil {
			s.fail(err)
			return false
		}
		if !emit {
			return true
		}
		select {
		case s.out <- v:
			return true
		case <-s.stop:
			return false
		}
	}

	for _, b := range initial {
		if !handle(b) {
			return
		}
	}
	for {
		select {
		case b, ok := <-s.sub.C():
			if !ok {
				s.fail(Classify("subscribe", s.sub.Path(), s.sub.Cause()))
				return
			}
			if !handle(b) {
				return
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Stream[T]) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.sub.Dispose()
}

func (s *Stream[T]) C() <-chan T { return s.out }

// Err returns the terminal error, or nil while running or after Dispose.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Dispose stops the stream and releases its subscription. Idempotent.
func (s *Stream[T]) Dispose() {
	s.once.Do(func() {
		close(s.stop)
		s.sub.Dispose()
	})
}
