package docstore

import (
	"context"
	"path"
	"sync"

	"pocketbook/internal/core"
)

const DefaultBuffer = 64

// Hub fans committed changes out to subscribers. Stores call Register and
// Publish while holding their commit lock so the snapshot handed to a new
// subscriber and the live batches that follow never overlap or skip.
type Hub struct {
	mu     sync.Mutex
	buffer int
	subs   map[string]map[*Subscription]struct{}
	closed bool

	onChange func(active int)
}

// NewHub returns a hub whose subscriptions buffer up to buffer batches.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// OnActiveChange registers a callback receiving the number of live
// subscriptions whenever it changes. Called with the hub lock held.
func (h *Hub) OnActiveChange(fn func(active int)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// Register creates a subscription on p whose first batch is snapshot.
func (h *Hub) Register(ctx context.Context, p string, snapshot Batch) (*Subscription, error) {
	p = path.Clean(p)
	snapshot.Path = p
	snapshot.Snapshot = true

	sub := &Subscription{
		path: p,
		ch:   make(chan Batch, h.buffer),
		done: make(chan struct{}),
		hub:  h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	set := h.subs[p]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[p] = set
	}
	set[sub] = struct{}{}
	sub.ch <- snapshot
	h.notifyLocked()
	h.mu.Unlock()

	sub.watch(ctx)
	return sub, nil
}

// Publish delivers committed changes. Collection subscribers receive one
// batch per collection; document subscribers one batch per document.
func (h *Hub) Publish(changes []Change) {
	if len(changes) == 0 {
		return
	}
	byPath := make(map[string]*Batch)
	var order []string
	add := func(p string, c Change) {
		b := byPath[p]
		if b == nil {
			b = &Batch{Path: p}
			byPath[p] = b
			order = append(order, p)
		}
		switch c.Kind {
		case Added:
			b.Added = append(b.Added, c.Doc)
		case Modified:
			b.Modified = append(b.Modified, c.Doc)
		case Removed:
			b.Removed = append(b.Removed, c.Doc)
		}
	}
	for _, c := range changes {
		add(path.Clean(c.Collection), c)
		// Document watchers see creation as added and later writes as modified.
		add(path.Clean(c.Doc.Path), c)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, p := range order {
		for sub := range h.subs[p] {
			select {
			case sub.ch <- *byPath[p]:
			default:
				h.endLocked(sub, &core.RemoteError{Op: "subscribe", Err: ErrSlowConsumer})
			}
		}
	}
}

// Terminate ends every subscription on p with err.
func (h *Hub) Terminate(p string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[path.Clean(p)] {
		h.endLocked(sub, err)
	}
}

// Active returns the number of live subscriptions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeLocked()
}

// Close ends every subscription with ErrClosed and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, set := range h.subs {
		for sub := range set {
			h.endLocked(sub, &core.RemoteError{Op: "subscribe", Err: ErrClosed})
		}
	}
	h.closed = true
}

func (h *Hub) endLocked(sub *Subscription, cause error) {
	if sub.closed {
		return
	}
	sub.closed = true

	sub.mu.Lock()
	sub.cause = cause
	stop := sub.stop
	sub.mu.Unlock()
	if stop != nil {
		stop()
	}

	if set := h.subs[sub.path]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.path)
		}
	}
	close(sub.ch)
	close(sub.done)
	h.notifyLocked()
}

func (h *Hub) activeLocked() int {
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

func (h *Hub) notifyLocked() {
	if h.onChange != nil {
		h.onChange(h.activeLocked())
	}
}
