// Package notify folds the "added" events of several record streams into
// one in-memory notification feed with read tracking.
package notify

import (
	"slices"
	"sync"
)

// Notification is a feed entry. It exists only in memory.
type Notification struct {
	ID          string
	Kind        Kind
	Title       string
	Description string
	Timestamp   string
	IsRead      bool
}

// Feed holds notifications in arrival order. An id is accepted once for
// the lifetime of the feed, so replayed records never produce duplicates.
type Feed struct {
	mu      sync.Mutex
	items   []Notification
	index   map[string]int
	changed chan struct{}
}

func NewFeed() *Feed {
	return &Feed{
		index:   make(map[string]int),
		changed: make(chan struct{}, 1),
	}
}

// Add appends n unread. It reports false when n.ID was already seen.
func (f *Feed) Add(n Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.index[n.ID]; ok {
		return false
	}
	n.IsRead = false
	f.index[n.ID] = len(f.items)
	f.items = append(f.items, n)
	f.signal()
	return true
}

// Seen reports whether id is already in the feed.
func (f *Feed) Seen(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.index[id]
	return ok
}

// MarkRead marks one notification read. It reports whether id exists.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index[id]
	if !ok {
		return false
	}
	if !f.items[i].IsRead {
		f.items[i].IsRead = true
		f.signal()
	}
	return true
}

// MarkAllRead marks every notification read and returns how many changed.
func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.items {
		if !f.items[i].IsRead {
			f.items[i].IsRead = true
			n++
		}
	}
	if n > 0 {
		f.signal()
	}
	return n
}

// Notifications returns a copy of the feed, oldest first.
func (f *Feed) Notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

// Changed receives a value after the feed changes. Signals coalesce.
func (f *Feed) Changed() <-chan struct{} { return f.changed }

func (f *Feed) signal() {
	select {
	case f.changed <- struct{}{}:
	default:
	}
}
