// Package memory provides an in-process document store honoring the
// docstore contract. It backs tests and DATA_BACKEND=memory.
package memory

import (
	"context"
	"errors"
	"path"
	"sync"

	"github.com/google/uuid"

	"pocketbook/internal/docstore"
)

// Op names a store operation for failure injection.
type Op string

const (
	OpGet       Op = "get"
	OpAppend    Op = "append"
	OpUpdate    Op = "update"
	OpSet       Op = "set"
	OpDelete    Op = "delete"
	OpCommit    Op = "commit"
	OpSubscribe Op = "subscribe"
)

type record struct {
	fields  docstore.Fields
	version int64
}

type collection struct {
	ids  []string
	docs map[string]*record
}

type failKey struct {
	op   Op
	path string
}

type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	version     int64
	failures    map[failKey]error
	closed      bool
	newID       func() string
	hub         *docstore.Hub
}

type Option func(*Store)

// WithBuffer sets the per-subscription buffer size.
func WithBuffer(n int) Option {
	return func(s *Store) { s.hub = docstore.NewHub(n) }
}

// WithIDs overrides id generation for appended documents.
func WithIDs(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]*collection),
		failures:    make(map[failKey]error),
		newID:       uuid.NewString,
		hub:         docstore.NewHub(docstore.DefaultBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub exposes the fan-out hub, for metrics wiring.
func (s *Store) Hub() *docstore.Hub { return s.hub }

// Fail makes op on p return err until ClearFailures. For OpAppend p is the
// collection path; for OpCommit any document written by the transaction.
func (s *Store) Fail(op Op, p string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failKey{op, path.Clean(p)}] = err
}

func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failures)
}

// Break terminates every live subscription on p with err.
func (s *Store) Break(p string, err error) {
	s.hub.Terminate(p, err)
}

func (s *Store) failure(op Op, p string) error {
	return s.failures[failKey{op, path.Clean(p)}]
}

func (s *Store) Get(ctx context.Context, docPath string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(OpGet, docPath)
}

func (s *Store) getLocked(op Op, docPath string) (docstore.Document, error) {
	if s.closed {
		return docstore.Document{}, docstore.ErrClosed
	}
	if err := s.failure(op, docPath); err != nil {
		return docstore.Document{}, err
	}
	coll, id, err := docstore.SplitDoc(docPath)
	if err != nil {
		return docstore.Document{}, err
	}
	rec := s.lookup(coll, id)
	if rec == nil {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return toDocument(coll, id, rec), nil
}

func (s *Store) Append(ctx context.Context, collectionPath string, fields docstore.Fields) (string, error) {
	var id string
	err := s.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		var err error
		id, err = tx.Append(collectionPath, fields)
		return err
	})
	return id, err
}

func (s *Store) Update(ctx context.Context, docPath string, fields docstore.Fields) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		return tx.Update(docPath, fields)
	})
}

func (s *Store) Set(ctx context.Context, docPath string, fields docstore.Fields) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		return tx.Set(docPath, fields)
	})
}

func (s *Store) Delete(ctx context.Context, docPath string) error {
	return s.RunTransaction(ctx, func(_ context.Context, txn docstore.Tx) error {
		return txn.(*tx).delete(docPath)
	})
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{s: s, reads: make(map[string]int64)}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}

	for p, v := range t.reads {
		coll, id, _ := docstore.SplitDoc(p)
		var current int64
		if rec := s.lookup(coll, id); rec != nil {
			current = rec.version
		}
		if current != v {
			return docstore.ErrConflict
		}
	}

	// Stage against a private view so a failing write leaves nothing behind.
	staged := make(map[string]*record)
	exists := func(coll, id string) bool {
		if rec, ok := staged[path.Join(coll, id)]; ok {
			return rec != nil
		}
		return s.lookup(coll, id) != nil
	}
	current := func(coll, id string) docstore.Fields {
		if rec, ok := staged[path.Join(coll, id)]; ok && rec != nil {
			return rec.fields
		}
		if rec := s.lookup(coll, id); rec != nil {
			return rec.fields
		}
		return nil
	}

	version := s.version + 1
	for _, w := range t.writes {
		p := path.Join(w.coll, w.id)
		if err := s.failure(OpCommit, p); err != nil {
			return err
		}
		switch w.op {
		case OpAppend, OpSet:
			staged[p] = &record{fields: w.fields.Clone(), version: version}
		case OpUpdate:
			if !exists(w.coll, w.id) {
				return docstore.ErrNotFound
			}
			staged[p] = &record{fields: current(w.coll, w.id).Merge(w.fields), version: version}
		case OpDelete:
			if exists(w.coll, w.id) {
				staged[p] = nil
			}
		}
	}
	if len(staged) == 0 {
		return nil
	}

	s.version = version
	var changes []docstore.Change
	for _, w := range t.writes {
		p := path.Join(w.coll, w.id)
		rec, ok := staged[p]
		if !ok {
			continue
		}
		delete(staged, p)
		c := s.apply(w.coll, w.id, rec)
		if c.Kind != "" {
			changes = append(changes, c)
		}
	}
	s.hub.Publish(changes)
	return nil
}

func (s *Store) apply(coll, id string, rec *record) docstore.Change {
	c := s.collections[coll]
	if c == nil {
		c = &collection{docs: make(map[string]*record)}
		s.collections[coll] = c
	}
	prev := c.docs[id]
	switch {
	case rec == nil && prev == nil:
		return docstore.Change{}
	case rec == nil:
		delete(c.docs, id)
		for i, v := range c.ids {
			if v == id {
				c.ids = append(c.ids[:i], c.ids[i+1:]...)
				break
			}
		}
		doc := toDocument(coll, id, prev)
		return docstore.Change{Kind: docstore.Removed, Collection: coll, Doc: doc}
	case prev == nil:
		c.docs[id] = rec
		c.ids = append(c.ids, id)
		return docstore.Change{Kind: docstore.Added, Collection: coll, Doc: toDocument(coll, id, rec)}
	default:
		c.docs[id] = rec
		return docstore.Change{Kind: docstore.Modified, Collection: coll, Doc: toDocument(coll, id, rec)}
	}
}

func (s *Store) Subscribe(ctx context.Context, p string) (*docstore.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}
	if err := s.failure(OpSubscribe, p); err != nil {
		return nil, err
	}

	var snapshot docstore.Batch
	if docstore.IsCollection(p) {
		coll, err := docstore.CheckCollection(p)
		if err != nil {
			return nil, err
		}
		if c := s.collections[coll]; c != nil {
			for _, id := range c.ids {
				snapshot.Added = append(snapshot.Added, toDocument(coll, id, c.docs[id]))
			}
		}
	} else {
		coll, id, err := docstore.SplitDoc(p)
		if err != nil {
			return nil, err
		}
		if rec := s.lookup(coll, id); rec != nil {
			snapshot.Added = append(snapshot.Added, toDocument(coll, id, rec))
		}
	}
	return s.hub.Register(ctx, p, snapshot)
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

func (s *Store) lookup(coll, id string) *record {
	if c := s.collections[coll]; c != nil {
		return c.docs[id]
	}
	return nil
}

func toDocument(coll, id string, rec *record) docstore.Document {
	return docstore.Document{
		ID:      id,
		Path:    path.Join(coll, id),
		Fields:  rec.fields.Clone(),
		Version: rec.version,
	}
}

type write struct {
	op     Op
	coll   string
	id     string
	fields docstore.Fields
}

type tx struct {
	s      *Store
	mu     sync.Mutex
	reads  map[string]int64
	writes []write
}

func (t *tx) Get(docPath string) (docstore.Document, error) {
	t.s.mu.Lock()
	doc, err := t.s.getLocked(OpGet, docPath)
	t.s.mu.Unlock()

	var version int64
	switch {
	case err == nil:
		version = doc.Version
	case errors.Is(err, docstore.ErrNotFound):
	default:
		return docstore.Document{}, err
	}
	t.mu.Lock()
	if _, seen := t.reads[path.Clean(docPath)]; !seen {
		t.reads[path.Clean(docPath)] = version
	}
	t.mu.Unlock()
	return doc, err
}

func (t *tx) Append(collectionPath string, fields docstore.Fields) (string, error) {
	coll, err := docstore.CheckCollection(collectionPath)
	if err != nil {
		return "", err
	}
	if err := t.checkFailure(OpAppend, coll); err != nil {
		return "", err
	}
	id := t.s.newID()
	t.stage(write{op: OpAppend, coll: coll, id: id, fields: fields.Clone()})
	return id, nil
}

func (t *tx) Update(docPath string, fields docstore.Fields) error {
	return t.stageDoc(OpUpdate, docPath, fields)
}

func (t *tx) Set(docPath string, fields docstore.Fields) error {
	return t.stageDoc(OpSet, docPath, fields)
}

func (t *tx) delete(docPath string) error {
	return t.stageDoc(OpDelete, docPath, nil)
}

func (t *tx) stageDoc(op Op, docPath string, fields docstore.Fields) error {
	coll, id, err := docstore.SplitDoc(docPath)
	if err != nil {
		return err
	}
	if err := t.checkFailure(op, docPath); err != nil {
		return err
	}
	t.stage(write{op: op, coll: coll, id: id, fields: fields.Clone()})
	return nil
}

func (t *tx) checkFailure(op Op, p string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.failure(op, p)
}

func (t *tx) stage(w write) {
	t.mu.Lock()
	t.writes = append(t.writes, w)
	t.mu.Unlock()
}
