package docstore

import (
	"context"
	"path"
	"sync"
	"time"

	"pocketbook/internal/cache"
)

// CachedStore serves point reads from an LRU cache and forwards everything
// else. Writes through this store invalidate the paths they touch; changes
// made elsewhere become visible once the entry expires. Transactions always
// read through to the underlying store.
type CachedStore struct {
	Store
	docs cache.Cache[Document]
}

// NewCachedStore wraps s with a cache of size entries kept for ttl.
func NewCachedStore(s Store, size int, ttl time.Duration) *CachedStore {
	return WithCache(s, cache.NewLRUCache[Document](size, ttl))
}

// WithCache wraps s with the given cache.
func WithCache(s Store, c cache.Cache[Document]) *CachedStore {
	return &CachedStore{Store: s, docs: c}
}

func (c *CachedStore) Get(ctx context.Context, docPath string) (Document, error) {
	key := path.Clean(docPath)
	if doc, ok := c.docs.Get(key); ok {
		doc.Fields = doc.Fields.Clone()
		return doc, nil
	}
	doc, err := c.Store.Get(ctx, docPath)
	if err != nil {
		return Document{}, err
	}
	cached := doc
	cached.Fields = doc.Fields.Clone()
	c.docs.Set(key, cached)
	return doc, nil
}

// Invalidate drops the cached entry for docPath, for changes made by
// another process.
func (c *CachedStore) Invalidate(docPath string) {
	c.docs.Delete(path.Clean(docPath))
}

func (c *CachedStore) Update(ctx context.Context, docPath string, fields Fields) error {
	defer c.docs.Delete(path.Clean(docPath))
	return c.Store.Update(ctx, docPath, fields)
}

func (c *CachedStore) Set(ctx context.Context, docPath string, fields Fields) error {
	defer c.docs.Delete(path.Clean(docPath))
	return c.Store.Set(ctx, docPath, fields)
}

func (c *CachedStore) Delete(ctx context.Context, docPath string) error {
	defer c.docs.Delete(path.Clean(docPath))
	return c.Store.Delete(ctx, docPath)
}

func (c *CachedStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	rec := &recordingTx{}
	defer func() {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		for _, p := range rec.paths {
			c.docs.Delete(p)
		}
	}()
	return c.Store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		rec.mu.Lock()
		rec.Tx = tx
		rec.paths = rec.paths[:0]
		rec.mu.Unlock()
		return fn(ctx, rec)
	})
}

type recordingTx struct {
	Tx
	mu    sync.Mutex
	paths []string
}

func (r *recordingTx) touch(p string) {
	r.mu.Lock()
	r.paths = append(r.paths, path.Clean(p))
	r.mu.Unlock()
}

func (r *recordingTx) Update(docPath string, fields Fields) error {
	r.touch(docPath)
	return r.Tx.Update(docPath, fields)
}

func (r *recordingTx) Set(docPath string, fields Fields) error {
	r.touch(docPath)
	return r.Tx.Set(docPath, fields)
}
