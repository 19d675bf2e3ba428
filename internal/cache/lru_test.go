package cache

import (
	"testing"
	"time"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", 3) // evicts b, the least recently used

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "v")
	now = now.Add(2 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry cleaned, got %d", n)
	}
	st := c.Stats()
	if st.Misses != 1 || st.Size != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("accounts/a", 1)
	c.Set("accounts/a/transactions/1", 2)
	c.Set("accounts/b", 3)

	if n := c.DeletePrefix("accounts/a"); n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	if _, ok := c.Get("accounts/b"); !ok {
		t.Fatal("expected accounts/b to survive")
	}
}

func TestManagerSweep(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](10, time.Millisecond)
	c.now = func() time.Time { return now }
	c.Set("x", 1)
	now = now.Add(time.Second)

	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected sweep to evict 1, got %d", n)
	}
	m.Stop() // no-op when never started
}
