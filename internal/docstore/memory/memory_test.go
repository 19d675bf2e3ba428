package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pocketbook/internal/docstore"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("doc-%03d", n)
	}
}

func recv(t *testing.T, sub *docstore.Subscription) docstore.Batch {
	t.Helper()
	select {
	case b, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription closed: %v", sub.Cause())
		}
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}
	return docstore.Batch{}
}

func TestStore_GetSetUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "accounts/a"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, "accounts/a", docstore.Fields{"x": int64(1)}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("update of missing doc: expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "accounts/a", docstore.Fields{"name": "main", "x": int64(1)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Update(ctx, "accounts/a", docstore.Fields{"x": int64(2)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	doc, err := s.Get(ctx, "accounts/a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Fields.String("name") != "main" {
		t.Fatalf("merge dropped field: %+v", doc.Fields)
	}
	if x, _ := doc.Fields.Int64("x"); x != 2 {
		t.Fatalf("expected x=2, got %v", doc.Fields["x"])
	}
	if doc.Version != 2 {
		t.Fatalf("expected version 2, got %d", doc.Version)
	}

	// Returned fields are copies.
	doc.Fields["name"] = "mutated"
	again, _ := s.Get(ctx, "accounts/a")
	if again.Fields.String("name") != "main" {
		t.Fatal("store state leaked through returned document")
	}
}

func TestStore_TransactionConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Set(ctx, "accounts/a", docstore.Fields{"n": int64(0)}); err != nil {
		t.Fatal(err)
	}

	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get("accounts/a"); err != nil {
			return err
		}
		// A concurrent writer commits between our read and our commit.
		if err := s.Update(ctx, "accounts/a", docstore.Fields{"n": int64(5)}); err != nil {
			return err
		}
		return tx.Update("accounts/a", docstore.Fields{"n": int64(1)})
	})
	if !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	doc, _ := s.Get(ctx, "accounts/a")
	if n, _ := doc.Fields.Int64("n"); n != 5 {
		t.Fatalf("conflicting write must not apply, n=%d", n)
	}
}

func TestStore_TransactionAtomic(t *testing.T) {
	ctx := context.Background()
	s := New(WithIDs(sequentialIDs()))
	if err := s.Set(ctx, "accounts/a", docstore.Fields{"n": int64(0)}); err != nil {
		t.Fatal(err)
	}
	s.Fail(OpCommit, "accounts/a", errors.New("permission denied"))

	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Append("accounts/a/transactions", docstore.Fields{"amountCents": int64(1)}); err != nil {
			return err
		}
		return tx.Update("accounts/a", docstore.Fields{"n": int64(1)})
	})
	if err == nil {
		t.Fatal("expected commit failure")
	}

	sub, err := s.Subscribe(ctx, "accounts/a/transactions")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Dispose()
	if b := recv(t, sub); len(b.Added) != 0 {
		t.Fatalf("failed transaction left %d documents behind", len(b.Added))
	}
}

func TestStore_SubscribeSnapshotThenChanges(t *testing.T) {
	ctx := context.Background()
	s := New(WithIDs(sequentialIDs()))
	if _, err := s.Append(ctx, "accounts/a/payments", docstore.Fields{"description": "rent"}); err != nil {
		t.Fatal(err)
	}

	sub, err := s.Subscribe(ctx, "accounts/a/payments")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Dispose()

	first := recv(t, sub)
	if !first.Snapshot || len(first.Added) != 1 || first.Added[0].ID != "doc-001" {
		t.Fatalf("unexpected snapshot %+v", first)
	}

	if _, err := s.Append(ctx, "accounts/a/payments", docstore.Fields{"description": "gym"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, "accounts/a/payments/doc-001", docstore.Fields{"description": "rent!"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "accounts/a/payments/doc-002"); err != nil {
		t.Fatal(err)
	}

	if b := recv(t, sub); b.Snapshot || len(b.Added) != 1 || b.Added[0].ID != "doc-002" {
		t.Fatalf("expected added doc-002, got %+v", b)
	}
	if b := recv(t, sub); len(b.Modified) != 1 || b.Modified[0].Fields.String("description") != "rent!" {
		t.Fatalf("expected modified doc-001, got %+v", b)
	}
	if b := recv(t, sub); len(b.Removed) != 1 || b.Removed[0].ID != "doc-002" {
		t.Fatalf("expected removed doc-002, got %+v", b)
	}
}

func TestStore_SubscribeDocument(t *testing.T) {
	ctx := context.Background()
	s := New()

	sub, err := s.Subscribe(ctx, "accounts/a")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Dispose()
	if b := recv(t, sub); len(b.Added) != 0 {
		t.Fatalf("expected empty snapshot for missing doc, got %+v", b)
	}

	if err := s.Set(ctx, "accounts/a", docstore.Fields{"n": int64(1)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, "accounts/a", docstore.Fields{"n": int64(2)}); err != nil {
		t.Fatal(err)
	}
	if b := recv(t, sub); len(b.Added) != 1 {
		t.Fatalf("expected creation as added, got %+v", b)
	}
	if b := recv(t, sub); len(b.Modified) != 1 {
		t.Fatalf("expected modification, got %+v", b)
	}
}

func TestStore_SlowConsumerTerminated(t *testing.T) {
	ctx := context.Background()
	s := New(WithBuffer(2))

	sub, err := s.Subscribe(ctx, "accounts/a/transfers")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, "accounts/a/transfers", docstore.Fields{"i": int64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	<-sub.Done()
	if !errors.Is(sub.Cause(), docstore.ErrSlowConsumer) {
		t.Fatalf("expected slow consumer cause, got %v", sub.Cause())
	}
	if s.Hub().Active() != 0 {
		t.Fatalf("expected no active subscriptions, got %d", s.Hub().Active())
	}
}

func TestStore_ContextCancelDisposes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()

	sub, err := s.Subscribe(ctx, "accounts/a/transactions")
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not disposed on cancel")
	}
	if sub.Cause() != nil {
		t.Fatalf("disposed subscription should have nil cause, got %v", sub.Cause())
	}
	sub.Dispose() // idempotent
}

func TestStore_CloseEndsSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub, err := s.Subscribe(ctx, "accounts/a/transactions")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	<-sub.Done()
	if !errors.Is(sub.Cause(), docstore.ErrClosed) {
		t.Fatalf("expected ErrClosed cause, got %v", sub.Cause())
	}
	if _, err := s.Get(ctx, "accounts/a"); !errors.Is(err, docstore.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestStore_BreakAndFail(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("unavailable")

	sub, err := s.Subscribe(ctx, "accounts/a/payments")
	if err != nil {
		t.Fatal(err)
	}
	s.Break("accounts/a/payments", boom)
	<-sub.Done()
	if !errors.Is(sub.Cause(), boom) {
		t.Fatalf("expected injected cause, got %v", sub.Cause())
	}

	s.Fail(OpSubscribe, "accounts/a/payments", boom)
	if _, err := s.Subscribe(ctx, "accounts/a/payments"); !errors.Is(err, boom) {
		t.Fatalf("expected injected subscribe failure, got %v", err)
	}
	s.ClearFailures()
	sub, err = s.Subscribe(ctx, "accounts/a/payments")
	if err != nil {
		t.Fatalf("expected subscribe to recover, got %v", err)
	}
	sub.Dispose()
}
