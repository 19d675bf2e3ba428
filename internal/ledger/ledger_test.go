package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	"pocketbook/internal/docstore/memory"
	"pocketbook/internal/log"
)

var session = core.Session{AccountID: "acc-1"}

func noBackoff(int) time.Duration { return 0 }

func newTestLedger(t *testing.T, store docstore.Store, opts ...Option) *Ledger {
	t.Helper()
	opts = append([]Option{WithLogger(log.Discard()), WithBackoff(noBackoff)}, opts...)
	return New(store, opts...)
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%04d", n.Add(1)) }
}

func mustCreate(t *testing.T, l *Ledger, initial int64) {
	t.Helper()
	if _, err := l.CreateAccount(context.Background(), session, core.Money{Cents: initial}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
}

func balance(t *testing.T, l *Ledger) core.AccountSnapshot {
	t.Helper()
	stream, err := l.ReadAccountSnapshot(context.Background(), session)
	if err != nil {
		t.Fatalf("ReadAccountSnapshot: %v", err)
	}
	defer stream.Dispose()
	select {
	case snap := <-stream.C():
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return core.AccountSnapshot{}
}

// countingStore counts every call reaching the store.
type countingStore struct {
	docstore.Store
	calls atomic.Int64
}

func (c *countingStore) Get(ctx context.Context, p string) (docstore.Document, error) {
	c.calls.Add(1)
	return c.Store.Get(ctx, p)
}

func (c *countingStore) Append(ctx context.Context, p string, f docstore.Fields) (string, error) {
	c.calls.Add(1)
	return c.Store.Append(ctx, p, f)
}

func (c *countingStore) Update(ctx context.Context, p string, f docstore.Fields) error {
	c.calls.Add(1)
	return c.Store.Update(ctx, p, f)
}

func (c *countingStore) RunTransaction(ctx context.Context, fn func(context.Context, docstore.Tx) error) error {
	c.calls.Add(1)
	return c.Store.RunTransaction(ctx, fn)
}

func (c *countingStore) Subscribe(ctx context.Context, p string) (*docstore.Subscription, error) {
	c.calls.Add(1)
	return c.Store.Subscribe(ctx, p)
}

func TestLedger_BalanceInvariant(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	mustCreate(t, l, 100000)

	steps := []struct {
		typ    core.EntryType
		amount string
	}{
		{core.Income, "250.50"},
		{core.Expense, "99.99"},
		{core.Expense, "0.01"},
		{core.Income, "1,25"},
		{core.Expense, "1000"},
	}
	var income, expense int64
	for _, s := range steps {
		var (
			tx  core.Transaction
			err error
		)
		if s.typ == core.Income {
			tx, err = l.RecordIncome(ctx, session, s.amount, "")
			income += tx.Amount.Cents
		} else {
			tx, err = l.RecordExpense(ctx, session, s.amount, "")
			expense += tx.Amount.Cents
		}
		if err != nil {
			t.Fatalf("record %s %s: %v", s.typ, s.amount, err)
		}
	}

	snap := balance(t, l)
	if snap.TotalBalance.Cents != 100000+income-expense {
		t.Fatalf("total = %d, want %d", snap.TotalBalance.Cents, 100000+income-expense)
	}
	if snap.Income.Cents != 25175 || snap.Expense.Cents != 110000 {
		t.Fatalf("unexpected aggregates %+v", snap)
	}
}

func TestLedger_ValidationBeforeRemote(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	l := newTestLedger(t, store)

	for _, amount := range []string{"-5", "abc", "0", "NaN", ""} {
		_, err := l.RecordIncome(context.Background(), session, amount, "")
		if !errors.Is(err, core.ErrValidation) {
			t.Fatalf("RecordIncome(%q): expected ValidationError, got %v", amount, err)
		}
	}
	if _, err := l.RecordExpense(context.Background(), core.Session{}, "5", ""); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("missing account: expected ValidationError, got %v", err)
	}
	if n := store.calls.Load(); n != 0 {
		t.Fatalf("validation failures reached the store %d times", n)
	}
}

func TestLedger_AggregateOverflowRejected(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	mustCreate(t, l, 0)

	if _, err := l.RecordIncome(ctx, session, "50000000000000000", ""); err != nil {
		t.Fatalf("first income: %v", err)
	}
	before := balance(t, l)

	_, err := l.RecordIncome(ctx, session, "50000000000000000", "")
	var verr *core.ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, core.ErrAmountOverflow) {
		t.Fatalf("expected overflow ValidationError, got %v", err)
	}
	if _, err := l.RecordExpense(ctx, session, "50000000000000000", ""); err != nil {
		t.Fatalf("expense within range: %v", err)
	}

	after := balance(t, l)
	if after.Income != before.Income || after.TotalBalance.Cents != 0 {
		t.Fatalf("aggregates changed by rejected entry: before %+v after %+v", before, after)
	}

	stream, err := l.ListTransactions(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Dispose()
	if txs := <-stream.C(); len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
}

func TestLedger_MissingAccount(t *testing.T) {
	l := newTestLedger(t, memory.New())

	_, err := l.RecordExpense(context.Background(), session, "10", "coffee")
	var nf *core.NotFoundError
	if !errors.As(err, &nf) || nf.Path != "accounts/acc-1" {
		t.Fatalf("expected NotFoundError for accounts/acc-1, got %v", err)
	}
	if _, err := l.ReadAccountSnapshot(context.Background(), session); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("snapshot of missing account: expected NotFoundError, got %v", err)
	}
}

func TestLedger_DefaultDescription(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	mustCreate(t, l, 0)

	in, err := l.RecordIncome(ctx, session, "5", "  ")
	if err != nil {
		t.Fatal(err)
	}
	out, err := l.RecordExpense(ctx, session, "5", "")
	if err != nil {
		t.Fatal(err)
	}
	if in.Description != DefaultIncomeDescription || out.Description != DefaultExpenseDescription {
		t.Fatalf("got %q / %q", in.Description, out.Description)
	}
}

func TestLedger_ConcurrentEntriesNoLostUpdate(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New(), WithMaxAttempts(1000), WithBackoff(jitteredBackoff))
	mustCreate(t, l, 0)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.RecordIncome(ctx, session, "1.00", ""); err != nil {
				t.Errorf("RecordIncome: %v", err)
			}
		}()
	}
	wg.Wait()

	snap := balance(t, l)
	if snap.TotalBalance.Cents != workers*100 || snap.Income.Cents != workers*100 {
		t.Fatalf("lost update: %+v", snap)
	}

	stream, err := l.ListTransactions(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Dispose()
	if txs := <-stream.C(); len(txs) != workers {
		t.Fatalf("expected %d transactions, got %d", workers, len(txs))
	}
}

func TestLedger_PartialFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := newTestLedger(t, store)
	mustCreate(t, l, 5000)

	store.Fail(memory.OpUpdate, "accounts/acc-1", errors.New("permission denied"))
	_, err := l.RecordExpense(ctx, session, "10", "groceries")
	if !errors.Is(err, core.ErrRemote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	store.ClearFailures()

	stream, err := l.ListTransactions(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Dispose()
	if txs := <-stream.C(); len(txs) != 0 {
		t.Fatalf("failed entry left %d transactions behind", len(txs))
	}
	if snap := balance(t, l); snap.TotalBalance.Cents != 5000 || snap.Expense.Cents != 0 {
		t.Fatalf("balance drifted: %+v", snap)
	}
}

// conflictingStore fails every commit with ErrConflict.
type conflictingStore struct {
	docstore.Store
	attempts atomic.Int64
}

func (c *conflictingStore) RunTransaction(ctx context.Context, fn func(context.Context, docstore.Tx) error) error {
	c.attempts.Add(1)
	return docstore.ErrConflict
}

func TestLedger_ConflictRetriesExhausted(t *testing.T) {
	store := &conflictingStore{Store: memory.New()}
	l := newTestLedger(t, store, WithMaxAttempts(4))

	_, err := l.RecordIncome(context.Background(), session, "1", "")
	if !errors.Is(err, core.ErrRemote) || !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("expected RemoteError wrapping ErrConflict, got %v", err)
	}
	if n := store.attempts.Load(); n != 4 {
		t.Fatalf("expected 4 attempts, got %d", n)
	}
}

func TestLedger_SnapshotFollowsCommits(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	mustCreate(t, l, 1000)

	stream, err := l.ReadAccountSnapshot(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Dispose()

	first := <-stream.C()
	if first.TotalBalance.Cents != 1000 {
		t.Fatalf("initial snapshot %+v", first)
	}

	if _, err := l.RecordIncome(ctx, session, "5", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordExpense(ctx, session, "2", ""); err != nil {
		t.Fatal(err)
	}

	var last core.AccountSnapshot
	for _, want := range []int64{1500, 1300} {
		select {
		case last = <-stream.C():
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot update")
		}
		if last.TotalBalance.Cents != want {
			t.Fatalf("total = %d, want %d", last.TotalBalance.Cents, want)
		}
		if last.Version <= first.Version {
			t.Fatalf("versions must increase: %d after %d", last.Version, first.Version)
		}
		first = last
	}
}

func TestLedger_TransactionOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.WithIDs(sequentialIDs()))

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	l := newTestLedger(t, store, WithClock(clock))
	mustCreate(t, l, 0) // account uses Set, no generated id

	record := func(at time.Time) {
		mu.Lock()
		now = at
		mu.Unlock()
		if _, err := l.RecordIncome(ctx, session, "1", ""); err != nil {
			t.Fatal(err)
		}
	}
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	record(base)                 // id-0001
	record(base.Add(time.Hour))  // id-0002
	record(base)                 // id-0003, ties with id-0001
	record(base.Add(-time.Hour)) // id-0004

	stream, err := l.ListTransactions(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Dispose()

	txs := <-stream.C()
	var ids []string
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	want := []string{"id-0002", "id-0001", "id-0003", "id-0004"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", ids, want)
	}
}

func TestLedger_TransfersAndInvestments(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.New())
	mustCreate(t, l, 1000)

	if _, err := l.RecordTransfer(ctx, session, TransferInput{Recipient: " ", Amount: "5"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("blank recipient: expected ValidationError, got %v", err)
	}
	tr, err := l.RecordTransfer(ctx, session, TransferInput{Recipient: "Alice", Amount: "7.50", Description: "dinner"})
	if err != nil {
		t.Fatal(err)
	}
	if tr.ID == "" || tr.Amount.Cents != 750 {
		t.Fatalf("unexpected transfer %+v", tr)
	}

	if _, err := l.RecordInvestment(ctx, session, InvestmentInput{Asset: "", Amount: "1"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("blank asset: expected ValidationError, got %v", err)
	}
	if _, err := l.RecordInvestment(ctx, session, InvestmentInput{Asset: "ETF", Amount: "100"}); err != nil {
		t.Fatal(err)
	}

	// Transfers and investments are logged apart from the balance.
	if snap := balance(t, l); snap.TotalBalance.Cents != 1000 {
		t.Fatalf("balance changed to %d", snap.TotalBalance.Cents)
	}

	transfers, err := l.ListTransfers(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	defer transfers.Dispose()
	if got := <-transfers.C(); len(got) != 1 || got[0].Recipient != "Alice" {
		t.Fatalf("unexpected transfers %+v", got)
	}

	investments, err := l.ListInvestments(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	defer investments.Dispose()
	if got := <-investments.C(); len(got) != 1 || got[0].Asset != "ETF" {
		t.Fatalf("unexpected investments %+v", got)
	}
}
