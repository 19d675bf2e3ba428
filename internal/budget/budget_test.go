package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	"pocketbook/internal/docstore/memory"
	"pocketbook/internal/schema"
)

func payment(typ core.EntryType, category, amount string) core.ScheduledPayment {
	return core.ScheduledPayment{
		Date:        "2025-03-01",
		Amount:      core.MustParseAmount(amount),
		Description: "x",
		Type:        typ,
		Category:    category,
	}
}

func TestAggregate(t *testing.T) {
	records := []core.ScheduledPayment{
		payment(core.Expense, "A", "10"),
		payment(core.Expense, "B", "3"),
		payment(core.Income, "A", "100"),
		payment(core.Expense, "A", "5"),
	}

	s := Aggregate(records, core.Expense)
	if len(s.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(s.Buckets))
	}
	if s.Buckets[0].Category != "A" || s.Buckets[1].Category != "B" {
		t.Fatalf("bucket order = %q, %q; want A, B", s.Buckets[0].Category, s.Buckets[1].Category)
	}
	if s.Buckets[0].Total.Cents != 1500 || s.Buckets[1].Total.Cents != 300 {
		t.Fatalf("totals = %d, %d; want 1500, 300", s.Buckets[0].Total.Cents, s.Buckets[1].Total.Cents)
	}
	if s.GrandTotal.Cents != 1800 {
		t.Fatalf("grand total = %d, want 1800", s.GrandTotal.Cents)
	}
	if s.Buckets[0].Color != Palette[0] || s.Buckets[1].Color != Palette[1] {
		t.Fatalf("unexpected colors %q, %q", s.Buckets[0].Color, s.Buckets[1].Color)
	}

	income := Aggregate(records, core.Income)
	if income.GrandTotal.Cents != 10000 || len(income.Buckets) != 1 {
		t.Fatalf("income summary = %+v", income)
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate([]core.ScheduledPayment(nil), core.Expense)
	if len(s.Buckets) != 0 || s.GrandTotal.Cents != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}

func TestAggregate_PaletteCycles(t *testing.T) {
	var records []core.ScheduledPayment
	for _, c := range "ABCDEFGHIJKL" {
		records = append(records, payment(core.Expense, string(c), "1"))
	}
	s := Aggregate(records, core.Expense)
	if len(s.Buckets) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(s.Buckets))
	}
	if s.Buckets[10].Color != Palette[0] || s.Buckets[11].Color != Palette[1] {
		t.Fatalf("palette did not wrap: %q, %q", s.Buckets[10].Color, s.Buckets[11].Color)
	}
}

func TestBudgetStatus(t *testing.T) {
	tests := []struct {
		name      string
		total     string
		limit     string
		wantKind  StatusKind
		wantCents int64
	}{
		{"exceeded", "6000", "5000", Exceeded, 100000},
		{"safe", "3000", "5000", Safe, 200000},
		{"exactly at limit", "5000", "5000", Safe, 0},
		{"no limit", "3000", "0", Unset, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, _ := core.ParseBalance(tt.total)
			limit, _ := core.ParseBalance(tt.limit)
			got := BudgetStatus(total, limit)
			if got.Kind != tt.wantKind {
				t.Fatalf("kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Amount.Cents != tt.wantCents {
				t.Fatalf("amount = %d, want %d", got.Amount.Cents, tt.wantCents)
			}
		})
	}
}

func TestTracker_FilterAndLimit(t *testing.T) {
	tr := NewTracker()
	if tr.Filter() != core.Expense {
		t.Fatalf("default filter = %v, want expense", tr.Filter())
	}
	tr.Replace([]core.ScheduledPayment{
		payment(core.Expense, "Rent", "6000"),
		payment(core.Income, "Salary", "2500"),
	})

	if v := tr.View(); v.Status.Kind != Unset {
		t.Fatalf("status without limit = %v", v.Status.Kind)
	}

	if err := tr.SetLimit("5000"); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}
	v := tr.View()
	if v.Status.Kind != Exceeded || v.Status.Amount.Cents != 100000 {
		t.Fatalf("status = %+v, want exceeded by 100000", v.Status)
	}

	if err := tr.SetFilter(core.Income); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	v = tr.View()
	if v.Summary.GrandTotal.Cents != 250000 {
		t.Fatalf("income total = %d", v.Summary.GrandTotal.Cents)
	}
	if v.Status.Kind != Unset {
		t.Fatalf("income view must not carry a status, got %v", v.Status.Kind)
	}

	if err := tr.SetFilter("transfer"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := tr.SetLimit("-1"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for negative limit, got %v", err)
	}

	tr.ClearLimit()
	_ = tr.SetFilter(core.Expense)
	if v := tr.View(); v.Status.Kind != Unset {
		t.Fatalf("status after clear = %v", v.Status.Kind)
	}
}

func TestTracker_Follow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := memory.New()
	defer store.Close()
	p := core.CollectionPath("acc", core.PaymentsCollection)
	if _, err := store.Append(ctx, p, schema.PaymentFields(payment(core.Expense, "Rent", "40"))); err != nil {
		t.Fatalf("Append: %v", err)
	}

	sub, err := store.Subscribe(ctx, p)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	stream := docstore.Project(sub, docstore.Collect(schema.DecodePayment, nil, nil))

	tr := NewTracker()
	done := make(chan error, 1)
	go func() { done <- tr.Follow(ctx, stream) }()

	waitTotal := func(want int64) {
		t.Helper()
		for {
			if tr.View().Summary.GrandTotal.Cents == want {
				return
			}
			select {
			case <-tr.Changed():
			case <-ctx.Done():
				t.Fatalf("timed out waiting for total %d, have %d", want, tr.View().Summary.GrandTotal.Cents)
			}
		}
	}

	waitTotal(4000)
	if _, err := store.Append(ctx, p, schema.PaymentFields(payment(core.Expense, "Food", "2"))); err != nil {
		t.Fatalf("Append: %v", err)
	}
	waitTotal(4200)

	stream.Dispose()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow after dispose = %v, want nil", err)
		}
	case <-ctx.Done():
		t.Fatal("Follow did not return")
	}
}
