package calendar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	"pocketbook/internal/docstore/memory"
	"pocketbook/internal/log"
)

var session = core.Session{AccountID: "acc-1"}

type appendCounter struct {
	docstore.Store
	appends int
}

func (a *appendCounter) Append(ctx context.Context, p string, fields docstore.Fields) (string, error) {
	a.appends++
	return a.Store.Append(ctx, p, fields)
}

func validInput() PaymentInput {
	return PaymentInput{
		Date:        "2024-02-15",
		Amount:      "120.50",
		Description: "Rent",
		Type:        "expense",
		Category:    "Rent",
	}
}

func TestAddPayment_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PaymentInput)
		field  string
	}{
		{"missing date", func(in *PaymentInput) { in.Date = "" }, "date"},
		{"bad date", func(in *PaymentInput) { in.Date = "15/02/2024" }, "date"},
		{"zero amount", func(in *PaymentInput) { in.Amount = "0" }, "amount"},
		{"bad amount", func(in *PaymentInput) { in.Amount = "abc" }, "amount"},
		{"blank description", func(in *PaymentInput) { in.Description = "  " }, "description"},
		{"long description", func(in *PaymentInput) { in.Description = strings.Repeat("x", 201) }, "description"},
		{"bad type", func(in *PaymentInput) { in.Type = "transfer" }, "type"},
		{"blank category", func(in *PaymentInput) { in.Category = "" }, "category"},
	}

	store := &appendCounter{Store: memory.New()}
	cal := New(store, WithLogger(log.Discard()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := cal.AddPayment(context.Background(), session, in)
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
	if store.appends != 0 {
		t.Fatalf("invalid input reached the store %d times", store.appends)
	}
}

func TestAddPayment(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	defer store.Close()
	created := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	cal := New(store, WithLogger(log.Discard()), WithClock(func() time.Time { return created }))

	in := validInput()
	in.Type = "Income"
	in.Date = " 2024-02-15 "
	p, err := cal.AddPayment(ctx, session, in)
	if err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	if p.ID == "" || p.Type != core.Income || p.Date != "2024-02-15" || p.Amount.Cents != 12050 {
		t.Fatalf("unexpected payment %+v", p)
	}

	doc, err := store.Get(ctx, core.DocumentPath(session.AccountID, core.PaymentsCollection, p.ID))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := doc.Fields.String("type"); got != "income" {
		t.Fatalf("stored type = %q", got)
	}

	store.Fail(memory.OpAppend, core.CollectionPath(session.AccountID, core.PaymentsCollection), errors.New("offline"))
	if _, err := cal.AddPayment(ctx, session, validInput()); !errors.Is(err, core.ErrRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestDerivedUpcoming(t *testing.T) {
	payments := []core.ScheduledPayment{
		{ID: "a", Date: "2024-03-01"},
		{ID: "b", Date: "2023-12-01"},
		{ID: "c", Date: "2024-01-01"},
		{ID: "d", Date: "2024-01-01"},
	}

	got := DerivedUpcoming(payments, "2024-01-01")
	var ids []string
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	if strings.Join(ids, ",") != "c,d,a" {
		t.Fatalf("upcoming = %v, want [c d a]", ids)
	}
	if payments[0].ID != "a" {
		t.Fatal("input slice was reordered")
	}
	if len(DerivedUpcoming(payments, "2025-01-01")) != 0 {
		t.Fatal("expected no upcoming payments")
	}
}

func TestCalendarMarks(t *testing.T) {
	payments := []core.ScheduledPayment{
		{Date: "2024-01-01", Type: core.Expense},
		{Date: "2024-01-02", Type: core.Income},
		{Date: "2024-01-01", Type: core.Income},
	}
	marks := CalendarMarks(payments)
	if len(marks) != 2 {
		t.Fatalf("expected 2 marks, got %d", len(marks))
	}
	if marks["2024-01-01"] != IncomeColor {
		t.Fatalf("mixed date mark = %q, want last writer %q", marks["2024-01-01"], IncomeColor)
	}
	if marks["2024-01-02"] != IncomeColor {
		t.Fatalf("income mark = %q", marks["2024-01-02"])
	}
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := memory.New()
	defer store.Close()
	today := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cal := New(store, WithLogger(log.Discard()), WithClock(func() time.Time { return today }))

	for _, date := range []string{"2024-03-01", "2023-12-01"} {
		in := validInput()
		in.Date = date
		if _, err := cal.AddPayment(ctx, session, in); err != nil {
			t.Fatalf("AddPayment: %v", err)
		}
	}

	stream, err := cal.Watch(ctx, session)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stream.Dispose()

	next := func() View {
		t.Helper()
		select {
		case v, ok := <-stream.C():
			if !ok {
				t.Fatalf("stream ended: %v", stream.Err())
			}
			return v
		case <-ctx.Done():
			t.Fatal("timed out waiting for view")
		}
		return View{}
	}

	v := next()
	if len(v.Payments) != 2 || len(v.Upcoming) != 1 || v.Upcoming[0].Date != "2024-03-01" {
		t.Fatalf("initial view = %+v", v)
	}

	in := validInput()
	in.Date = "2024-01-01"
	in.Type = "income"
	if _, err := cal.AddPayment(ctx, session, in); err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	v = next()
	if len(v.Upcoming) != 2 || v.Upcoming[0].Date != "2024-01-01" {
		t.Fatalf("upcoming after add = %+v", v.Upcoming)
	}
	if v.Marks["2024-01-01"] != IncomeColor || v.Marks["2023-12-01"] != ExpenseColor {
		t.Fatalf("marks = %v", v.Marks)
	}
}

func TestWatch_RequiresSession(t *testing.T) {
	cal := New(memory.New(), WithLogger(log.Discard()))
	if _, err := cal.Watch(context.Background(), core.Session{}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
