package budget

import (
	"context"
	"slices"
	"sync"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
)

// View is what the budget screen shows at one moment.
type View struct {
	Summary Summary
	Limit   core.Money
	Status  Status
}

// Tracker keeps the session's budget state: the payments last seen, the
// type filter and the limit. The limit lives only as long as the tracker.
type Tracker struct {
	mu       sync.Mutex
	payments []core.ScheduledPayment
	filter   core.EntryType
	limit    core.Money
	view     View
	changed  chan struct{}
}

// NewTracker starts on the expense view with no limit.
func NewTracker() *Tracker {
	t := &Tracker{
		filter:  core.Expense,
		changed: make(chan struct{}, 1),
	}
	t.recomputeLocked()
	return t
}

// Changed signals after every recomputation. Signals coalesce.
func (t *Tracker) Changed() <-chan struct{} { return t.changed }

func (t *Tracker) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.view
	v.Summary.Buckets = slices.Clone(v.Summary.Buckets)
	return v
}

func (t *Tracker) Filter() core.EntryType {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter
}

func (t *Tracker) SetFilter(typ core.EntryType) error {
	if !typ.Valid() {
		return &core.ValidationError{Field: "type", Err: core.ErrInvalidType}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filter == typ {
		return nil
	}
	t.filter = typ
	t.recomputeLocked()
	return nil
}

// SetLimit parses and sets the limit. The value must be positive.
func (t *Tracker) SetLimit(amount string) error {
	m, err := core.ParseAmount(amount)
	if err != nil {
		return err
	}
	t.SetLimitMoney(m)
	return nil
}

func (t *Tracker) SetLimitMoney(m core.Money) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limit = m
	t.recomputeLocked()
}

func (t *Tracker) ClearLimit() {
	t.SetLimitMoney(core.Money{})
}

// Replace swaps in a new payment set, typically a stream emission.
func (t *Tracker) Replace(payments []core.ScheduledPayment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.payments = slices.Clone(payments)
	t.recomputeLocked()
}

// Follow feeds every emission of stream into the tracker until the stream
// ends or ctx is cancelled. It returns the stream's terminal error.
func (t *Tracker) Follow(ctx context.Context, stream *docstore.Stream[[]core.ScheduledPayment]) error {
	for {
		select {
		case payments, ok := <-stream.C():
			if !ok {
				return stream.Err()
			}
			t.Replace(payments)
		case <-ctx.Done():
			stream.Dispose()
			return ctx.Err()
		}
	}
}

func (t *Tracker) recomputeLocked() {
	summary := Aggregate(t.payments, t.filter)
	status := Status{Kind: Unset}
	// The limit only applies to spending.
	if t.filter == core.Expense {
		status = BudgetStatus(summary.GrandTotal, t.limit)
	}
	t.view = View{Summary: summary, Limit: t.limit, Status: status}

	select {
	case t.changed <- struct{}{}:
	default:
	}
}
