// Package calendar schedules dated payments and derives the upcoming list
// and per-date markers from them.
package calendar

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	"pocketbook/internal/log"
	"pocketbook/internal/schema"
)

// Marker colors by entry type.
const (
	ExpenseColor = "#ef4444"
	IncomeColor  = "#10b981"
)

// PaymentInput is a scheduled payment as entered by the user. Every field
// is required.
type PaymentInput struct {
	Date        string
	Amount      string
	Description string
	Type        string
	Category    string
}

// View is the calendar screen state derived from one payments emission.
type View struct {
	Payments []core.ScheduledPayment
	Upcoming []core.ScheduledPayment
	Marks    map[string]string
}

type Calendar struct {
	store  docstore.Store
	logger *log.Logger
	now    func() time.Time
}

type Option func(*Calendar)

func WithLogger(l *log.Logger) Option {
	return func(c *Calendar) { c.logger = l }
}

// WithClock overrides the source of "today" and of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) { c.now = now }
}

func New(store docstore.Store, opts ...Option) *Calendar {
	c := &Calendar{
		store:  store,
		logger: log.ForComponent(log.ComponentCalendar),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddPayment validates in and appends it to the account's payments.
func (c *Calendar) AddPayment(ctx context.Context, session core.Session, in PaymentInput) (core.ScheduledPayment, error) {
	p, err := c.parse(session, in)
	if err != nil {
		return core.ScheduledPayment{}, err
	}

	collection := core.CollectionPath(session.AccountID, core.PaymentsCollection)
	id, err := c.store.Append(ctx, collection, schema.PaymentFields(p))
	if err != nil {
		return core.ScheduledPayment{}, docstore.Classify("add payment", collection, err)
	}
	p.ID = id

	c.logger.InfoContext(ctx, "Payment scheduled",
		log.NewFields().WithAccount(session.AccountID).WithDocument(collection, id).
			WithEntry(p.Type.String(), p.Amount.Cents).ToSlice()...,
	)
	return p, nil
}

func (c *Calendar) parse(session core.Session, in PaymentInput) (core.ScheduledPayment, error) {
	if err := session.Validate(); err != nil {
		return core.ScheduledPayment{}, err
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.ScheduledPayment{}, &core.ValidationError{Field: "date", Err: err}
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.ScheduledPayment{}, err
	}
	typ, err := core.ParseEntryType(in.Type)
	if err != nil {
		return core.ScheduledPayment{}, err
	}
	p := core.ScheduledPayment{
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		Type:        typ,
		Category:    strings.TrimSpace(in.Category),
		CreatedAt:   c.now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return core.ScheduledPayment{}, err
	}
	return p, nil
}

// ListPayments streams every scheduled payment of the account in the order
// the store first reported them.
func (c *Calendar) ListPayments(ctx context.Context, session core.Session) (*docstore.Stream[[]core.ScheduledPayment], error) {
	sub, err := c.subscribe(ctx, session)
	if err != nil {
		return nil, err
	}
	return docstore.Project(sub, c.collect(ctx)), nil
}

// Watch streams the calendar view. The upcoming list is cut at the clock's
// current date on every emission.
func (c *Calendar) Watch(ctx context.Context, session core.Session) (*docstore.Stream[View], error) {
	sub, err := c.subscribe(ctx, session)
	if err != nil {
		return nil, err
	}
	collect := c.collect(ctx)
	fold := func(b docstore.Batch) (View, bool, error) {
		payments, emit, err := collect(b)
		if err != nil || !emit {
			return View{}, emit, err
		}
		today := c.now().Format(core.DateLayout)
		return View{
			Payments: payments,
			Upcoming: DerivedUpcoming(payments, today),
			Marks:    CalendarMarks(payments),
		}, true, nil
	}
	return docstore.Project(sub, fold), nil
}

func (c *Calendar) subscribe(ctx context.Context, session core.Session) (*docstore.Subscription, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	collection := core.CollectionPath(session.AccountID, core.PaymentsCollection)
	sub, err := c.store.Subscribe(ctx, collection)
	if err != nil {
		return nil, docstore.Classify("subscribe", collection, err)
	}
	return sub, nil
}

func (c *Calendar) collect(ctx context.Context) docstore.Fold[[]core.ScheduledPayment] {
	return docstore.Collect(schema.DecodePayment, nil, func(doc docstore.Document, err error) {
		c.logger.WarnContext(ctx, "Skipping malformed payment",
			log.FieldPath, doc.Path, log.FieldError, err)
	})
}

// DerivedUpcoming returns the payments dated on or after asOf, earliest
// first. Dates compare as strings, which matches chronological order for
// the canonical YYYY-MM-DD encoding. Payments on the same date keep their
// input order.
func DerivedUpcoming(payments []core.ScheduledPayment, asOf string) []core.ScheduledPayment {
	out := make([]core.ScheduledPayment, 0, len(payments))
	for _, p := range payments {
		if p.Date >= asOf {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b core.ScheduledPayment) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return out
}

// CalendarMarks maps each payment date to the color of its type. When a
// date holds both types the last payment in input order decides.
func CalendarMarks(payments []core.ScheduledPayment) map[string]string {
	marks := make(map[string]string, len(payments))
	for _, p := range payments {
		marks[p.Date] = MarkColor(p.Type)
	}
	return marks
}

func MarkColor(t core.EntryType) string {
	if t == core.Income {
		return IncomeColor
	}
	return ExpenseColor
}
