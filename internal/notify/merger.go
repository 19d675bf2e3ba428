package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
	"pocketbook/internal/schema"
)

type Kind string

const (
	KindPayment    Kind = "payment"
	KindTransfer   Kind = "transfer"
	KindInvestment Kind = "investment"
)

// TimestampLayout is the display format of notification timestamps.
const TimestampLayout = "02.01.2006 15:04:05"

const noDate = "Date not specified"

type source struct {
	kind       Kind
	collection string
	title      string
	fallback   string
	when       func(f docstore.Fields, loc *time.Location) (time.Time, bool)
}

func instant(key string) func(docstore.Fields, *time.Location) (time.Time, bool) {
	return func(f docstore.Fields, loc *time.Location) (time.Time, bool) {
		t, ok := f.Time(key)
		return t.In(loc), ok
	}
}

var sources = []source{
	{
		kind:       KindPayment,
		collection: core.PaymentsCollection,
		title:      "New Payment Added",
		fallback:   "A payment",
		// Payment dates carry no zone; midnight is local.
		when: func(f docstore.Fields, loc *time.Location) (time.Time, bool) {
			t, err := time.ParseInLocation(core.DateLayout, f.String(schema.FieldDate), loc)
			return t, err == nil
		},
	},
	{
		kind:       KindTransfer,
		collection: core.TransfersCollection,
		title:      "New Transfer Added",
		fallback:   "A transfer",
		when:       instant(schema.FieldTimestamp),
	},
	{
		kind:       KindInvestment,
		collection: core.InvestmentsCollection,
		title:      "New Investment Added",
		fallback:   "An investment",
		when:       instant(schema.FieldDate),
	},
}

// NotificationID is the feed id of record id from a stream of kind.
func NotificationID(kind Kind, id string) string {
	return fmt.Sprintf("%s-%s", kind, id)
}

// Merger subscribes to the payment, transfer and investment streams of one
// account and feeds their new records into a Feed.
type Merger struct {
	store    docstore.Store
	session  core.Session
	feed     *Feed
	logger   *log.Logger
	metrics  *metrics.Metrics
	location *time.Location
}

type Option func(*Merger)

func WithLogger(l *log.Logger) Option {
	return func(m *Merger) { m.logger = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Merger) { m.metrics = mt }
}

// WithLocation sets the zone timestamps are displayed in.
func WithLocation(loc *time.Location) Option {
	return func(m *Merger) { m.location = loc }
}

func NewMerger(store docstore.Store, session core.Session, feed *Feed, opts ...Option) *Merger {
	if feed == nil {
		feed = NewFeed()
	}
	m := &Merger{
		store:    store,
		session:  session,
		feed:     feed,
		logger:   log.ForComponent(log.ComponentNotify),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Merger) Feed() *Feed { return m.feed }

// Run follows all three streams until ctx is cancelled or one of them
// fails. The first failure cancels the others and is returned. Run may be
// called again afterwards; records already in the feed are skipped.
func (m *Merger) Run(ctx context.Context) error {
	if err := m.session.Validate(); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			return m.follow(ctx, src)
		})
	}
	return g.Wait()
}

// Catchup folds the current contents of all three streams into the feed
// and returns without following live changes.
func (m *Merger) Catchup(ctx context.Context) error {
	if err := m.session.Validate(); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			p := core.CollectionPath(m.session.AccountID, src.collection)
			sub, err := m.store.Subscribe(ctx, p)
			if err != nil {
				return docstore.Classify("subscribe", p, err)
			}
			defer sub.Dispose()
			select {
			case b, ok := <-sub.C():
				if !ok {
					return docstore.Classify("subscribe", p, sub.Cause())
				}
				m.apply(ctx, src, b)
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

func (m *Merger) follow(ctx context.Context, src source) error {
	p := core.CollectionPath(m.session.AccountID, src.collection)
	sub, err := m.store.Subscribe(ctx, p)
	if err != nil {
		return docstore.Classify("subscribe", p, err)
	}
	defer sub.Dispose()

	m.logger.DebugContext(ctx, "Following stream", log.FieldStream, string(src.kind), log.FieldPath, p)
	for b := range sub.C() {
		m.apply(ctx, src, b)
	}

	// A nil cause means the subscription was disposed through ctx.
	if cause := sub.Cause(); cause != nil {
		err := docstore.Classify("subscribe", p, cause)
		m.logger.LogError(ctx, "Notification stream failed", err, log.OpSubscribe,
			log.NewFields().WithAccount(m.session.AccountID).WithStream(string(src.kind)))
		return err
	}
	return nil
}

func (m *Merger) apply(ctx context.Context, src source, b docstore.Batch) {
	added := 0
	for _, doc := range b.Added {
		if m.feed.Add(m.notification(src, doc)) {
			added++
			m.metrics.NotificationAdded(string(src.kind))
		}
	}
	if added > 0 {
		m.logger.DebugContext(ctx, "Notifications added",
			log.FieldStream, string(src.kind), log.FieldCount, added)
	}
}

func (m *Merger) notification(src source, doc docstore.Document) Notification {
	desc := strings.TrimSpace(doc.Fields.String(schema.FieldDescription))
	if desc == "" {
		desc = src.fallback
	}
	ts := noDate
	if t, ok := src.when(doc.Fields, m.location); ok {
		ts = t.Format(TimestampLayout)
	}
	return Notification{
		ID:          NotificationID(src.kind, doc.ID),
		Kind:        src.kind,
		Title:       src.title,
		Description: desc + " added successfully.",
		Timestamp:   ts,
	}
}
