package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
	"pocketbook/internal/schema"
	"pocketbook/internal/sheets"
)

// Export outcomes reported to metrics.
const (
	ResultExported = "exported"
	ResultSkipped  = "skipped"
	ResultError    = "error"
)

// ExportWorker mirrors an account's transactions to a sheet. Each exported
// transaction gets a marker document under accounts/{id}/exports, so a
// transaction is written to the sheet at most once per successful marker.
type ExportWorker struct {
	store    docstore.Store
	exporter sheets.TransactionExporter
	session  core.Session
	logger   *log.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	// serializes the marker check with the export
	mu sync.Mutex
}

type Option func(*ExportWorker)

func WithLogger(l *log.Logger) Option {
	return func(w *ExportWorker) { w.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *ExportWorker) { w.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(w *ExportWorker) { w.now = now }
}

func NewExportWorker(store docstore.Store, exporter sheets.TransactionExporter, session core.Session, opts ...Option) *ExportWorker {
	w := &ExportWorker{
		store:    store,
		exporter: exporter,
		session:  session,
		logger:   log.ForComponent(log.ComponentWorker),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ExportTransaction writes tx to the sheet unless a marker says it was
// already exported. It reports whether a row was written.
func (w *ExportWorker) ExportTransaction(ctx context.Context, tx core.Transaction) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	markerPath := core.DocumentPath(w.session.AccountID, core.ExportsCollection, tx.ID)
	_, err := w.store.Get(ctx, markerPath)
	switch {
	case err == nil:
		w.metrics.Exported(ResultSkipped)
		return false, nil
	case !errors.Is(err, docstore.ErrNotFound):
		w.metrics.Exported(ResultError)
		return false, docstore.Classify("read export marker", markerPath, err)
	}

	ref, err := w.exporter.Export(ctx, w.session.AccountID, tx)
	if err != nil {
		w.metrics.Exported(ResultError)
		return false, fmt.Errorf("export transaction %s: %w", tx.ID, err)
	}

	marker := schema.ExportMarker{TransactionID: tx.ID, Ref: ref, ExportedAt: w.now().UTC()}
	if err := w.store.Set(ctx, markerPath, schema.ExportMarkerFields(marker)); err != nil {
		// The row exists; without the marker it will be written again.
		w.metrics.Exported(ResultError)
		return true, docstore.Classify("write export marker", markerPath, err)
	}

	w.metrics.Exported(ResultExported)
	w.logger.InfoContext(ctx, "Successfully exported transaction",
		log.FieldDocID, tx.ID,
		log.FieldSheetsRef, ref,
		log.FieldEntryType, tx.Type.String(),
		log.FieldAmountCents, tx.Amount.Cents)
	return true, nil
}

// ProcessPending exports every transaction that has no marker yet. It is
// the backup path for changes missed while the worker was down.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	if err := w.session.Validate(); err != nil {
		return 0, err
	}
	p := core.CollectionPath(w.session.AccountID, core.TransactionsCollection)
	sub, err := w.store.Subscribe(ctx, p)
	if err != nil {
		return 0, docstore.Classify("subscribe", p, err)
	}
	var snapshot docstore.Batch
	select {
	case b, ok := <-sub.C():
		if !ok {
			return 0, docstore.Classify("subscribe", p, sub.Cause())
		}
		snapshot = b
	case <-ctx.Done():
		sub.Dispose()
		return 0, ctx.Err()
	}
	sub.Dispose()

	exported, _ := w.exportBatch(ctx, "Pending export completed", snapshot.Added)
	return exported, nil
}

// Run exports new transactions as they are committed, until ctx is
// cancelled or the subscription fails. The initial snapshot is processed
// too, which covers anything booked while the worker was stopped.
func (w *ExportWorker) Run(ctx context.Context) error {
	if err := w.session.Validate(); err != nil {
		return err
	}
	p := core.CollectionPath(w.session.AccountID, core.TransactionsCollection)
	sub, err := w.store.Subscribe(ctx, p)
	if err != nil {
		return docstore.Classify("subscribe", p, err)
	}
	defer sub.Dispose()

	w.logger.InfoContext(ctx, "Export worker started", log.FieldAccountID, w.session.AccountID)
	for b := range sub.C() {
		w.exportBatch(ctx, "Export batch completed", b.Added)
	}
	if cause := sub.Cause(); cause != nil {
		return docstore.Classify("subscribe", p, cause)
	}
	return nil
}

// exportBatch exports docs and logs a summary under msg when anything was
// exported or failed. Failures are left for the next pass.
func (w *ExportWorker) exportBatch(ctx context.Context, msg string, docs []docstore.Document) (exported, failed int) {
	for _, doc := range docs {
		if ok, err := w.exportDoc(ctx, doc); err != nil {
			failed++
		} else if ok {
			exported++
		}
	}
	if exported > 0 || failed > 0 {
		w.logger.InfoContext(ctx, msg,
			"total", len(docs),
			"exported", exported,
			"errors", failed)
	}
	return exported, failed
}

func (w *ExportWorker) exportDoc(ctx context.Context, doc docstore.Document) (bool, error) {
	tx, err := schema.DecodeTransaction(doc)
	if err != nil {
		w.logger.WarnContext(ctx, "Skipping malformed transaction", log.FieldPath, doc.Path, log.FieldError, err)
		return false, nil
	}
	ok, err := w.ExportTransaction(ctx, tx)
	if err != nil {
		w.logger.LogError(ctx, "Failed to export transaction", err, log.OpExport,
			log.NewFields().WithAccount(w.session.AccountID).WithDocument(core.TransactionsCollection, tx.ID))
	}
	return ok, err
}
