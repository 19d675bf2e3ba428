package ledger

import (
	"context"
	"slices"
	"strings"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	"pocketbook/internal/log"
	"pocketbook/internal/schema"
)

// ReadAccountSnapshot streams the account aggregates: the current state
// first, then one value per committed change. A missing account fails with
// *core.NotFoundError. The caller must Dispose the stream.
func (l *Ledger) ReadAccountSnapshot(ctx context.Context, session core.Session) (*docstore.Stream[core.AccountSnapshot], error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	accountPath := core.AccountPath(session.AccountID)

	sub, err := l.store.Subscribe(ctx, accountPath)
	if err != nil {
		return nil, docstore.Classify("subscribe", accountPath, err)
	}
	first, ok := <-sub.C()
	if !ok {
		return nil, docstore.Classify("subscribe", accountPath, sub.Cause())
	}
	if len(first.Added) == 0 {
		sub.Dispose()
		return nil, &core.NotFoundError{Path: accountPath}
	}

	fold := func(b docstore.Batch) (core.AccountSnapshot, bool, error) {
		if len(b.Removed) > 0 {
			return core.AccountSnapshot{}, false, &core.NotFoundError{Path: accountPath}
		}
		docs := append(slices.Clone(b.Added), b.Modified...)
		if len(docs) == 0 {
			return core.AccountSnapshot{}, false, nil
		}
		last := docs[len(docs)-1]
		return schema.DecodeAccount(last).Snapshot(last.Version), true, nil
	}
	return docstore.Project(sub, fold, first), nil
}

// ListTransactions streams the account's transactions, newest first. Equal
// timestamps are ordered by id so repeated emissions stay stable.
func (l *Ledger) ListTransactions(ctx context.Context, session core.Session) (*docstore.Stream[[]core.Transaction], error) {
	return watchCollection(ctx, l, session, core.TransactionsCollection, schema.DecodeTransaction, CompareTransactions)
}

// CompareTransactions orders by timestamp descending, then id ascending.
func CompareTransactions(a, b core.Transaction) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func watchCollection[T any](
	ctx context.Context,
	l *Ledger,
	session core.Session,
	collection string,
	decode func(docstore.Document) (T, error),
	cmp func(a, b T) int,
) (*docstore.Stream[[]T], error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	p := core.CollectionPath(session.AccountID, collection)
	sub, err := l.store.Subscribe(ctx, p)
	if err != nil {
		return nil, docstore.Classify("subscribe", p, err)
	}
	skipped := func(doc docstore.Document, err error) {
		l.logger.WarnContext(ctx, "Skipping malformed document",
			log.FieldPath, doc.Path, log.FieldError, err)
	}
	return docstore.Project(sub, docstore.Collect(decode, cmp, skipped)), nil
}
