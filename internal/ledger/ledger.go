// Package ledger records income and expense entries against an account and
// keeps the account aggregates consistent with the transaction log.
//
// Every entry is written together with the new aggregates in one store
// transaction. Conflicting commits are retried as a whole, so concurrent
// callers never lose each other's deltas.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
	"pocketbook/internal/schema"
)

const (
	DefaultMaxAttempts = 10
	maxDescriptionLen  = 200
)

// Default descriptions for entries recorded without one.
const (
	DefaultIncomeDescription  = "Income"
	DefaultExpenseDescription = "Expense"
)

type Ledger struct {
	store       docstore.Store
	logger      *log.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	now         func() time.Time
	backoff     func(attempt int) time.Duration
}

type Option func(*Ledger)

func WithLogger(l *log.Logger) Option {
	return func(lg *Ledger) { lg.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(lg *Ledger) { lg.metrics = m }
}

// WithMaxAttempts bounds the conflict retry loop. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(lg *Ledger) {
		if n >= 1 {
			lg.maxAttempts = n
		}
	}
}

// WithClock overrides the timestamp source for new records.
func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) { lg.now = now }
}

// WithBackoff overrides the pause between conflicting attempts.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(lg *Ledger) { lg.backoff = fn }
}

func New(store docstore.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		logger:      log.ForComponent(log.ComponentLedger),
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		backoff:     jitteredBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// jitteredBackoff waits one millisecond per attempt, capped at 45ms, plus up
// to 5ms of jitter.
func jitteredBackoff(attempt int) time.Duration {
	base := time.Duration(attempt) * time.Millisecond
	if base > 45*time.Millisecond {
		base = 45 * time.Millisecond
	}
	return base + time.Duration(rand.Int64N(int64(5*time.Millisecond)))
}

// CreateAccount creates the account document with the given opening
// balance. An existing account is returned unchanged.
func (l *Ledger) CreateAccount(ctx context.Context, session core.Session, initial core.Money) (core.Account, error) {
	if err := session.Validate(); err != nil {
		return core.Account{}, err
	}
	accountPath := core.AccountPath(session.AccountID)

	var out core.Account
	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(accountPath)
		if err == nil {
			out = schema.DecodeAccount(doc)
			return nil
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		out = core.Account{
			ID:             session.AccountID,
			InitialBalance: initial,
			TotalBalance:   initial,
		}
		return tx.Set(accountPath, schema.AccountFields(out))
	})
	if err != nil {
		return core.Account{}, docstore.Classify("create account", accountPath, err)
	}

	l.logger.InfoContext(ctx, "Account ready",
		log.FieldAccountID, out.ID,
		"total_balance", out.TotalBalance.String())
	return out, nil
}

// RecordIncome books an income entry. amount is a decimal string.
func (l *Ledger) RecordIncome(ctx context.Context, session core.Session, amount, description string) (core.Transaction, error) {
	return l.record(ctx, session, core.Income, amount, description)
}

// RecordExpense books an expense entry. amount is a decimal string.
func (l *Ledger) RecordExpense(ctx context.Context, session core.Session, amount, description string) (core.Transaction, error) {
	return l.record(ctx, session, core.Expense, amount, description)
}

func (l *Ledger) record(ctx context.Context, session core.Session, typ core.EntryType, rawAmount, description string) (core.Transaction, error) {
	if err := session.Validate(); err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return core.Transaction{}, err
	}
	description, err = entryDescription(typ, description)
	if err != nil {
		return core.Transaction{}, err
	}

	accountID := session.AccountID
	accountPath := core.AccountPath(accountID)
	transactions := core.CollectionPath(accountID, core.TransactionsCollection)

	for attempt := 1; ; attempt++ {
		var written core.Transaction
		err := l.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			doc, err := tx.Get(accountPath)
			if err != nil {
				return err
			}
			account := schema.DecodeAccount(doc)

			entry := core.Transaction{
				Type:        typ,
				Amount:      amount,
				Description: description,
				Timestamp:   l.now().UTC(),
			}
			booked, err := account.Apply(entry)
			if err != nil {
				return err
			}
			id, err := tx.Append(transactions, schema.TransactionFields(entry))
			if err != nil {
				return fmt.Errorf("append transaction: %w", err)
			}
			entry.ID = id

			if err := tx.Update(accountPath, schema.AggregateFields(booked)); err != nil {
				return fmt.Errorf("update aggregates: %w", err)
			}
			written = entry
			return nil
		})

		switch {
		case err == nil:
			l.metrics.LedgerCommitted(typ.String(), attempt)
			l.logger.InfoContext(ctx, "Ledger entry recorded",
				log.NewFields().
					WithAccount(accountID).
					WithEntry(typ.String(), amount.Cents).
					WithDocument(transactions, written.ID).
					ToSlice()...)
			return written, nil

		case errors.Is(err, docstore.ErrConflict):
			l.metrics.LedgerConflict()
			if attempt >= l.maxAttempts {
				err = &core.RemoteError{Op: "record " + typ.String(), Err: fmt.Errorf("gave up after %d attempts: %w", attempt, err)}
				l.fail(ctx, accountID, err)
				return core.Transaction{}, err
			}
			l.logger.DebugContext(ctx, "Ledger commit conflicted, retrying",
				log.FieldAccountID, accountID, log.FieldAttempt, attempt)
			if err := sleep(ctx, l.backoff(attempt)); err != nil {
				err = &core.RemoteError{Op: "record " + typ.String(), Err: err}
				l.fail(ctx, accountID, err)
				return core.Transaction{}, err
			}

		case errors.Is(err, core.ErrValidation):
			l.fail(ctx, accountID, err)
			return core.Transaction{}, err

		default:
			err = docstore.Classify("record "+typ.String(), accountPath, err)
			l.fail(ctx, accountID, err)
			return core.Transaction{}, err
		}
	}
}

func (l *Ledger) fail(ctx context.Context, accountID string, err error) {
	class := "remote"
	switch {
	case errors.Is(err, core.ErrNotFound):
		class = "not_found"
	case errors.Is(err, core.ErrValidation):
		class = "validation"
	}
	l.metrics.LedgerFailed(class)
	l.logger.LogError(ctx, "Failed to record ledger entry", err, log.OpCommit, log.NewFields().WithAccount(accountID))
}

func entryDescription(typ core.EntryType, description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		if typ == core.Income {
			return DefaultIncomeDescription, nil
		}
		return DefaultExpenseDescription, nil
	}
	if len(description) > maxDescriptionLen {
		return "", &core.ValidationError{Field: "description", Err: core.ErrDescriptionTooLong}
	}
	return description, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
