package ledger

import (
	"context"
	"strings"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	"pocketbook/internal/log"
	"pocketbook/internal/schema"
)

// TransferInput is an outbound payment as entered by the user.
type TransferInput struct {
	Recipient   string
	Amount      string
	Description string
}

// RecordTransfer appends a transfer to the account's transfer log. Transfers
// do not move the account balance.
func (l *Ledger) RecordTransfer(ctx context.Context, session core.Session, in TransferInput) (core.Transfer, error) {
	if err := session.Validate(); err != nil {
		return core.Transfer{}, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transfer{}, err
	}
	t := core.Transfer{
		Recipient:   strings.TrimSpace(in.Recipient),
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		Timestamp:   l.now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return core.Transfer{}, err
	}
	if len(t.Description) > maxDescriptionLen {
		return core.Transfer{}, &core.ValidationError{Field: "description", Err: core.ErrDescriptionTooLong}
	}

	p := core.CollectionPath(session.AccountID, core.TransfersCollection)
	id, err := l.store.Append(ctx, p, schema.TransferFields(t))
	if err != nil {
		return core.Transfer{}, docstore.Classify("record transfer", p, err)
	}
	t.ID = id

	l.logger.InfoContext(ctx, "Transfer recorded",
		log.NewFields().WithAccount(session.AccountID).WithDocument(p, id).
			WithEntry("transfer", amount.Cents).ToSlice()...)
	return t, nil
}

// ListTransfers streams the transfer log, newest first.
func (l *Ledger) ListTransfers(ctx context.Context, session core.Session) (*docstore.Stream[[]core.Transfer], error) {
	return watchCollection(ctx, l, session, core.TransfersCollection, schema.DecodeTransfer,
		func(a, b core.Transfer) int {
			if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
				return c
			}
			return strings.Compare(a.ID, b.ID)
		})
}

// InvestmentInput is an investment purchase. A zero Date means now.
type InvestmentInput struct {
	Asset       string
	Amount      string
	Description string
	Date        time.Time
}

// RecordInvestment appends to the investment log. Like transfers,
// investments are tracked separately from the balance.
func (l *Ledger) RecordInvestment(ctx context.Context, session core.Session, in InvestmentInput) (core.Investment, error) {
	if err := session.Validate(); err != nil {
		return core.Investment{}, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Investment{}, err
	}
	asset := strings.TrimSpace(in.Asset)
	if asset == "" {
		return core.Investment{}, &core.ValidationError{Field: "asset", Err: core.ErrEmptyAsset}
	}
	date := in.Date
	if date.IsZero() {
		date = l.now()
	}
	inv := core.Investment{
		Asset:       asset,
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		Date:        date.UTC(),
	}

	p := core.CollectionPath(session.AccountID, core.InvestmentsCollection)
	id, err := l.store.Append(ctx, p, schema.InvestmentFields(inv))
	if err != nil {
		return core.Investment{}, docstore.Classify("record investment", p, err)
	}
	inv.ID = id

	l.logger.InfoContext(ctx, "Investment recorded",
		log.NewFields().WithAccount(session.AccountID).WithDocument(p, id).
			WithEntry("investment", amount.Cents).ToSlice()...)
	return inv, nil
}

// ListInvestments streams the investment log, most recent date first.
func (l *Ledger) ListInvestments(ctx context.Context, session core.Session) (*docstore.Stream[[]core.Investment], error) {
	return watchCollection(ctx, l, session, core.InvestmentsCollection, schema.DecodeInvestment,
		func(a, b core.Investment) int {
			if c := b.Date.Compare(a.Date); c != 0 {
				return c
			}
			return strings.Compare(a.ID, b.ID)
		})
}
