// Package schema maps domain records to document fields and back.
//
// Amounts are stored as integer cents under "*Cents" keys, instants as
// RFC 3339 strings and calendar dates as YYYY-MM-DD strings.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
)

// Document field names.
const (
	FieldTotalBalance   = "totalBalanceCents"
	FieldIncome         = "incomeCents"
	FieldExpense        = "expenseCents"
	FieldInitialBalance = "initialBalanceCents"

	FieldType        = "type"
	FieldAmount      = "amountCents"
	FieldDescription = "description"
	FieldTimestamp   = "timestamp"
	FieldDate        = "date"
	FieldCategory    = "category"
	FieldCreatedAt   = "createdAt"
	FieldRecipient   = "recipient"
	FieldAsset       = "asset"

	FieldRef        = "ref"
	FieldExportedAt = "exportedAt"
)

var ErrMalformed = errors.New("malformed document")

func malformed(doc docstore.Document, field string) error {
	return fmt.Errorf("%w: %s: field %q", ErrMalformed, doc.Path, field)
}

func money(f docstore.Fields, key string) core.Money {
	n, _ := f.Int64(key)
	return core.Money{Cents: n}
}

func positive(doc docstore.Document, key string) (core.Money, error) {
	n, ok := doc.Fields.Int64(key)
	if !ok || n <= 0 {
		return core.Money{}, malformed(doc, key)
	}
	return core.Money{Cents: n}, nil
}

// AccountFields encodes every persisted field of a.
func AccountFields(a core.Account) docstore.Fields {
	f := AggregateFields(a)
	f[FieldInitialBalance] = a.InitialBalance.Cents
	return f
}

// AggregateFields encodes the fields the ledger rewrites on each entry.
func AggregateFields(a core.Account) docstore.Fields {
	return docstore.Fields{
		FieldTotalBalance: a.TotalBalance.Cents,
		FieldIncome:       a.Income.Cents,
		FieldExpense:      a.Expense.Cents,
	}
}

// DecodeAccount reads an account; absent aggregates count as zero.
func DecodeAccount(doc docstore.Document) core.Account {
	return core.Account{
		ID:             doc.ID,
		InitialBalance: money(doc.Fields, FieldInitialBalance),
		TotalBalance:   money(doc.Fields, FieldTotalBalance),
		Income:         money(doc.Fields, FieldIncome),
		Expense:        money(doc.Fields, FieldExpense),
	}
}

func TransactionFields(t core.Transaction) docstore.Fields {
	return docstore.Fields{
		FieldType:        t.Type.String(),
		FieldAmount:      t.Amount.Cents,
		FieldDescription: t.Description,
		FieldTimestamp:   docstore.FormatTime(t.Timestamp),
	}
}

func DecodeTransaction(doc docstore.Document) (core.Transaction, error) {
	typ := core.EntryType(doc.Fields.String(FieldType))
	if !typ.Valid() {
		return core.Transaction{}, malformed(doc, FieldType)
	}
	amount, err := positive(doc, FieldAmount)
	if err != nil {
		return core.Transaction{}, err
	}
	ts, _ := doc.Fields.Time(FieldTimestamp)
	return core.Transaction{
		ID:          doc.ID,
		Type:        typ,
		Amount:      amount,
		Description: doc.Fields.String(FieldDescription),
		Timestamp:   ts,
	}, nil
}

func PaymentFields(p core.ScheduledPayment) docstore.Fields {
	return docstore.Fields{
		FieldDate:        p.Date,
		FieldAmount:      p.Amount.Cents,
		FieldDescription: p.Description,
		FieldType:        p.Type.String(),
		FieldCategory:    p.Category,
		FieldCreatedAt:   docstore.FormatTime(p.CreatedAt),
	}
}

// DecodePayment reads a scheduled payment. The date is returned in canonical
// YYYY-MM-DD form so callers can compare dates as strings; records from other
// clients whose date does not parse are malformed.
func DecodePayment(doc docstore.Document) (core.ScheduledPayment, error) {
	typ := core.EntryType(strings.ToLower(doc.Fields.String(FieldType)))
	if !typ.Valid() {
		return core.ScheduledPayment{}, malformed(doc, FieldType)
	}
	amount, err := positive(doc, FieldAmount)
	if err != nil {
		return core.ScheduledPayment{}, err
	}
	date, err := core.ParseDate(doc.Fields.String(FieldDate))
	if err != nil {
		return core.ScheduledPayment{}, malformed(doc, FieldDate)
	}
	created, _ := doc.Fields.Time(FieldCreatedAt)
	return core.ScheduledPayment{
		ID:          doc.ID,
		Date:        date,
		Amount:      amount,
		Description: doc.Fields.String(FieldDescription),
		Type:        typ,
		Category:    doc.Fields.String(FieldCategory),
		CreatedAt:   created,
	}, nil
}

func TransferFields(t core.Transfer) docstore.Fields {
	return docstore.Fields{
		FieldRecipient:   t.Recipient,
		FieldAmount:      t.Amount.Cents,
		FieldDescription: t.Description,
		FieldTimestamp:   docstore.FormatTime(t.Timestamp),
	}
}

func DecodeTransfer(doc docstore.Document) (core.Transfer, error) {
	amount, err := positive(doc, FieldAmount)
	if err != nil {
		return core.Transfer{}, err
	}
	ts, _ := doc.Fields.Time(FieldTimestamp)
	return core.Transfer{
		ID:          doc.ID,
		Recipient:   doc.Fields.String(FieldRecipient),
		Amount:      amount,
		Description: doc.Fields.String(FieldDescription),
		Timestamp:   ts,
	}, nil
}

func InvestmentFields(i core.Investment) docstore.Fields {
	return docstore.Fields{
		FieldAsset:       i.Asset,
		FieldAmount:      i.Amount.Cents,
		FieldDescription: i.Description,
		FieldDate:        docstore.FormatTime(i.Date),
	}
}

func DecodeInvestment(doc docstore.Document) (core.Investment, error) {
	amount, err := positive(doc, FieldAmount)
	if err != nil {
		return core.Investment{}, err
	}
	date, _ := doc.Fields.Time(FieldDate)
	return core.Investment{
		ID:          doc.ID,
		Asset:       doc.Fields.String(FieldAsset),
		Amount:      amount,
		Description: doc.Fields.String(FieldDescription),
		Date:        date,
	}, nil
}

// ExportMarker records that a transaction was mirrored to a spreadsheet.
type ExportMarker struct {
	TransactionID string
	Ref           string
	ExportedAt    time.Time
}

func ExportMarkerFields(m ExportMarker) docstore.Fields {
	return docstore.Fields{
		FieldRef:        m.Ref,
		FieldExportedAt: docstore.FormatTime(m.ExportedAt),
	}
}

func DecodeExportMarker(doc docstore.Document) ExportMarker {
	at, _ := doc.Fields.Time(FieldExportedAt)
	return ExportMarker{TransactionID: doc.ID, Ref: doc.Fields.String(FieldRef), ExportedAt: at}
}
