package core

import (
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

// DateLayout is the canonical encoding of calendar dates. It sorts
// lexicographically in chronological order.
const DateLayout = "2006-01-02"

type (
	EntryType string

	Money struct {
		Cents int64
	}

	// Session carries the resolved identity every core operation acts for.
	Session struct {
		AccountID string
	}

	Account struct {
		ID             string
		InitialBalance Money
		TotalBalance   Money
		Income         Money
		Expense        Money
	}

	// AccountSnapshot is the live view of an account's aggregates.
	AccountSnapshot struct {
		AccountID    string
		TotalBalance Money
		Income       Money
		Expense      Money
		Version      int64
	}

	Transaction struct {
		ID          string
		Type        EntryType
		Amount      Money
		Description string
		Timestamp   time.Time
	}

	ScheduledPayment struct {
		ID          string
		Date        string // YYYY-MM-DD
		Amount      Money
		Description string
		Type        EntryType
		Category    string
		CreatedAt   time.Time
	}

	Transfer struct {
		ID          string
		Recipient   string
		Amount      Money
		Description string
		Timestamp   time.Time
	}

	Investment struct {
		ID          string
		Asset       string
		Amount      Money
		Description string
		Date        time.Time
	}
)

// Default category catalogs offered to the scheduling UI.
var (
	ExpenseCategories = []string{
		"Rent", "Electricity Bill", "Water Bill", "Gas Bill", "Groceries",
		"Transport", "Entertainment", "Health", "Education", "Other Expenses",
	}
	IncomeCategories = []string{
		"Salary", "Investment Income", "Rental Income", "Freelance", "Gift",
		"Scholarship", "Pension", "Side Income", "Refund", "Other Income",
	}
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

func (t EntryType) String() string {
	return string(t)
}

// ParseEntryType accepts "income" or "expense" in any case.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	return t, nil
}

// Categories returns the default catalog for t.
func Categories(t EntryType) []string {
	if t == Income {
		return append([]string(nil), IncomeCategories...)
	}
	return append([]string(nil), ExpenseCategories...)
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.AccountID) == "" {
		return &ValidationError{Field: "account", Err: ErrMissingAccount}
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// CheckedAdd is Add that reports false instead of wrapping.
func (m Money) CheckedAdd(o Money) (Money, bool) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, false
	}
	return Money{Cents: sum}, true
}

// CheckedSub is Sub that reports false instead of wrapping.
func (m Money) CheckedSub(o Money) (Money, bool) {
	diff := m.Cents - o.Cents
	if (o.Cents > 0 && diff > m.Cents) || (o.Cents < 0 && diff < m.Cents) {
		return Money{}, false
	}
	return Money{Cents: diff}, true
}

// Snapshot projects the aggregate fields of the account.
func (a Account) Snapshot(version int64) AccountSnapshot {
	return AccountSnapshot{
		AccountID:    a.ID,
		TotalBalance: a.TotalBalance,
		Income:       a.Income,
		Expense:      a.Expense,
		Version:      version,
	}
}

// Apply returns the account after booking tx. It fails with a
// *ValidationError when an aggregate would leave the int64 cents range.
func (a Account) Apply(tx Transaction) (Account, error) {
	var okFlow, okTotal bool
	switch tx.Type {
	case Income:
		a.Income, okFlow = a.Income.CheckedAdd(tx.Amount)
		a.TotalBalance, okTotal = a.TotalBalance.CheckedAdd(tx.Amount)
	case Expense:
		a.Expense, okFlow = a.Expense.CheckedAdd(tx.Amount)
		a.TotalBalance, okTotal = a.TotalBalance.CheckedSub(tx.Amount)
	default:
		return a, &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if !okFlow || !okTotal {
		return Account{}, &ValidationError{Field: "amount", Err: ErrAmountOverflow}
	}
	return a, nil
}

// ParseDate validates a YYYY-MM-DD date and returns it in canonical form.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(DateLayout), nil
}

func (p ScheduledPayment) Validate() error {
	if _, err := ParseDate(p.Date); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if err := p.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if strings.TrimSpace(p.Description) == "" {
		return &ValidationError{Field: "description", Err: ErrEmptyDescription}
	}
	if len(p.Description) > 200 {
		return &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
	}
	if !p.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if strings.TrimSpace(p.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	return nil
}

func (t Transfer) Validate() error {
	if strings.TrimSpace(t.Recipient) == "" {
		return &ValidationError{Field: "recipient", Err: ErrEmptyRecipient}
	}
	if err := t.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	return nil
}

// Record accessors used by the category aggregator.
func (p ScheduledPayment) RecordType() EntryType  { return p.Type }
func (p ScheduledPayment) RecordCategory() string { return p.Category }
func (p ScheduledPayment) RecordAmount() Money    { return p.Amount }
