package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pocketbook/internal/core"
	ports "pocketbook/internal/sheets"
)

var (
	_ ports.TransactionExporter = (*Store)(nil)
	_ ports.CategoryReader      = (*Store)(nil)
)

// Row is one exported transaction.
type Row struct {
	Ref         string
	AccountID   string
	Transaction core.Transaction
}

// Store is an in-process sheet. It backs tests and local runs without
// Google credentials.
type Store struct {
	mu      sync.Mutex
	expense []string
	income  []string
	rows    []Row
	failure error
}

func New(expense, income []string) *Store {
	return &Store{expense: dedupe(expense), income: dedupe(income)}
}

// NewFromFiles seeds the catalogs from seed_expense_categories.txt and
// seed_income_categories.txt in base, falling back to the built-in lists.
func NewFromFiles(base string) *Store {
	expense := readLines(filepath.Join(base, "seed_expense_categories.txt"))
	income := readLines(filepath.Join(base, "seed_income_categories.txt"))
	if len(expense) == 0 {
		expense = core.Categories(core.Expense)
	}
	if len(income) == 0 {
		income = core.Categories(core.Income)
	}
	return New(expense, income)
}

// Fail makes every following Export return err. A nil err clears it.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Export records the row and returns a synthetic row reference.
func (s *Store) Export(_ context.Context, accountID string, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", fmt.Errorf("transaction has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return "", s.failure
	}
	ref := fmt.Sprintf("mem:%d", len(s.rows)+1)
	s.rows = append(s.rows, Row{Ref: ref, AccountID: accountID, Transaction: tx})
	return ref, nil
}

func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.rows...)
}

func (s *Store) Categories(_ context.Context, t core.EntryType) ([]string, error) {
	if !t.Valid() {
		return nil, &core.ValidationError{Field: "type", Err: core.ErrInvalidType}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == core.Income {
		return append([]string(nil), s.income...), nil
	}
	return append([]string(nil), s.expense...), nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe trims, drops blanks and duplicates, and keeps input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
