package google

import (
	"errors"
	"fmt"
	"strings"

	"pocketbook/internal/core"
)

// transactionRow lays out tx as Date, Time, Type, Description, Amount,
// Transaction ID, Account.
func transactionRow(accountID string, tx core.Transaction) ([]any, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, core.ErrMissingAccount
	}
	if tx.ID == "" {
		return nil, errors.New("transaction has no id")
	}
	if !tx.Type.Valid() {
		return nil, core.ErrInvalidType
	}
	if err := tx.Amount.Validate(); err != nil {
		return nil, err
	}
	ts := tx.Timestamp.UTC()
	return []any{
		ts.Format(core.DateLayout),
		ts.Format("15:04:05"),
		tx.Type.String(),
		tx.Description,
		tx.Amount.String(),
		tx.ID,
		accountID,
	}, nil
}

// firstColumn returns the trimmed first cell of each row, skipping blanks
// and "#" comments and dropping duplicates while preserving order.
func firstColumn(values [][]any) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || strings.HasPrefix(v, "#") {
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
