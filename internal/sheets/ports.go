package sheets

import (
	"context"

	"pocketbook/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter mirrors one booked transaction to an external
	// sheet and returns a reference to the written row.
	TransactionExporter interface {
		Export(ctx context.Context, accountID string, tx core.Transaction) (rowRef string, err error)
	}

	// CategoryReader lists the category catalog for an entry type.
	CategoryReader interface {
		Categories(ctx context.Context, t core.EntryType) ([]string, error)
	}
)
