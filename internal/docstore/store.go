// Package docstore defines the remote document store contract the core
// depends on: point reads, appends, merges, optimistic transactions and
// live subscriptions that deliver an initial snapshot followed by change
// batches in commit order.
package docstore

import "context"

// Fields is the payload of a document. Values are strings, bools, int64
// counters or nested maps; timestamps are RFC 3339 strings.
type Fields map[string]any

type Document struct {
	ID      string
	Path    string
	Fields  Fields
	Version int64
}

// ChangeKind classifies one document change inside a batch.
type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Removed  ChangeKind = "removed"
)

// Change is a single committed document mutation.
type Change struct {
	Kind       ChangeKind
	Collection string
	Doc        Document
}

// Batch is one delivery to a subscriber. The first batch of every
// subscription is the snapshot: every existing document appears in Added.
type Batch struct {
	Path     string
	Snapshot bool
	Added    []Document
	Modified []Document
	Removed  []Document
}

func (b Batch) Len() int {
	return len(b.Added) + len(b.Modified) + len(b.Removed)
}

// Store is a compliant remote document store.
//
// Paths alternate collection and document segments: "accounts/{id}" is a
// document, "accounts/{id}/transactions" a collection.
type Store interface {
	Get(ctx context.Context, docPath string) (Document, error)
	// Append creates a document with a generated id and returns the id.
	Append(ctx context.Context, collectionPath string, fields Fields) (string, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, docPath string, fields Fields) error
	// Set creates or replaces a document.
	Set(ctx context.Context, docPath string, fields Fields) error
	Delete(ctx context.Context, docPath string) error
	// RunTransaction runs fn once. Writes staged on tx are committed
	// atomically when fn returns nil and discarded otherwise. If a document
	// read through tx changed before commit the result is ErrConflict and
	// nothing is written; callers decide whether to retry.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Subscribe watches a collection or a single document. Cancelling ctx
	// disposes the subscription.
	Subscribe(ctx context.Context, path string) (*Subscription, error)
	Close() error
}

// Tx stages reads and writes of one transaction. Reads observe committed
// state only.
type Tx interface {
	Get(docPath string) (Document, error)
	Append(collectionPath string, fields Fields) (string, error)
	Update(docPath string, fields Fields) error
	Set(docPath string, fields Fields) error
}
