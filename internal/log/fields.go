package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldAccountID   = "account_id"
	FieldAmountCents = "amount_cents"
	FieldEntryType   = "entry_type"
	FieldCollection  = "collection"
	FieldDocID       = "doc_id"
	FieldPath        = "path"
	FieldVersion     = "version"
	FieldAttempt     = "attempt"
	FieldStream      = "stream"
	FieldCount       = "count"
	FieldCategory    = "category"
	FieldDate        = "date"
	FieldSheetsRef   = "sheets_ref"
	FieldOrigin      = "origin"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentLedger   = "ledger"
	ComponentCalendar = "calendar"
	ComponentBudget   = "budget"
	ComponentNotify   = "notify"
	ComponentStore    = "store"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentCache    = "cache"
	ComponentMetrics  = "metrics"
	ComponentBackend  = "backend"
	ComponentCLI      = "cli"
	ComponentHTTP     = "http"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpAppend    = "append"
	OpCommit    = "commit"
	OpSubscribe = "subscribe"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpExport    = "export"
	OpValidate  = "validate"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAccount adds the account id
func (f LogFields) WithAccount(accountID string) LogFields {
	f[FieldAccountID] = accountID
	return f
}

// WithEntry adds ledger entry fields
func (f LogFields) WithEntry(entryType string, amountCents int64) LogFields {
	f[FieldEntryType] = entryType
	f[FieldAmountCents] = amountCents
	return f
}

// WithDocument adds document location fields
func (f LogFields) WithDocument(collection, docID string) LogFields {
	f[FieldCollection] = collection
	f[FieldDocID] = docID
	return f
}

// WithStream adds the stream name
func (f LogFields) WithStream(stream string) LogFields {
	f[FieldStream] = stream
	return f
}

// ToSlice converts LogFields to a slice for slog, keys sorted.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
