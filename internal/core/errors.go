package core

import (
	"errors"
	"fmt"
)

// Error classes. Match with errors.Is; inspect details with errors.As.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrRemote     = errors.New("remote error")
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrAmountOverflow     = errors.New("amount out of range")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidDate        = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidType        = errors.New("invalid type, expected income or expense")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyRecipient     = errors.New("empty recipient")
	ErrEmptyAsset         = errors.New("empty asset")
	ErrMissingAccount     = errors.New("missing account id")
)

// ValidationError reports malformed or missing input. It is raised before
// any store access and is never worth retrying.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error        { return e.Err }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a referenced document that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string        { return fmt.Sprintf("not found: %s", e.Path) }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RemoteError wraps connectivity, permission or store-side failures.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string        { return fmt.Sprintf("remote %s: %v", e.Op, e.Err) }
func (e *RemoteError) Unwrap() error        { return e.Err }
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }
