package docstore

import (
	"errors"

	"pocketbook/internal/core"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrConflict     = errors.New("transaction conflict")
	ErrClosed       = errors.New("store closed")
	ErrSlowConsumer = errors.New("subscriber fell behind")
	ErrInvalidPath  = errors.New("invalid document path")
)

// Classify maps a store error onto the core error taxonomy. Errors that
// already carry a core class pass through unchanged.
func Classify(op, path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrRemote):
		return err
	case errors.Is(err, ErrNotFound):
		return &core.NotFoundError{Path: path}
	default:
		return &core.RemoteError{Op: op, Err: err}
	}
}
