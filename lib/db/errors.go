package db

import "errors"

// Engine level errors. Backends return (or wrap) these so callers can
// match them with errors.Is regardless of the implementation.
var (
	ErrAborted             = errors.New("transaction aborted")
	ErrTransactionInactive = errors.New("transaction is not active")
	ErrReadOnly            = errors.New("transaction is read-only")
	ErrNotFound            = errors.New("collection not found")
	ErrConstraint          = errors.New("constraint violated")
	ErrVersion             = errors.New("requested version is lower than the stored version")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrInvalidKey          = errors.New("invalid key")
	ErrInvalidState        = errors.New("invalid state")
	ErrClosed              = errors.New("engine or connection closed")
	ErrCallbackPanic       = errors.New("callback panicked")
)
