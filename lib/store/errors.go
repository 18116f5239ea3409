package store

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and the underlying cause (if any).
//
// errors.Is matches an Error against another *Error with the same code and
// against every error in the chain of Err, so callers can test for both
// store.ErrTransaction and e.g. db.ErrQuotaExceeded.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
	Err  error   // The cause (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("KVStoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// wrapError creates a new Error with the given code, message and cause.
func wrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// Reference values for errors.Is
var (
	ErrConnection       = NewError(RetCConnectionError, "connection")
	ErrTransaction      = NewError(RetCTransactionError, "transaction")
	ErrEncoding         = NewError(RetCEncodingError, "encoding")
	ErrInvalidOperation = NewError(RetCInvalidOperation, "invalid operation")
)

// IsRetryable reports whether repeating the failed operation may succeed.
// Only transaction errors qualify: the connection of an accessor is memoized, so a
// connection error stays, and encoding errors are deterministic.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransaction)
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCConnectionError                     // 4: The database could not be opened or provisioned.
	RetCTransactionError                    // 5: The transaction failed or was aborted.
	RetCEncodingError                       // 6: A value could not be encoded or decoded.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCConnectionError:
		return "ConnectionError"
	case RetCTransactionError:
		return "TransactionError"
	case RetCEncodingError:
		return "EncodingError"
	default:
		return "Unknown"
	}
}
