package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/notitia/internal/store"
)

// ErrSubscriptionClosed is wrapped by every error returned from a closed
// Subscription or Database.
var ErrSubscriptionClosed = errors.New("subscription closed")

// ErrDatabaseClosed is the close cause of subscriptions closed by
// Database.Close and is wrapped by calls made after it.
var ErrDatabaseClosed = errors.New("database closed")

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeConnection indicates storage is unreachable. Every subscription
	// is closed when one is observed.
	CodeConnection ErrorCode = "CONNECTION"

	// CodeQueryExecution indicates the adapter failed to run a statement.
	CodeQueryExecution ErrorCode = "QUERY_EXECUTION"

	// CodeZeroRows indicates a One or First query matched nothing.
	CodeZeroRows ErrorCode = "ZERO_ROWS"

	// CodeMultipleRows indicates a One query matched more than one row.
	CodeMultipleRows ErrorCode = "MULTIPLE_ROWS"

	// CodeMutationConflict indicates a primary-key or unique violation,
	// or an insert into a One/First subscription that already holds a row.
	CodeMutationConflict ErrorCode = "MUTATION_CONFLICT"

	// CodeSubscriptionClosed indicates the subscription or database is closed.
	CodeSubscriptionClosed ErrorCode = "SUBSCRIPTION_CLOSED"

	// CodeInvalidSpec indicates a spec failed schema validation.
	CodeInvalidSpec ErrorCode = "INVALID_SPEC"
)

// Error is returned by Database and Subscription methods.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Table is the table involved, if any.
	Table string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Table != "" {
		msg += fmt.Sprintf(" (table=%s)", e.Table)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsZeroRows returns true if a One or First query matched nothing.
func IsZeroRows(err error) bool { return hasCode(err, CodeZeroRows) }

// IsMultipleRows returns true if a One query matched several rows.
func IsMultipleRows(err error) bool { return hasCode(err, CodeMultipleRows) }

// IsMutationConflict returns true for constraint violations and for
// conflicts delivered through Subscription.Recv.
func IsMutationConflict(err error) bool { return hasCode(err, CodeMutationConflict) }

// IsConnectionError returns true if storage was unreachable.
func IsConnectionError(err error) bool { return hasCode(err, CodeConnection) }

// IsClosed returns true if the subscription or database was closed.
func IsClosed(err error) bool {
	return hasCode(err, CodeSubscriptionClosed) || errors.Is(err, ErrSubscriptionClosed)
}

// IsInvalidSpec returns true if a spec failed validation.
func IsInvalidSpec(err error) bool { return hasCode(err, CodeInvalidSpec) }

func newClosedError(table string, cause error) *Error {
	err := ErrSubscriptionClosed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrSubscriptionClosed, cause)
	}
	return &Error{
		Code:    CodeSubscriptionClosed,
		Message: "subscription closed",
		Table:   table,
		Err:     err,
	}
}

func newCardinalityError(code ErrorCode, table string, got int) *Error {
	msg := "query returned no rows"
	if code == CodeMultipleRows {
		msg = fmt.Sprintf("query returned at least %d rows, expected exactly one", got)
	}
	return &Error{Code: code, Message: msg, Table: table}
}

// adapterError classifies an adapter failure.
func adapterError(op, table string, err error) *Error {
	code := CodeQueryExecution
	switch {
	case store.IsConnection(err):
		code = CodeConnection
	case store.IsConflict(err):
		code = CodeMutationConflict
	}
	return &Error{Code: code, Message: op + " failed", Table: table, Err: err}
}
