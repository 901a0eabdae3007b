// Package errs holds the error taxonomy shared by the ledger, the registry and
// the grant coordinator. Callers classify failures with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks a malformed uid, region, duration or amount.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks a lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientFunds marks a debit larger than the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// Invalid is shorthand for a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
