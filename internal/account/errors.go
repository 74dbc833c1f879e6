package account

import (
	"errors"
	"fmt"
)

// Common errors for cloud account operations.
var (
	// ErrUnauthorized indicates the credentials or token were rejected.
	ErrUnauthorized = errors.New("account credentials rejected")

	// ErrUnavailable indicates the account API is unreachable or failing.
	ErrUnavailable = errors.New("account service unavailable")

	// ErrConflict indicates the account rejected a mutation, typically
	// because the record changed concurrently.
	ErrConflict = errors.New("record conflict")

	// ErrNotFound indicates a record id is unknown to the account.
	ErrNotFound = errors.New("record not found")
)

// AccountError wraps an error with the failing operation and entity context.
type AccountError struct {
	Operation string
	Key       string
	Err       error
}

func (e *AccountError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("account %s %s: %v", e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("account %s: %v", e.Operation, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}

// wrapError wraps an error with operation context.
func wrapError(operation, key string, err error) error {
	if err == nil {
		return nil
	}
	return &AccountError{Operation: operation, Key: key, Err: err}
}

// IsUnauthorized returns true if the error indicates rejected credentials.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsUnavailable returns true if the error indicates the service is unreachable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsConflict returns true if the error indicates a concurrent-modification
// conflict on a single record.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates an unknown record id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
