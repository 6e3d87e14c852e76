package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain taxonomy. The handler layer maps these
// to HTTP status codes; none of them are fatal to the process.
var (
	ErrUserNotFound       = errors.New("user_not_found")
	ErrInsufficientFunds  = errors.New("insufficient_funds")
	ErrInsufficientShares = errors.New("insufficient_shares")
	ErrNoSuchHolding      = errors.New("no_such_holding")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrPasswordMismatch   = errors.New("password_mismatch")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrSymbolNotFound     = errors.New("symbol_not_found")
	ErrQuoteNotFound      = errors.New("quote_not_found")
	ErrQuoteUnavailable   = errors.New("quote_unavailable")
)

// ValidationError reports malformed input: a non-positive quantity, a
// non-positive price, an empty symbol.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PersistenceError wraps an underlying store failure. The failed
// operation is rolled back, so no partial mutation is ever visible.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// domainErr reports whether err is part of the domain taxonomy, as
// opposed to an unexpected store failure.
func domainErr(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}
	for _, sentinel := range []error{
		ErrUserNotFound, ErrInsufficientFunds, ErrInsufficientShares,
		ErrNoSuchHolding, ErrUsernameTaken, ErrPasswordMismatch,
		ErrInvalidCredentials, ErrSymbolNotFound, ErrQuoteNotFound,
		ErrQuoteUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// wrapErr passes domain errors through untouched and wraps anything
// else as a PersistenceError for op.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if domainErr(err) {
		return err
	}
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
