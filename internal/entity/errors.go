package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound means the product id is no longer in the catalog.
	ErrProductNotFound = errors.New("product not found")

	// ErrEmptyCart rejects checkout/commit on a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrDiscountInvalid covers unknown, inactive and expired codes alike.
	ErrDiscountInvalid = errors.New("discount code invalid")

	// ErrSessionNotFound means no session exists for the chat id.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError rejects one malformed conversation input. The state machine
// stays in the same state and the boundary re-prompts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientStockError is the advisory add-to-cart check against the cached
// stock value. The authoritative gate is the commit-time CAS loop.
type InsufficientStockError struct {
	ProductID string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available", e.ProductID, e.Available)
}

// StockConflictError is the authoritative commit-time failure: the live stock
// cell could not cover the requested quantity, or concurrent writers kept
// winning the conditional update until retries ran out.
type StockConflictError struct {
	ProductID string
	Available int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock conflict on %s: %d available", e.ProductID, e.Available)
}

// ExternalServiceError wraps a failed call to the spreadsheet, broker or
// payment provider. Hard failure: surfaced immediately, never retried by the
// CAS loop (transport retries live in the adapter).
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// PaymentError keeps the session in REVIEW/COMMITTING until the invoice is
// resolved or the user cancels.
type PaymentError struct {
	Reference string
	Err       error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s: %v", e.Reference, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }
