/*
errors.go - Error types for the ledger core

ERROR CATEGORIES:
  1. Not found - the referenced item, stock batch or purchase is absent
  2. Validation - a request is rejected before any store mutation
  3. Conflict - a transient store failure; safe to retry after re-reading
  4. Stock - strict-stock mode refused an oversell

USAGE:
  if errors.Is(err, ledger.ErrNotFound) { ... }   // any missing entity
  var nf *ledger.ItemNotFoundError
  if errors.As(err, &nf) { ... nf.ItemID ... }     // purchase path detail
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the base of every missing-entity error.
	ErrNotFound = errors.New("not found")

	ErrItemNotFound     = fmt.Errorf("item %w", ErrNotFound)
	ErrStockNotFound    = fmt.Errorf("stock %w", ErrNotFound)
	ErrPurchaseNotFound = fmt.Errorf("purchase %w", ErrNotFound)

	// ErrValidation is returned for missing or invalid input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is a transient store failure (lock contention, a
	// concurrent delete racing a write). The operation may be retried.
	ErrConflict = errors.New("store conflict")

	// ErrUnauthenticated is returned when no caller is bound to the context.
	ErrUnauthenticated = errors.New("no authenticated caller")

	// ErrInsufficientStock is only returned when strict stock is enabled.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidWindow is returned when a window ends before it starts.
	ErrInvalidWindow = fmt.Errorf("%w: window ends before it starts", ErrValidation)
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ItemNotFoundError is raised by the purchase path and carries the item
// that aborted the purchase.
type ItemNotFoundError struct {
	ItemID ItemID
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %d not found", e.ItemID)
}

func (e *ItemNotFoundError) Unwrap() error { return ErrItemNotFound }

// InsufficientStockError details a refused oversell.
type InsufficientStockError struct {
	ItemID    ItemID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: available %d, requested %d",
		e.ItemID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
