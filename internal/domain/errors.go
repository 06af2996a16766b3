package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// The ledger reports failures through exactly five error types. Callers inspect
// them with errors.As; each carries only the context its kind needs.

// ValidationError reports malformed or out-of-range input. Limit is set when the
// rule has a numeric bound the caller should show (minimum, remaining capacity).
type ValidationError struct {
	Field   string
	Message string
	Limit   *decimal.Decimal
}

func (e *ValidationError) Error() string { return e.Message }

// InvalidStateError reports an operation the listing's lifecycle state forbids.
type InvalidStateError struct {
	Status  ListingStatus
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

// NotFoundError reports a missing listing, investment or user.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

// AuthorizationError reports a principal without rights over the target, or no
// principal at all.
type AuthorizationError struct {
	Unauthenticated bool
	Message         string
}

func (e *AuthorizationError) Error() string { return e.Message }

// ConflictError reports that admission could not be serialized within the retry
// budget. The whole request may be retried.
type ConflictError struct {
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Listing is busy, please retry (gave up after %d attempts).", e.Attempts)
}

// ErrUnauthenticated is returned when an operation needs a principal and has none.
func ErrUnauthenticated() error {
	return &AuthorizationError{Unauthenticated: true, Message: "Authentication required."}
}

// ErrNotOwner is returned when the principal does not own the listing.
func ErrNotOwner() error {
	return &AuthorizationError{Message: "Only the seller can modify this listing."}
}

// ListingNotFound is the NotFoundError for a listing id.
func ListingNotFound(id fmt.Stringer) error {
	return &NotFoundError{Entity: "Listing", ID: id.String()}
}
