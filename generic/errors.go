/*
errors.go - Centralized error types for the front-desk engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context; the HTTP
  layer maps them to status codes with IsClientError/IsNotFound/IsConflict.

ERROR CATEGORIES:
  1. Lookup errors - Referenced member, package, product or sale is missing
  2. Validation errors - Totals and payment splits that do not reconcile
  3. State errors - Cash register sessions and stock levels
  4. Access errors - Check-in denials and cross-tenant access

NOTE:
  Unparseable dates are not an error anywhere in the calculators. They are
  treated as "no date" and fail closed (EXPIRED / unchanged date).

SEE ALSO:
  - payment/split.go: Produces SplitMismatchError
  - membership/gate.go: Produces CheckInDeniedError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrMemberNotFound  = errors.New("member not found")
	ErrPackageNotFound = errors.New("package not found")
	ErrProductNotFound = errors.New("product not found")
	ErrSaleNotFound    = errors.New("sale not found")
	ErrSessionNotFound = errors.New("cash session not found")

	// ErrSplitMismatch is returned when tendered payments do not add up to the total.
	ErrSplitMismatch = errors.New("la suma de pagos no coincide con el total")

	// ErrNegativeTotal is returned when discounts exceed price plus fees.
	ErrNegativeTotal = errors.New("total cannot be negative")

	// ErrNoOpenSession is returned when money is taken with no cash session open.
	ErrNoOpenSession = errors.New("no hay corte de caja abierto")

	ErrSessionAlreadyOpen = errors.New("cash session already open")
	ErrSessionClosed      = errors.New("cash session already closed")

	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrCheckInDenied is returned when the eligibility gate rejects a member.
	ErrCheckInDenied = errors.New("check-in denied")

	// ErrDuplicateIdempotencyKey is returned when a write with the same key
	// already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	ErrAlreadyReversed = errors.New("sale already cancelled")

	// ErrForbiddenTenant is returned when a non-admin names another tenant.
	ErrForbiddenTenant = errors.New("tenant not accessible")

	ErrInvalidPackage = errors.New("invalid package definition")

	// ErrInvalidAmount is returned for zero or negative manual cash movements.
	ErrInvalidAmount = errors.New("amount must be positive")

	ErrInvalidDate = errors.New("invalid date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SplitMismatchError provides details about a payment split that does not reconcile.
type SplitMismatchError struct {
	Expected   Money
	Sum        Money
	Difference Money
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("%s: total %s, pagos %s, diferencia %s",
		ErrSplitMismatch.Error(), e.Expected, e.Sum, e.Difference)
}

func (e *SplitMismatchError) Unwrap() error { return ErrSplitMismatch }

// CheckInDeniedError carries the human-readable reason shown at the front desk.
type CheckInDeniedError struct {
	MemberID MemberID
	Reason   string
}

func (e *CheckInDeniedError) Error() string {
	return fmt.Sprintf("check-in denied for %s: %s", e.MemberID, e.Reason)
}

func (e *CheckInDeniedError) Unwrap() error { return ErrCheckInDenied }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID ProductID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSplitMismatch) ||
		errors.Is(err, ErrNegativeTotal) ||
		errors.Is(err, ErrInvalidPackage) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrPackageNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsConflict returns true if the error is a state conflict the client can resolve.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNoOpenSession) ||
		errors.Is(err, ErrSessionAlreadyOpen) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrAlreadyReversed)
}
