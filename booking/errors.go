/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All sentinel errors in one place. Sibling packages (rewards, refund,
  payout) reuse these sentinels and wrap them with structured context.

ERROR CATEGORIES:
  1. Validation errors  - malformed input (bad range, bad amounts)
  2. Conflict errors    - overlap, double-pay, double-redeem
  3. Not-found errors   - unknown booking/unit/voucher
  4. Business-rule errors - hold window open, refund pending, bad transition

USAGE:
  Structured errors Unwrap() to a sentinel, so callers match with
  errors.Is and the HTTP layer maps categories with the Is* helpers:

    if booking.IsConflict(err) { w.WriteHeader(409) }

SEE ALSO:
  - api/handlers.go: maps categories to HTTP status codes
*/
package booking

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned for date intervals with zero or
	// negative nights.
	ErrInvalidRange = errors.New("invalid date range: end must be after start")

	// ErrUnavailable is returned when the requested interval overlaps an
	// existing non-cancelled booking. Retryable after re-checking.
	ErrUnavailable = errors.New("unit unavailable for requested dates")

	// ErrNotFound is returned for unknown bookings, units, promotions,
	// vouchers and refund requests.
	ErrNotFound = errors.New("not found")

	// ErrNotOwner is returned when a customer operates on a booking they
	// do not own. Surfaced as not-found to avoid leaking existence.
	ErrNotOwner = errors.New("booking not owned by caller")

	// ErrInvalidTransition is returned for status changes the state
	// machine does not permit.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPromotionInvalid is returned when a supplied promotion is
	// expired, disabled, or bound to a different unit.
	ErrPromotionInvalid = errors.New("promotion not valid for this booking")

	// ErrVoucherInvalid is returned when a supplied voucher is expired,
	// exhausted, or bound to a different customer/unit.
	ErrVoucherInvalid = errors.New("voucher not valid for this booking")

	// ErrPromotionOverlap is returned when creating a promotion whose
	// active window overlaps an existing one on the same unit.
	ErrPromotionOverlap = errors.New("promotion window overlaps an active promotion")

	// ErrInsufficientPoints is returned when redemption exceeds balance.
	ErrInsufficientPoints = errors.New("insufficient reward points")

	// ErrInvalidPointAmount is returned when the redemption amount is
	// below the minimum or not a multiple of the redemption step.
	ErrInvalidPointAmount = errors.New("invalid reward point amount")

	// ErrAlreadyRedeemed is returned when a booking has already used
	// reward points.
	ErrAlreadyRedeemed = errors.New("reward points already redeemed on booking")

	// ErrAlreadyAccrued signals the accrual idempotency marker exists.
	// Callers treat it as success.
	ErrAlreadyAccrued = errors.New("reward points already accrued for booking")

	// ErrAlreadyIssued signals a completion voucher was already minted
	// for the booking. Callers treat it as success.
	ErrAlreadyIssued = errors.New("voucher already issued for booking")

	// ErrAlreadyPaid is returned when a booking's funds were already
	// released to the host.
	ErrAlreadyPaid = errors.New("booking already paid to host")

	// ErrHoldWindowOpen is returned when the payout hold window has not
	// yet elapsed.
	ErrHoldWindowOpen = errors.New("payout hold window not yet elapsed")

	// ErrRefundOpen is returned when an open refund request blocks payout.
	ErrRefundOpen = errors.New("open refund request blocks payout")

	// ErrRefundExists is returned when a booking already has a refund
	// request on file.
	ErrRefundExists = errors.New("refund request already filed for booking")

	// ErrAppealExhausted is returned when appealing after the second,
	// terminal rejection.
	ErrAppealExhausted = errors.New("refund appeal already used")

	// ErrAppealReason is returned when an appeal reason is outside the
	// 10-500 character bounds.
	ErrAppealReason = errors.New("appeal reason must be 10-500 characters")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverlapError reports a double-booking conflict.
type OverlapError struct {
	UnitID UnitID
	Start  Date
	End    Date
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("unit %s unavailable for [%s, %s)", e.UnitID, e.Start, e.End)
}

func (e *OverlapError) Unwrap() error { return ErrUnavailable }

// InvalidRangeError reports a malformed stay interval.
type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range [%s, %s): end must be after start", e.Start, e.End)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// InsufficientPointsError reports a reward balance shortfall.
type InsufficientPointsError struct {
	CustomerID CustomerID
	Balance    int64
	Requested  int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: balance %d, requested %d", e.Balance, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// TransitionError reports a forbidden state machine move.
type TransitionError struct {
	BookingID BookingID
	From      Status
	To        Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking %s: cannot transition %s -> %s", e.BookingID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// DiscountExceedsPriceError reports a point redemption larger than the
// remaining discounted price.
type DiscountExceedsPriceError struct {
	Price    decimal.Decimal
	Discount decimal.Decimal
}

func (e *DiscountExceedsPriceError) Error() string {
	return fmt.Sprintf("point discount %s exceeds remaining price %s", e.Discount, e.Price)
}

func (e *DiscountExceedsPriceError) Unwrap() error { return ErrInvalidPointAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true for malformed-input errors (HTTP 400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidPointAmount) ||
		errors.Is(err, ErrAppealReason) ||
		errors.Is(err, ErrPromotionInvalid) ||
		errors.Is(err, ErrVoucherInvalid)
}

// IsConflict returns true for conflicting-state errors (HTTP 409).
func IsConflict(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrAlreadyRedeemed) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrRefundExists) ||
		errors.Is(err, ErrPromotionOverlap)
}

// IsNotFound returns true for missing-resource errors (HTTP 404).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotOwner)
}

// IsBusinessRule returns true for rule violations on well-formed input
// (HTTP 422).
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrHoldWindowOpen) ||
		errors.Is(err, ErrRefundOpen) ||
		errors.Is(err, ErrAppealExhausted) ||
		errors.Is(err, ErrInsufficientPoints)
}
