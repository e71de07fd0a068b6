/*
Package booking contains the core of the condotel reservation engine.

PURPOSE:
  This package owns the booking lifecycle: availability checking over
  half-open date intervals, price computation with stacked discounts,
  and the Pending → Confirmed → Completed / Cancelled state machine.
  Reward accrual, voucher issuance, refunds and payouts live in sibling
  packages but share the entity types defined here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Booking: a guest's reservation of a unit for [Start, End)
  - Unit: a bookable condotel owned by a host (read-only here)
  - Promotion: a time-boxed percentage discount, per unit or global
  - Voucher: a redeemable discount code with a usage limit
  - Status: closed enumeration with explicit transition rules

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, never float64
  2. Closed enums: statuses are typed constants with exhaustive
     transition checks, not free-form strings
  3. Half-open intervals: End is exclusive, so back-to-back stays
     touching at the boundary never conflict

SEE ALSO:
  - service.go: state machine operations (Create/Cancel/Complete)
  - availability.go: interval overlap rule
  - pricing.go: discount stacking
*/
package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BookingID string
type UnitID string
type CustomerID string
type HostID string
type PromotionID string
type VoucherID string
type VoucherCode string

// =============================================================================
// BOOKING STATUS - Closed enumeration with explicit transitions
// =============================================================================

// Status values are persisted verbatim; do not rename.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// CanTransitionTo reports whether the state machine permits from → to.
// Completed and Cancelled are terminal. Transitions never regress
// except into Cancelled from the two live states.
func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled
	case StatusCompleted, StatusCancelled:
		return false
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// =============================================================================
// BOOKING - A reservation of a unit for [Start, End)
// =============================================================================

type Booking struct {
	ID         BookingID
	UnitID     UnitID
	CustomerID CustomerID

	// Half-open stay interval: the guest occupies Start..End-1 nights,
	// End is checkout day and is exclusive.
	Start Date
	End   Date

	TotalPrice  decimal.Decimal
	Status      Status
	PromotionID PromotionID // empty = no promotion applied

	// UsedRewardPoints blocks a second redemption on the same booking.
	UsedRewardPoints bool

	// Payout bookkeeping, owned by the payout engine.
	PaidToHost bool
	PaidAt     *time.Time

	CreatedAt time.Time
}

// Nights returns the number of billable nights.
func (b *Booking) Nights() int { return DaysBetween(b.Start, b.End) }

// =============================================================================
// UNIT - Bookable condotel (read-only from the core's perspective)
// =============================================================================

type Unit struct {
	ID          UnitID
	HostID      HostID
	Name        string
	NightlyRate decimal.Decimal
	CreatedAt   time.Time
}

// =============================================================================
// PROMOTION - Time-boxed percentage discount
// =============================================================================

type PromotionStatus string

const (
	PromotionActive   PromotionStatus = "Active"
	PromotionDisabled PromotionStatus = "Disabled"
)

type Promotion struct {
	ID     PromotionID
	UnitID UnitID // empty = applies to every unit

	// Inclusive validity window: valid when Start <= today <= End.
	Start Date
	End   Date

	DiscountPercent decimal.Decimal
	Status          PromotionStatus
	CreatedAt       time.Time
}

// ValidOn reports whether the promotion applies on the given day.
func (p *Promotion) ValidOn(day Date) bool {
	if p.Status != PromotionActive {
		return false
	}
	return !day.Before(p.Start) && !day.After(p.End)
}

// AppliesTo reports whether the promotion covers the given unit.
func (p *Promotion) AppliesTo(unitID UnitID) bool {
	return p.UnitID == "" || p.UnitID == unitID
}

// =============================================================================
// VOUCHER - Redeemable discount code
// =============================================================================

type VoucherStatus string

const (
	VoucherActive   VoucherStatus = "Active"
	VoucherDisabled VoucherStatus = "Disabled"
)

type Voucher struct {
	ID   VoucherID
	Code VoucherCode

	// Optional bindings. Empty = unrestricted.
	UnitID     UnitID
	CustomerID CustomerID

	// A voucher may carry a fixed amount, a percentage, or both.
	DiscountAmount  decimal.Decimal
	DiscountPercent decimal.Decimal

	ValidFrom  Date
	ValidTo    Date
	UsageLimit int
	UsedCount  int
	Status     VoucherStatus

	// SourceBookingID is set for vouchers minted after a completed stay
	// and is the issuance idempotency key.
	SourceBookingID BookingID

	CreatedAt time.Time
}

// Redeemable reports whether the voucher can be applied on the given day
// by the given customer for the given unit.
func (v *Voucher) Redeemable(day Date, customerID CustomerID, unitID UnitID) bool {
	if v.Status != VoucherActive {
		return false
	}
	if v.UsedCount >= v.UsageLimit {
		return false
	}
	if day.Before(v.ValidFrom) || day.After(v.ValidTo) {
		return false
	}
	if v.CustomerID != "" && v.CustomerID != customerID {
		return false
	}
	if v.UnitID != "" && v.UnitID != unitID {
		return false
	}
	return true
}
