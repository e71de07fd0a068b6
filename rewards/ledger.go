/*
Package rewards owns the customer loyalty point balance.

PURPOSE:
  Accrues points when stays complete (1% of the total price, floored)
  and redeems them as discounts on pending bookings at a fixed rate of
  1,000 points per currency unit.

CRITICAL INVARIANTS:
  1. Balance never goes negative.
  2. Accrual is idempotent per booking: the store keeps a persisted
     accrual marker keyed by booking id, so overlapping scheduler runs
     cannot double-credit.
  3. A booking redeems points at most once, guarded by the booking's
     used_reward_points flag inside the redemption transaction.

REDEMPTION RULES:
  - amount must be >= 1,000 and a multiple of 1,000
  - target booking must be Pending and not already redeemed
  - the discount must not exceed the booking's remaining price

SEE ALSO:
  - booking/pricing.go: point-to-currency conversion
  - api/scheduler.go: drives accrual after completion
*/
package rewards

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/stayward/condotel-engine/booking"
)

// MinRedeemPoints is both the minimum redemption and the step size.
const MinRedeemPoints = 1000

// AccrualPercent is the share of the total price credited back, in
// whole points (floored).
var accrualRate = decimal.NewFromFloat(0.01)

// =============================================================================
// STORE PORT
// =============================================================================

// Store is the persistence port for reward accounts.
type Store interface {
	// Balance returns the customer's point balance (0 for unknown
	// customers; accounts are created lazily).
	Balance(ctx context.Context, customerID booking.CustomerID) (int64, error)

	// Credit adds points and records the per-booking accrual marker
	// atomically. Returns booking.ErrAlreadyAccrued when the marker
	// exists.
	Credit(ctx context.Context, customerID booking.CustomerID, bookingID booking.BookingID, points int64) error

	// Debit subtracts points, reduces the booking's price to newTotal
	// and sets its used_reward_points flag, all in one transaction.
	// Re-checks balance, Pending status and the redeemed flag under the
	// row lock (booking.ErrInsufficientPoints / booking.ErrAlreadyRedeemed).
	Debit(ctx context.Context, customerID booking.CustomerID, bookingID booking.BookingID, points int64, newTotal decimal.Decimal) error
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the reward-point accrual and redemption engine.
type Ledger struct {
	Store    Store
	Bookings booking.Store
}

func NewLedger(store Store, bookings booking.Store) *Ledger {
	return &Ledger{Store: store, Bookings: bookings}
}

// AccrualPoints computes the points earned on a completed booking:
// floor(totalPrice × 1%).
func AccrualPoints(totalPrice decimal.Decimal) int64 {
	return totalPrice.Mul(accrualRate).Floor().IntPart()
}

// Accrue credits points for a completed booking. Idempotent per
// booking: a repeat call is a no-op returning nil, so scheduler re-runs
// yield the same balance as a single run.
func (l *Ledger) Accrue(ctx context.Context, b *booking.Booking) (int64, error) {
	if b.Status != booking.StatusCompleted {
		return 0, &booking.TransitionError{BookingID: b.ID, From: b.Status, To: booking.StatusCompleted}
	}
	points := AccrualPoints(b.TotalPrice)
	if points <= 0 {
		return 0, nil
	}
	err := l.Store.Credit(ctx, b.CustomerID, b.ID, points)
	if errors.Is(err, booking.ErrAlreadyAccrued) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return points, nil
}

// Redeem applies a point discount to the customer's pending booking and
// returns the booking's new total. The cheap checks run first; the
// store re-validates everything under the booking's row lock so a
// racing cancel or second redemption loses cleanly.
func (l *Ledger) Redeem(ctx context.Context, customerID booking.CustomerID, bookingID booking.BookingID, points int64) (decimal.Decimal, error) {
	if points < MinRedeemPoints || points%MinRedeemPoints != 0 {
		return decimal.Zero, booking.ErrInvalidPointAmount
	}

	b, err := l.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return decimal.Zero, err
	}
	if b.CustomerID != customerID {
		return decimal.Zero, booking.ErrNotOwner
	}
	if b.Status != booking.StatusPending {
		return decimal.Zero, &booking.TransitionError{BookingID: bookingID, From: b.Status, To: booking.StatusPending}
	}
	if b.UsedRewardPoints {
		return decimal.Zero, booking.ErrAlreadyRedeemed
	}

	balance, err := l.Store.Balance(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	if balance < points {
		return decimal.Zero, &booking.InsufficientPointsError{CustomerID: customerID, Balance: balance, Requested: points}
	}

	discount := booking.PointsToDiscount(points)
	if discount.GreaterThan(b.TotalPrice) {
		return decimal.Zero, &booking.DiscountExceedsPriceError{Price: b.TotalPrice, Discount: discount}
	}
	newTotal := b.TotalPrice.Sub(discount)

	if err := l.Store.Debit(ctx, customerID, bookingID, points, newTotal); err != nil {
		return decimal.Zero, err
	}
	return newTotal, nil
}

// Balance returns the customer's current point balance.
func (l *Ledger) Balance(ctx context.Context, customerID booking.CustomerID) (int64, error) {
	return l.Store.Balance(ctx, customerID)
}
