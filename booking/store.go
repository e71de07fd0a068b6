/*
store.go - Persistence port for the booking core

PURPOSE:
  Defines the interface between the booking state machine and the
  database. No global handles: the store is injected into each service.
  The SQLite implementation lives in store/sqlite.

ATOMICITY CONTRACT:
  CreateBooking re-runs the overlap check INSIDE the same transaction as
  the insert. The availability pre-check in the service is advisory;
  this method is the double-booking guard (two racing creates for
  overlapping intervals must not both succeed).

  UpdateBookingStatus is compare-and-swap on the status column, so
  scheduler re-runs and racing cancels serialize on the booking row.

SEE ALSO:
  - store/sqlite/sqlite.go: implementation
  - service.go: consumer
*/
package booking

import "context"

// Store is the persistence port for bookings and the read-side of the
// catalog entities the core needs (units, promotions, vouchers).
type Store interface {
	// CreateBooking atomically re-checks availability and inserts the
	// booking as Pending. If voucherCode is non-empty its usage count is
	// consumed in the same transaction (ErrVoucherInvalid when
	// exhausted). Returns *OverlapError on conflict.
	CreateBooking(ctx context.Context, b Booking, voucherCode VoucherCode) error

	// GetBooking returns ErrNotFound for unknown ids.
	GetBooking(ctx context.Context, id BookingID) (*Booking, error)

	// ListBookingsByCustomer returns the customer's bookings, newest first.
	ListBookingsByCustomer(ctx context.Context, customerID CustomerID) ([]Booking, error)

	// ListOverlapping returns non-cancelled bookings on the unit whose
	// interval overlaps [start, end) under the half-open rule.
	ListOverlapping(ctx context.Context, unitID UnitID, start, end Date) ([]Booking, error)

	// UpdateBookingStatus transitions from → to, failing with
	// *TransitionError if the current status is not `from`.
	UpdateBookingStatus(ctx context.Context, id BookingID, from, to Status) error

	// ListConfirmedEndedBefore returns Confirmed bookings with
	// End < before, bounded by limit, for the settlement scheduler.
	ListConfirmedEndedBefore(ctx context.Context, before Date, limit int) ([]Booking, error)

	GetUnit(ctx context.Context, id UnitID) (*Unit, error)
	GetPromotion(ctx context.Context, id PromotionID) (*Promotion, error)
	GetVoucherByCode(ctx context.Context, code VoucherCode) (*Voucher, error)
}

// PromotionStore is the write-side port for promotion management.
type PromotionStore interface {
	// CreatePromotion inserts the promotion, enforcing the per-unit
	// non-overlap invariant transactionally (ErrPromotionOverlap).
	CreatePromotion(ctx context.Context, p Promotion) error

	ListPromotions(ctx context.Context, unitID UnitID) ([]Promotion, error)
}
