/*
Package payout releases booking funds to hosts after the hold window.

ELIGIBILITY:
  A booking is payout-eligible iff ALL of:
    - status = Completed
    - today - endDate >= 15 days (the hold window)
    - not already paid to host
    - total price > 0
    - no refund request in an open state (Pending/Appealed)

DOUBLE-PAYMENT GUARD:
  Eligibility is evaluated twice: once when building the candidate set,
  and again inside the transaction that sets the paid flag. A refund
  filed between the read and the commit therefore aborts the payout
  (store.MarkPaid re-checks refunds and the paid flag under the row
  lock).

BATCH SEMANTICS:
  ProcessAll settles per booking: a single failure is recorded in the
  summary and the run continues. ProcessOne returns a structured result
  instead of an error so callers can batch without aborting.
*/
package payout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stayward/condotel-engine/booking"
)

// HoldDays is the safety window between checkout and fund release.
const HoldDays = 15

// =============================================================================
// STORE PORT
// =============================================================================

// Item is one payout-eligible booking with its host attribution.
type Item struct {
	BookingID  booking.BookingID
	UnitID     booking.UnitID
	HostID     booking.HostID
	CustomerID booking.CustomerID
	EndDate    booking.Date
	Amount     decimal.Decimal
}

// Store is the persistence port for payouts.
type Store interface {
	// ListPayoutCandidates returns Completed, unpaid, positive-price
	// bookings with End <= endedOnOrBefore and no open refund,
	// optionally filtered by host ("" = all hosts).
	ListPayoutCandidates(ctx context.Context, hostID booking.HostID, endedOnOrBefore booking.Date) ([]Item, error)

	// MarkPaid sets the paid flag and timestamp inside one transaction,
	// re-checking Completed status, the unpaid flag and the absence of
	// an open refund. Returns booking.ErrAlreadyPaid or
	// booking.ErrRefundOpen accordingly.
	MarkPaid(ctx context.Context, id booking.BookingID, at time.Time) error

	GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error)

	// HasOpenRefund mirrors the refund store's check; used for the
	// advisory pre-check in ProcessOne.
	HasOpenRefund(ctx context.Context, id booking.BookingID) (bool, error)
}

// =============================================================================
// RESULTS
// =============================================================================

// Result is the structured outcome of settling one booking.
type Result struct {
	BookingID booking.BookingID
	Amount    decimal.Decimal
	Paid      bool
	Reason    string // human-readable failure reason when !Paid
}

// Summary aggregates a settlement run.
type Summary struct {
	Processed   int
	Paid        int
	Failed      int
	TotalAmount decimal.Decimal
	Results     []Result
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine decides and executes fund releases.
type Engine struct {
	Store Store
	Clock booking.Clock
}

func NewEngine(store Store, clock booking.Clock) *Engine {
	return &Engine{Store: store, Clock: clock}
}

// cutoff returns the latest end date eligible today: bookings ended on
// or before today-15 have today - end >= 15.
func (e *Engine) cutoff() booking.Date {
	return e.Clock.Today().AddDays(-HoldDays)
}

// GetEligible returns the current payout-eligible set, optionally for
// one host.
func (e *Engine) GetEligible(ctx context.Context, hostID booking.HostID) ([]Item, error) {
	return e.Store.ListPayoutCandidates(ctx, hostID, e.cutoff())
}

// ProcessAll settles every eligible booking and returns the run
// summary. Individual failures do not abort the run.
func (e *Engine) ProcessAll(ctx context.Context) (Summary, error) {
	items, err := e.Store.ListPayoutCandidates(ctx, "", e.cutoff())
	if err != nil {
		return Summary{}, err
	}

	s := Summary{TotalAmount: decimal.Zero}
	for _, item := range items {
		res := e.settle(ctx, item.BookingID, item.Amount)
		s.Processed++
		if res.Paid {
			s.Paid++
			s.TotalAmount = s.TotalAmount.Add(res.Amount)
		} else {
			s.Failed++
		}
		s.Results = append(s.Results, res)
	}
	return s, nil
}

// ProcessOne applies the full eligibility checks to a single booking
// and returns a structured result rather than failing, so callers can
// batch without aborting on one failure.
func (e *Engine) ProcessOne(ctx context.Context, id booking.BookingID) Result {
	b, err := e.Store.GetBooking(ctx, id)
	if err != nil {
		return Result{BookingID: id, Reason: "booking not found"}
	}
	if b.Status != booking.StatusCompleted {
		return Result{BookingID: id, Reason: "booking not completed"}
	}
	if b.PaidToHost {
		return Result{BookingID: id, Reason: "already paid to host"}
	}
	if !b.TotalPrice.IsPositive() {
		return Result{BookingID: id, Reason: "zero-price booking has nothing to release"}
	}
	if DaysHeld(b.End, e.Clock.Today()) < HoldDays {
		return Result{BookingID: id, Reason: "hold window not yet elapsed"}
	}
	open, err := e.Store.HasOpenRefund(ctx, id)
	if err != nil {
		return Result{BookingID: id, Reason: "refund lookup failed"}
	}
	if open {
		return Result{BookingID: id, Reason: "open refund request"}
	}
	return e.settle(ctx, id, b.TotalPrice)
}

// settle commits the paid flag; the store re-validates under the row
// lock, so a refund filed after the candidate read still wins.
func (e *Engine) settle(ctx context.Context, id booking.BookingID, amount decimal.Decimal) Result {
	if err := e.Store.MarkPaid(ctx, id, e.Clock.Now()); err != nil {
		return Result{BookingID: id, Amount: amount, Reason: err.Error()}
	}
	return Result{BookingID: id, Amount: amount, Paid: true}
}

// DaysHeld is the number of whole days since checkout.
func DaysHeld(end, today booking.Date) int {
	return booking.DaysBetween(end, today)
}
