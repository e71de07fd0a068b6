/*
service.go - Booking state machine

PURPOSE:
  Owns booking creation, cancellation and the system-only completion
  transition. All status changes funnel through the store's
  compare-and-swap so re-runs and races serialize on the booking row.

STATE MACHINE:
  Pending ──► Confirmed ──► Completed   (terminal)
     │            │
     └────────────┴───────► Cancelled   (terminal)

  - Create: availability re-checked inside the insert transaction
  - Confirm: payment acknowledged by an external collaborator
  - Cancel: customer-initiated, Pending/Confirmed only, owner only
  - Complete: scheduler-only, requires today strictly after End so the
    checkout day itself never settles early

SEE ALSO:
  - api/scheduler.go: drives Complete on a cadence
  - refund/workflow.go: refunds are filed separately after Cancel
*/
package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service is the booking state machine.
type Service struct {
	Store  Store
	Clock  Clock
	Pricer *Pricer
}

func NewService(store Store, clock Clock) *Service {
	return &Service{
		Store:  store,
		Clock:  clock,
		Pricer: NewPricer(clock),
	}
}

// CreateParams carries the guest-facing creation request.
type CreateParams struct {
	CustomerID  CustomerID
	UnitID      UnitID
	Start       Date
	End         Date
	PromotionID PromotionID // optional
	VoucherCode VoucherCode // optional
}

// Create re-checks availability, computes the price and persists a
// Pending booking. The advisory overlap check here gives a friendly
// error; the authoritative guard is inside Store.CreateBooking.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Booking, Quote, error) {
	if !p.End.After(p.Start) {
		return nil, Quote{}, &InvalidRangeError{Start: p.Start, End: p.End}
	}

	unit, err := s.Store.GetUnit(ctx, p.UnitID)
	if err != nil {
		return nil, Quote{}, err
	}

	conflicts, err := s.Store.ListOverlapping(ctx, p.UnitID, p.Start, p.End)
	if err != nil {
		return nil, Quote{}, err
	}
	if len(conflicts) > 0 {
		return nil, Quote{}, &OverlapError{UnitID: p.UnitID, Start: p.Start, End: p.End}
	}

	var promo *Promotion
	if p.PromotionID != "" {
		promo, err = s.Store.GetPromotion(ctx, p.PromotionID)
		if err != nil {
			return nil, Quote{}, err
		}
	}

	var v *Voucher
	if p.VoucherCode != "" {
		v, err = s.Store.GetVoucherByCode(ctx, p.VoucherCode)
		if err != nil {
			return nil, Quote{}, err
		}
	}

	quote, err := s.Pricer.ComputePrice(unit, p.Start, p.End, promo, v, p.CustomerID, 0)
	if err != nil {
		return nil, Quote{}, err
	}

	b := Booking{
		ID:          BookingID(uuid.NewString()),
		UnitID:      p.UnitID,
		CustomerID:  p.CustomerID,
		Start:       p.Start,
		End:         p.End,
		TotalPrice:  quote.Total,
		Status:      StatusPending,
		PromotionID: p.PromotionID,
		CreatedAt:   s.Clock.Now(),
	}

	if err := s.Store.CreateBooking(ctx, b, p.VoucherCode); err != nil {
		return nil, Quote{}, err
	}
	return &b, quote, nil
}

// Cancel transitions the caller's booking to Cancelled. Allowed from
// Pending and Confirmed only. Refunds are a separate workflow.
func (s *Service) Cancel(ctx context.Context, id BookingID, customerID CustomerID) error {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if b.CustomerID != customerID {
		return ErrNotOwner
	}
	if !b.Status.CanTransitionTo(StatusCancelled) {
		return &TransitionError{BookingID: id, From: b.Status, To: StatusCancelled}
	}
	return s.Store.UpdateBookingStatus(ctx, id, b.Status, StatusCancelled)
}

// Confirm acknowledges payment (captured by an external collaborator)
// and moves Pending → Confirmed.
func (s *Service) Confirm(ctx context.Context, id BookingID) error {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != StatusPending {
		return &TransitionError{BookingID: id, From: b.Status, To: StatusConfirmed}
	}
	return s.Store.UpdateBookingStatus(ctx, id, StatusPending, StatusConfirmed)
}

// Complete moves Confirmed → Completed once the stay has elapsed.
// System-only: invoked by the settlement scheduler. A booking whose End
// equals today is NOT yet eligible (strict greater-than), so checkout
// day never settles.
func (s *Service) Complete(ctx context.Context, id BookingID) (*Booking, error) {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusConfirmed {
		return nil, &TransitionError{BookingID: id, From: b.Status, To: StatusCompleted}
	}
	today := s.Clock.Today()
	if !today.After(b.End) {
		return nil, fmt.Errorf("booking %s ends %s: %w", id, b.End, ErrInvalidTransition)
	}
	if err := s.Store.UpdateBookingStatus(ctx, id, StatusConfirmed, StatusCompleted); err != nil {
		return nil, err
	}
	b.Status = StatusCompleted
	return b, nil
}
