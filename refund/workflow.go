/*
Package refund tracks a cancellation's refund request through rejection
and a single appeal.

STATE MACHINE:
                 ┌──────────► Completed (terminal, operator confirmed)
                 │
  Pending ───────┤
    ▲            └──────────► Rejected ──► Appealed (attempt 2)
    │ (re-review)                             │
    └─────────────────────────────────────────┤
                                              ▼
                                     Rejected (terminal: no 2nd appeal)

  - attempt 1 = initial request, attempt 2 = after appeal
  - appeal requires a 10-500 character reason and is allowed exactly once
  - Refunded is a terminal legacy value written by the payment gateway
    callback; the workflow never produces it but treats it as closed

PAYOUT INTERACTION:
  A request in Pending or Appealed is OPEN and blocks the payout engine
  from releasing the same booking's funds (checked again inside the
  mark-paid transaction, see payout package).
*/
package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayward/condotel-engine/booking"
)

// =============================================================================
// REFUND REQUEST - Entity and status enumeration
// =============================================================================

type RequestID string

// Status values are persisted verbatim; do not rename.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusRefunded  Status = "Refunded"
	StatusRejected  Status = "Rejected"
	StatusAppealed  Status = "Appealed"
)

// Open reports whether the request still blocks payout.
func (s Status) Open() bool { return s == StatusPending || s == StatusAppealed }

// BankDetails is where the refund is wired.
type BankDetails struct {
	BankName      string
	AccountNumber string
	AccountHolder string
}

type Request struct {
	ID         RequestID
	BookingID  booking.BookingID
	CustomerID booking.CustomerID
	Amount     decimal.Decimal
	Status     Status

	// Attempt 1 = initial review, 2 = after appeal.
	Attempt int

	AppealReason    string
	AppealedAt      *time.Time
	RejectionReason string
	RejectedAt      *time.Time

	Bank BankDetails

	ProcessedBy string
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// =============================================================================
// STORE PORT
// =============================================================================

// Store is the persistence port for refund requests.
type Store interface {
	// InsertRefund persists a new request. One request per booking:
	// returns booking.ErrRefundExists on a duplicate booking id.
	InsertRefund(ctx context.Context, r Request) error

	// GetRefund returns booking.ErrNotFound for unknown ids.
	GetRefund(ctx context.Context, id RequestID) (*Request, error)

	// UpdateRefund transitions from → r.Status compare-and-swap style,
	// persisting the mutated fields. Fails with booking.ErrInvalidTransition
	// when the stored status is not `from`.
	UpdateRefund(ctx context.Context, r Request, from Status) error

	// ListRefunds returns requests filtered by status ("" = all),
	// newest first.
	ListRefunds(ctx context.Context, status Status) ([]Request, error)

	// HasOpenRefund reports whether the booking has a request in
	// Pending or Appealed.
	HasOpenRefund(ctx context.Context, bookingID booking.BookingID) (bool, error)
}

// =============================================================================
// WORKFLOW
// =============================================================================

const (
	minAppealReason = 10
	maxAppealReason = 500
)

// Workflow drives refund requests through review, rejection and appeal.
type Workflow struct {
	Store    Store
	Bookings booking.Store
	Clock    booking.Clock
}

func NewWorkflow(store Store, bookings booking.Store, clock booking.Clock) *Workflow {
	return &Workflow{Store: store, Bookings: bookings, Clock: clock}
}

// File opens a refund request for the caller's cancelled booking. The
// refund amount is the booking's total price.
func (w *Workflow) File(ctx context.Context, bookingID booking.BookingID, customerID booking.CustomerID, bank BankDetails) (*Request, error) {
	b, err := w.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != customerID {
		return nil, booking.ErrNotOwner
	}
	if b.Status != booking.StatusCancelled {
		return nil, &booking.TransitionError{BookingID: bookingID, From: b.Status, To: booking.StatusCancelled}
	}

	r := Request{
		ID:         RequestID(uuid.NewString()),
		BookingID:  bookingID,
		CustomerID: customerID,
		Amount:     b.TotalPrice,
		Status:     StatusPending,
		Attempt:    1,
		Bank:       bank,
		CreatedAt:  w.Clock.Now(),
	}
	if err := w.Store.InsertRefund(ctx, r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Reject declines an open request. From Pending (attempt 1) the
// customer may still appeal; from Appealed (attempt 2) the rejection is
// terminal.
func (w *Workflow) Reject(ctx context.Context, id RequestID, operator, reason string) (*Request, error) {
	r, err := w.Store.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.Open() {
		return nil, transitionErr(r, StatusRejected)
	}

	from := r.Status
	now := w.Clock.Now()
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.RejectedAt = &now
	r.ProcessedBy = operator
	r.ProcessedAt = &now

	if err := w.Store.UpdateRefund(ctx, *r, from); err != nil {
		return nil, err
	}
	return r, nil
}

// Appeal contests a first rejection. Allowed exactly once: a request
// rejected on attempt 2 is closed for good.
func (w *Workflow) Appeal(ctx context.Context, id RequestID, customerID booking.CustomerID, reason string) (*Request, error) {
	if len(reason) < minAppealReason || len(reason) > maxAppealReason {
		return nil, booking.ErrAppealReason
	}

	r, err := w.Store.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CustomerID != customerID {
		return nil, booking.ErrNotOwner
	}
	if r.Status != StatusRejected {
		return nil, transitionErr(r, StatusAppealed)
	}
	if r.Attempt >= 2 {
		return nil, booking.ErrAppealExhausted
	}

	now := w.Clock.Now()
	r.Status = StatusAppealed
	r.Attempt = 2
	r.AppealReason = reason
	r.AppealedAt = &now

	if err := w.Store.UpdateRefund(ctx, *r, StatusRejected); err != nil {
		return nil, err
	}
	return r, nil
}

// Confirm marks an open request as paid out, recording the operator and
// timestamp.
func (w *Workflow) Confirm(ctx context.Context, id RequestID, operator string) (*Request, error) {
	r, err := w.Store.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.Open() {
		return nil, transitionErr(r, StatusCompleted)
	}

	from := r.Status
	now := w.Clock.Now()
	r.Status = StatusCompleted
	r.ProcessedBy = operator
	r.ProcessedAt = &now

	if err := w.Store.UpdateRefund(ctx, *r, from); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns a single request.
func (w *Workflow) Get(ctx context.Context, id RequestID) (*Request, error) {
	return w.Store.GetRefund(ctx, id)
}

// List returns requests filtered by status ("" = all).
func (w *Workflow) List(ctx context.Context, status Status) ([]Request, error) {
	return w.Store.ListRefunds(ctx, status)
}

// transitionErr adapts refund statuses onto the shared transition error.
func transitionErr(r *Request, to Status) error {
	return &booking.TransitionError{
		BookingID: r.BookingID,
		From:      booking.Status(r.Status),
		To:        booking.Status(to),
	}
}
