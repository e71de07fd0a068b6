/*
Package voucher mints completion vouchers.

PURPOSE:
  When a stay completes, the guest earns a single-use thank-you voucher
  bound to them and to the unit they stayed in: a fixed amount plus a
  percentage, valid for six months.

IDEMPOTENCY:
  The booking id is the issuance key. The store enforces a unique index
  on source_booking_id, so overlapping scheduler runs mint at most one
  voucher per booking; a duplicate insert surfaces as
  booking.ErrAlreadyIssued and the issuer treats it as success.

SEE ALSO:
  - api/scheduler.go: invokes issuance after completion
  - booking/types.go: Voucher entity and redemption rules
*/
package voucher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayward/condotel-engine/booking"
)

// Completion grant: 200,000 fixed + 10%, one use, six months.
var (
	grantAmount  = decimal.NewFromInt(200000)
	grantPercent = decimal.NewFromInt(10)
)

const (
	grantUsageLimit    = 1
	grantValidMonths   = 6
	codePrefix         = "STAY"
	codeEntropyLetters = 8
)

// =============================================================================
// STORE PORT
// =============================================================================

// Store is the persistence port for issued vouchers.
type Store interface {
	// InsertVoucher persists the voucher. Returns
	// booking.ErrAlreadyIssued when a voucher for the same
	// SourceBookingID exists.
	InsertVoucher(ctx context.Context, v booking.Voucher) error

	// ListVouchersByCustomer returns vouchers bound to the customer,
	// newest first.
	ListVouchersByCustomer(ctx context.Context, customerID booking.CustomerID) ([]booking.Voucher, error)
}

// =============================================================================
// ISSUER
// =============================================================================

// Issuer mints vouchers for completed stays.
type Issuer struct {
	Store Store
	Clock booking.Clock
}

func NewIssuer(store Store, clock booking.Clock) *Issuer {
	return &Issuer{Store: store, Clock: clock}
}

// IssueAfterCompletion mints the completion voucher for a completed
// booking. Repeat calls for the same booking return (nil, nil).
func (i *Issuer) IssueAfterCompletion(ctx context.Context, b *booking.Booking) (*booking.Voucher, error) {
	if b.Status != booking.StatusCompleted {
		return nil, &booking.TransitionError{BookingID: b.ID, From: b.Status, To: booking.StatusCompleted}
	}

	today := i.Clock.Today()
	v := booking.Voucher{
		ID:              booking.VoucherID(uuid.NewString()),
		Code:            NewCode(),
		UnitID:          b.UnitID,
		CustomerID:      b.CustomerID,
		DiscountAmount:  grantAmount,
		DiscountPercent: grantPercent,
		ValidFrom:       today,
		ValidTo:         today.AddMonths(grantValidMonths),
		UsageLimit:      grantUsageLimit,
		Status:          booking.VoucherActive,
		SourceBookingID: b.ID,
		CreatedAt:       i.Clock.Now(),
	}

	err := i.Store.InsertVoucher(ctx, v)
	if errors.Is(err, booking.ErrAlreadyIssued) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListForCustomer returns the customer's vouchers.
func (i *Issuer) ListForCustomer(ctx context.Context, customerID booking.CustomerID) ([]booking.Voucher, error) {
	return i.Store.ListVouchersByCustomer(ctx, customerID)
}

// NewCode generates a human-readable unique voucher code like
// "STAY-3F2A9C1B". Uniqueness is backed by the store's unique code
// index; the uuid entropy makes collisions practically impossible.
func NewCode() booking.VoucherCode {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return booking.VoucherCode(fmt.Sprintf("%s-%s", codePrefix, raw[:codeEntropyLetters]))
}
