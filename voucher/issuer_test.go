package voucher_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayward/condotel-engine/booking"
	"github.com/stayward/condotel-engine/store/sqlite"
	"github.com/stayward/condotel-engine/voucher"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestIssuer(t *testing.T) (*voucher.Issuer, *sqlite.Store, *booking.FixedClock) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := booking.NewFixedClock(2025, time.June, 15)
	return voucher.NewIssuer(store, clock), store, clock
}

func completedBooking(id string) *booking.Booking {
	return &booking.Booking{
		ID:         booking.BookingID(id),
		UnitID:     "unit-1",
		CustomerID: "cust-1",
		Start:      booking.NewDate(2025, time.June, 10),
		End:        booking.NewDate(2025, time.June, 12),
		TotalPrice: decimal.NewFromInt(2_000_000),
		Status:     booking.StatusCompleted,
	}
}

// =============================================================================
// ISSUANCE
// =============================================================================

func TestIssuer_IssueAfterCompletion_MintsBoundVoucher(t *testing.T) {
	// GIVEN: A completed stay
	// WHEN: Issuing the thank-you voucher
	// THEN: 200,000 + 10%, single use, six months, bound to guest and unit

	issuer, store, clock := newTestIssuer(t)
	ctx := context.Background()

	v, err := issuer.IssueAfterCompletion(ctx, completedBooking("b-1"))
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "200000", v.DiscountAmount.String())
	assert.Equal(t, "10", v.DiscountPercent.String())
	assert.Equal(t, 1, v.UsageLimit)
	assert.Equal(t, booking.CustomerID("cust-1"), v.CustomerID)
	assert.Equal(t, booking.UnitID("unit-1"), v.UnitID)
	assert.Equal(t, booking.BookingID("b-1"), v.SourceBookingID)
	assert.True(t, v.ValidFrom.Equal(clock.Today()))
	assert.True(t, v.ValidTo.Equal(clock.Today().AddMonths(6)))

	stored, err := store.GetVoucherByCode(ctx, v.Code)
	require.NoError(t, err)
	assert.Equal(t, v.ID, stored.ID)
}

func TestIssuer_IssueAfterCompletion_Idempotent(t *testing.T) {
	// GIVEN: A booking whose voucher was already minted
	// WHEN: The scheduler re-runs issuance for the same booking
	// THEN: No second voucher; the repeat returns (nil, nil)

	issuer, store, _ := newTestIssuer(t)
	ctx := context.Background()
	b := completedBooking("b-1")

	first, err := issuer.IssueAfterCompletion(ctx, b)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := issuer.IssueAfterCompletion(ctx, b)
	require.NoError(t, err)
	assert.Nil(t, second)

	vouchers, err := store.ListVouchersByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, vouchers, 1)
}

func TestIssuer_IssueAfterCompletion_NonCompleted_Rejected(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	b := completedBooking("b-1")
	b.Status = booking.StatusConfirmed

	_, err := issuer.IssueAfterCompletion(context.Background(), b)

	var transErr *booking.TransitionError
	assert.ErrorAs(t, err, &transErr)
}

func TestIssuer_IssuedVoucher_RedeemableByGuestOnSameUnit(t *testing.T) {
	// GIVEN: A freshly minted completion voucher
	// THEN: Redeemable by the guest on the stayed unit, by nobody else,
	//       and not after expiry

	issuer, _, clock := newTestIssuer(t)

	v, err := issuer.IssueAfterCompletion(context.Background(), completedBooking("b-1"))
	require.NoError(t, err)

	assert.True(t, v.Redeemable(clock.Today(), "cust-1", "unit-1"))
	assert.False(t, v.Redeemable(clock.Today(), "cust-2", "unit-1"), "bound to the guest")
	assert.False(t, v.Redeemable(clock.Today(), "cust-1", "unit-2"), "bound to the unit")
	assert.False(t, v.Redeemable(clock.Today().AddMonths(7), "cust-1", "unit-1"), "expired")
}

func TestNewCode_Format(t *testing.T) {
	code := string(voucher.NewCode())

	assert.True(t, strings.HasPrefix(code, "STAY-"))
	assert.Len(t, code, len("STAY-")+8)
	assert.Equal(t, code, strings.ToUpper(code))
}
