package rewards_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayward/condotel-engine/booking"
	"github.com/stayward/condotel-engine/rewards"
	"github.com/stayward/condotel-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type ledgerFixture struct {
	ledger *rewards.Ledger
	svc    *booking.Service
	store  *sqlite.Store
	clock  *booking.FixedClock
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := booking.NewFixedClock(2025, time.June, 1)
	require.NoError(t, store.SaveUnit(context.Background(), booking.Unit{
		ID:          "unit-1",
		HostID:      "host-1",
		NightlyRate: decimal.NewFromInt(1_000_000),
		CreatedAt:   clock.Now(),
	}))

	return &ledgerFixture{
		ledger: rewards.NewLedger(store, store),
		svc:    booking.NewService(store, clock),
		store:  store,
		clock:  clock,
	}
}

func (f *ledgerFixture) pendingBooking(t *testing.T, customerID string, startDay, endDay int) *booking.Booking {
	t.Helper()
	b, _, err := f.svc.Create(context.Background(), booking.CreateParams{
		CustomerID: booking.CustomerID(customerID),
		UnitID:     "unit-1",
		Start:      booking.NewDate(2025, time.June, startDay),
		End:        booking.NewDate(2025, time.June, endDay),
	})
	require.NoError(t, err)
	return b
}

func (f *ledgerFixture) completedBooking(t *testing.T, customerID string, startDay, endDay int) *booking.Booking {
	t.Helper()
	b := f.pendingBooking(t, customerID, startDay, endDay)
	ctx := context.Background()
	require.NoError(t, f.svc.Confirm(ctx, b.ID))
	f.clock.Set(booking.NewDate(2025, time.June, endDay).AddDays(1))
	completed, err := f.svc.Complete(ctx, b.ID)
	require.NoError(t, err)
	return completed
}

// seedBalance credits points through a synthetic accrual marker.
func (f *ledgerFixture) seedBalance(t *testing.T, customerID string, points int64) {
	t.Helper()
	err := f.store.Credit(context.Background(),
		booking.CustomerID(customerID), booking.BookingID("seed-"+customerID), points)
	require.NoError(t, err)
}

// =============================================================================
// ACCRUAL
// =============================================================================

func TestAccrualPoints_FloorsOnePercent(t *testing.T) {
	assert.Equal(t, int64(20000), rewards.AccrualPoints(decimal.NewFromInt(2_000_000)))
	assert.Equal(t, int64(1), rewards.AccrualPoints(decimal.NewFromInt(199)), "1.99 floors to 1")
	assert.Equal(t, int64(0), rewards.AccrualPoints(decimal.NewFromInt(99)))
}

func TestLedger_Accrue_CreditsOnePercent(t *testing.T) {
	// GIVEN: A completed 2,000,000 booking
	// WHEN: Accruing
	// THEN: 20,000 points land on the customer's balance

	f := newLedgerFixture(t)
	ctx := context.Background()
	b := f.completedBooking(t, "cust-1", 10, 12)

	points, err := f.ledger.Accrue(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), points)

	balance, err := f.ledger.Balance(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), balance)
}

func TestLedger_Accrue_Idempotent(t *testing.T) {
	// GIVEN: A booking already accrued
	// WHEN: The scheduler runs again on the same booking
	// THEN: No double credit; the repeat is a silent no-op

	f := newLedgerFixture(t)
	ctx := context.Background()
	b := f.completedBooking(t, "cust-1", 10, 12)

	_, err := f.ledger.Accrue(ctx, b)
	require.NoError(t, err)

	again, err := f.ledger.Accrue(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again)

	balance, err := f.ledger.Balance(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), balance, "balance same as a single run")
}

func TestLedger_Accrue_NonCompletedBooking_Rejected(t *testing.T) {
	f := newLedgerFixture(t)
	b := f.pendingBooking(t, "cust-1", 10, 12)

	_, err := f.ledger.Accrue(context.Background(), b)

	var transErr *booking.TransitionError
	assert.ErrorAs(t, err, &transErr)
}

// =============================================================================
// REDEMPTION
// =============================================================================

func TestLedger_Redeem_ReducesPriceAndBalance(t *testing.T) {
	// GIVEN: 5,000 points and a pending 2,000,000 booking
	// WHEN: Redeeming 2,000 points
	// THEN: Price drops by 2 and the balance by 2,000

	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedBalance(t, "cust-1", 5000)
	b := f.pendingBooking(t, "cust-1", 10, 12)

	newTotal, err := f.ledger.Redeem(ctx, "cust-1", b.ID, 2000)
	require.NoError(t, err)
	assert.Equal(t, "1999998", newTotal.String())

	balance, err := f.ledger.Balance(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), balance)

	stored, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "1999998", stored.TotalPrice.String())
	assert.True(t, stored.UsedRewardPoints)
}

func TestLedger_Redeem_BelowMinimum_Rejected(t *testing.T) {
	f := newLedgerFixture(t)
	f.seedBalance(t, "cust-1", 5000)
	b := f.pendingBooking(t, "cust-1", 10, 12)

	_, err := f.ledger.Redeem(context.Background(), "cust-1", b.ID, 500)
	assert.ErrorIs(t, err, booking.ErrInvalidPointAmount)
}

func TestLedger_Redeem_NotMultipleOfStep_Rejected(t *testing.T) {
	f := newLedgerFixture(t)
	f.seedBalance(t, "cust-1", 5000)
	b := f.pendingBooking(t, "cust-1", 10, 12)

	_, err := f.ledger.Redeem(context.Background(), "cust-1", b.ID, 1500)
	assert.ErrorIs(t, err, booking.ErrInvalidPointAmount)
}

func TestLedger_Redeem_InsufficientBalance_Rejected(t *testing.T) {
	// GIVEN: 1,000 points on the account
	// WHEN: Redeeming 2,000
	// THEN: InsufficientPointsError carrying both amounts

	f := newLedgerFixture(t)
	f.seedBalance(t, "cust-1", 1000)
	b := f.pendingBooking(t, "cust-1", 10, 12)

	_, err := f.ledger.Redeem(context.Background(), "cust-1", b.ID, 2000)

	var insufErr *booking.InsufficientPointsError
	require.ErrorAs(t, err, &insufErr)
	assert.Equal(t, int64(1000), insufErr.Balance)
	assert.Equal(t, int64(2000), insufErr.Requested)
}

func TestLedger_Redeem_Twice_Rejected(t *testing.T) {
	// GIVEN: A booking that already redeemed points
	// WHEN: Redeeming again on the same booking
	// THEN: ErrAlreadyRedeemed and the balance is untouched

	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedBalance(t, "cust-1", 5000)
	b := f.pendingBooking(t, "cust-1", 10, 12)

	_, err := f.ledger.Redeem(ctx, "cust-1", b.ID, 1000)
	require.NoError(t, err)

	_, err = f.ledger.Redeem(ctx, "cust-1", b.ID, 1000)
	assert.ErrorIs(t, err, booking.ErrAlreadyRedeemed)

	balance, err := f.ledger.Balance(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), balance)
}

func TestLedger_Redeem_OnConfirmedBooking_Rejected(t *testing.T) {
	// GIVEN: A confirmed (already paid) booking
	// WHEN: Redeeming points against it
	// THEN: Rejected; points only apply while Pending

	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedBalance(t, "cust-1", 5000)
	b := f.pendingBooking(t, "cust-1", 10, 12)
	require.NoError(t, f.svc.Confirm(ctx, b.ID))

	_, err := f.ledger.Redeem(ctx, "cust-1", b.ID, 1000)

	var transErr *booking.TransitionError
	assert.ErrorAs(t, err, &transErr)
}

func TestLedger_Redeem_ByNonOwner_Rejected(t *testing.T) {
	f := newLedgerFixture(t)
	f.seedBalance(t, "cust-2", 5000)
	b := f.pendingBooking(t, "cust-1", 10, 12)

	_, err := f.ledger.Redeem(context.Background(), "cust-2", b.ID, 1000)
	assert.ErrorIs(t, err, booking.ErrNotOwner)
}

func TestLedger_Balance_UnknownCustomer_Zero(t *testing.T) {
	f := newLedgerFixture(t)

	balance, err := f.ledger.Balance(context.Background(), "cust-nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}
