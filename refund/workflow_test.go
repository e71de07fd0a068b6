package refund_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayward/condotel-engine/booking"
	"github.com/stayward/condotel-engine/refund"
	"github.com/stayward/condotel-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type refundFixture struct {
	workflow *refund.Workflow
	svc      *booking.Service
	store    *sqlite.Store
	clock    *booking.FixedClock
}

func newRefundFixture(t *testing.T) *refundFixture {
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

	return &refundFixture{
		workflow: refund.NewWorkflow(store, store, clock),
		svc:      booking.NewService(store, clock),
		store:    store,
		clock:    clock,
	}
}

func (f *refundFixture) cancelledBooking(t *testing.T, customerID string) *booking.Booking {
	t.Helper()
	ctx := context.Background()
	b, _, err := f.svc.Create(ctx, booking.CreateParams{
		CustomerID: booking.CustomerID(customerID),
		UnitID:     "unit-1",
		Start:      booking.NewDate(2025, time.June, 10),
		End:        booking.NewDate(2025, time.June, 12),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, b.ID, booking.CustomerID(customerID)))
	return b
}

func (f *refundFixture) filedRequest(t *testing.T, customerID string) *refund.Request {
	t.Helper()
	b := f.cancelledBooking(t, customerID)
	r, err := f.workflow.File(context.Background(), b.ID, booking.CustomerID(customerID), refund.BankDetails{
		BankName:      "Kasikorn",
		AccountNumber: "123-4-56789-0",
		AccountHolder: "A. Guest",
	})
	require.NoError(t, err)
	return r
}

const validReason = "The cancellation was within the free window."

// =============================================================================
// FILING
// =============================================================================

func TestWorkflow_File_OpensPendingRequest(t *testing.T) {
	// GIVEN: A cancelled 2,000,000 booking
	// WHEN: The guest files a refund
	// THEN: A Pending attempt-1 request for the full amount

	f := newRefundFixture(t)
	r := f.filedRequest(t, "cust-1")

	assert.Equal(t, refund.StatusPending, r.Status)
	assert.Equal(t, 1, r.Attempt)
	assert.Equal(t, "2000000", r.Amount.String())
	assert.True(t, r.Status.Open())
}

func TestWorkflow_File_NonCancelledBooking_Rejected(t *testing.T) {
	// GIVEN: A booking still Pending
	// WHEN: Filing a refund
	// THEN: Rejected; refunds follow cancellation

	f := newRefundFixture(t)
	ctx := context.Background()
	b, _, err := f.svc.Create(ctx, booking.CreateParams{
		CustomerID: "cust-1",
		UnitID:     "unit-1",
		Start:      booking.NewDate(2025, time.June, 10),
		End:        booking.NewDate(2025, time.June, 12),
	})
	require.NoError(t, err)

	_, err = f.workflow.File(ctx, b.ID, "cust-1", refund.BankDetails{})

	var transErr *booking.TransitionError
	assert.ErrorAs(t, err, &transErr)
}

func TestWorkflow_File_ByNonOwner_Rejected(t *testing.T) {
	f := newRefundFixture(t)
	b := f.cancelledBooking(t, "cust-1")

	_, err := f.workflow.File(context.Background(), b.ID, "cust-2", refund.BankDetails{})
	assert.ErrorIs(t, err, booking.ErrNotOwner)
}

func TestWorkflow_File_Twice_Rejected(t *testing.T) {
	// GIVEN: A booking with a refund already filed
	// WHEN: Filing again
	// THEN: ErrRefundExists (one request per booking)

	f := newRefundFixture(t)
	r := f.filedRequest(t, "cust-1")

	_, err := f.workflow.File(context.Background(), r.BookingID, "cust-1", refund.BankDetails{})
	assert.ErrorIs(t, err, booking.ErrRefundExists)
}

// =============================================================================
// REJECTION AND APPEAL
// =============================================================================

func TestWorkflow_RejectThenAppeal_SecondReview(t *testing.T) {
	// GIVEN: A rejected attempt-1 request
	// WHEN: The guest appeals with a valid reason
	// THEN: Status Appealed, attempt 2, open again for review

	f := newRefundFixture(t)
	ctx := context.Background()
	r := f.filedRequest(t, "cust-1")

	rejected, err := f.workflow.Reject(ctx, r.ID, "op-1", "outside the free cancellation window")
	require.NoError(t, err)
	assert.Equal(t, refund.StatusRejected, rejected.Status)
	assert.False(t, rejected.Status.Open())

	appealed, err := f.workflow.Appeal(ctx, r.ID, "cust-1", validReason)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusAppealed, appealed.Status)
	assert.Equal(t, 2, appealed.Attempt)
	assert.True(t, appealed.Status.Open())
	assert.Equal(t, validReason, appealed.AppealReason)
}

func TestWorkflow_SecondRejection_Terminal(t *testing.T) {
	// GIVEN: A request rejected, appealed, and rejected again
	// WHEN: The guest tries a second appeal
	// THEN: ErrAppealExhausted; the request stays Rejected

	f := newRefundFixture(t)
	ctx := context.Background()
	r := f.filedRequest(t, "cust-1")

	_, err := f.workflow.Reject(ctx, r.ID, "op-1", "first rejection")
	require.NoError(t, err)
	_, err = f.workflow.Appeal(ctx, r.ID, "cust-1", validReason)
	require.NoError(t, err)
	_, err = f.workflow.Reject(ctx, r.ID, "op-1", "second rejection")
	require.NoError(t, err)

	_, err = f.workflow.Appeal(ctx, r.ID, "cust-1", validReason)
	assert.ErrorIs(t, err, booking.ErrAppealExhausted)

	stored, err := f.workflow.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, refund.StatusRejected, stored.Status)
}

func TestWorkflow_Appeal_ReasonLengthEnforced(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	r := f.filedRequest(t, "cust-1")
	_, err := f.workflow.Reject(ctx, r.ID, "op-1", "no")
	require.NoError(t, err)

	_, err = f.workflow.Appeal(ctx, r.ID, "cust-1", "too short")
	assert.ErrorIs(t, err, booking.ErrAppealReason)

	_, err = f.workflow.Appeal(ctx, r.ID, "cust-1", strings.Repeat("x", 501))
	assert.ErrorIs(t, err, booking.ErrAppealReason)
}

func TestWorkflow_Appeal_PendingRequest_Rejected(t *testing.T) {
	// GIVEN: A request still awaiting first review
	// WHEN: Appealing
	// THEN: Rejected; only a rejection can be appealed

	f := newRefundFixture(t)
	r := f.filedRequest(t, "cust-1")

	_, err := f.workflow.Appeal(context.Background(), r.ID, "cust-1", validReason)

	var transErr *booking.TransitionError
	assert.ErrorAs(t, err, &transErr)
}

func TestWorkflow_Appeal_ByNonOwner_Rejected(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	r := f.filedRequest(t, "cust-1")
	_, err := f.workflow.Reject(ctx, r.ID, "op-1", "no")
	require.NoError(t, err)

	_, err = f.workflow.Appeal(ctx, r.ID, "cust-2", validReason)
	assert.ErrorIs(t, err, booking.ErrNotOwner)
}

// =============================================================================
// CONFIRMATION
// =============================================================================

func TestWorkflow_Confirm_ClosesRequest(t *testing.T) {
	// GIVEN: An appealed request
	// WHEN: The operator confirms the refund
	// THEN: Completed with operator attribution, no longer open

	f := newRefundFixture(t)
	ctx := context.Background()
	r := f.filedRequest(t, "cust-1")
	_, err := f.workflow.Reject(ctx, r.ID, "op-1", "no")
	require.NoError(t, err)
	_, err = f.workflow.Appeal(ctx, r.ID, "cust-1", validReason)
	require.NoError(t, err)

	confirmed, err := f.workflow.Confirm(ctx, r.ID, "op-2")
	require.NoError(t, err)
	assert.Equal(t, refund.StatusCompleted, confirmed.Status)
	assert.Equal(t, "op-2", confirmed.ProcessedBy)
	require.NotNil(t, confirmed.ProcessedAt)
	assert.False(t, confirmed.Status.Open())
}

func TestWorkflow_Confirm_CompletedRequest_Rejected(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()
	r := f.filedRequest(t, "cust-1")
	_, err := f.workflow.Confirm(ctx, r.ID, "op-1")
	require.NoError(t, err)

	_, err = f.workflow.Confirm(ctx, r.ID, "op-1")

	var transErr *booking.TransitionError
	assert.ErrorAs(t, err, &transErr)
}

func TestWorkflow_List_FiltersByStatus(t *testing.T) {
	f := newRefundFixture(t)
	ctx := context.Background()

	r1 := f.filedRequest(t, "cust-1")
	_ = f.filedRequest(t, "cust-2")
	_, err := f.workflow.Reject(ctx, r1.ID, "op-1", "no")
	require.NoError(t, err)

	pending, err := f.workflow.List(ctx, refund.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := f.workflow.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
