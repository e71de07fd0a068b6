package booking_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayward/condotel-engine/booking"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func testUnit(rate int64) *booking.Unit {
	return &booking.Unit{
		ID:          "unit-1",
		HostID:      "host-1",
		Name:        "Seaview 101",
		NightlyRate: decimal.NewFromInt(rate),
	}
}

func activePromotion(percent int64) *booking.Promotion {
	return &booking.Promotion{
		ID:              "promo-1",
		Start:           booking.NewDate(2025, time.June, 1),
		End:             booking.NewDate(2025, time.June, 30),
		DiscountPercent: decimal.NewFromInt(percent),
		Status:          booking.PromotionActive,
	}
}

func activeVoucher(amount, percent int64) *booking.Voucher {
	return &booking.Voucher{
		ID:              "v-1",
		Code:            "STAY-TEST0001",
		DiscountAmount:  decimal.NewFromInt(amount),
		DiscountPercent: decimal.NewFromInt(percent),
		ValidFrom:       booking.NewDate(2025, time.January, 1),
		ValidTo:         booking.NewDate(2025, time.December, 31),
		UsageLimit:      1,
		Status:          booking.VoucherActive,
	}
}

func juneClock() *booking.FixedClock {
	return booking.NewFixedClock(2025, time.June, 10)
}

// =============================================================================
// BASE PRICE
// =============================================================================

func TestComputePrice_BaseOnly(t *testing.T) {
	// GIVEN: A unit at 1,000,000/night and a two-night stay
	// WHEN: Pricing with no discounts
	// THEN: Total is 2,000,000

	pricer := booking.NewPricer(juneClock())

	q, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 12),
		nil, nil, "cust-1", 0)

	require.NoError(t, err)
	assert.Equal(t, 2, q.Nights)
	assert.Equal(t, "2000000", q.Total.String())
}

func TestComputePrice_InvalidRange_Rejected(t *testing.T) {
	// GIVEN: checkOut on or before checkIn
	// WHEN: Pricing the stay
	// THEN: InvalidRangeError

	pricer := booking.NewPricer(juneClock())
	day := booking.NewDate(2025, time.June, 10)

	_, err := pricer.ComputePrice(testUnit(500_000), day, day, nil, nil, "cust-1", 0)

	var rangeErr *booking.InvalidRangeError
	assert.ErrorAs(t, err, &rangeErr)
}

// =============================================================================
// DISCOUNT STACKING
// =============================================================================

func TestComputePrice_PromotionPercent(t *testing.T) {
	// GIVEN: 1,000,000/night, two nights, an active 10% promotion
	// WHEN: Pricing the stay
	// THEN: 2,000,000 - 200,000 = 1,800,000

	pricer := booking.NewPricer(juneClock())

	q, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 12),
		activePromotion(10), nil, "cust-1", 0)

	require.NoError(t, err)
	assert.Equal(t, "200000", q.PromotionDiscount.String())
	assert.Equal(t, "1800000", q.Total.String())
}

func TestComputePrice_PromotionThenPoints(t *testing.T) {
	// GIVEN: The 1,800,000 discounted total from the 10% promotion
	// WHEN: Also redeeming 2,000 points (= 2 currency units)
	// THEN: Total is 1,799,998

	pricer := booking.NewPricer(juneClock())

	q, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 12),
		activePromotion(10), nil, "cust-1", 2000)

	require.NoError(t, err)
	assert.Equal(t, "2", q.PointsDiscount.String())
	assert.Equal(t, "1799998", q.Total.String())
}

func TestComputePrice_VoucherAmountAndPercent(t *testing.T) {
	// GIVEN: Base 2,000,000 and a voucher worth 200,000 + 10%
	// WHEN: Pricing with the voucher
	// THEN: Discount is 200,000 + 200,000 (10% of the 2,000,000 running
	//       price) = 400,000, total 1,600,000

	pricer := booking.NewPricer(juneClock())

	q, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 12),
		nil, activeVoucher(200_000, 10), "cust-1", 0)

	require.NoError(t, err)
	assert.Equal(t, "400000", q.VoucherDiscount.String())
	assert.Equal(t, "1600000", q.Total.String())
}

func TestComputePrice_VoucherAppliesAfterPromotion(t *testing.T) {
	// GIVEN: A 10% promotion and a 10% voucher on a 2,000,000 base
	// WHEN: Pricing with both
	// THEN: Promotion takes 200,000 off the base, the voucher percent
	//       applies to the already-discounted 1,800,000 (180,000)

	pricer := booking.NewPricer(juneClock())

	q, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 12),
		activePromotion(10), activeVoucher(0, 10), "cust-1", 0)

	require.NoError(t, err)
	assert.Equal(t, "200000", q.PromotionDiscount.String())
	assert.Equal(t, "180000", q.VoucherDiscount.String())
	assert.Equal(t, "1620000", q.Total.String())
}

func TestComputePrice_DiscountsClampAtZero(t *testing.T) {
	// GIVEN: A cheap stay and a voucher larger than the price
	// WHEN: Pricing with the voucher
	// THEN: The total clamps to zero, never negative

	pricer := booking.NewPricer(juneClock())

	q, err := pricer.ComputePrice(testUnit(50_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 11),
		nil, activeVoucher(200_000, 0), "cust-1", 0)

	require.NoError(t, err)
	assert.Equal(t, "0", q.Total.String())
	assert.Equal(t, "50000", q.VoucherDiscount.String(), "clamped to the remaining price")
}

func TestComputePrice_PointsExceedingPrice_Rejected(t *testing.T) {
	// GIVEN: A 50,000 stay
	// WHEN: Redeeming points worth more than the price
	// THEN: Rejected (points are a real balance, not clamped away)

	pricer := booking.NewPricer(juneClock())

	_, err := pricer.ComputePrice(testUnit(50_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 11),
		nil, nil, "cust-1", 51_000*booking.PointsPerCurrencyUnit)

	var exceedsErr *booking.DiscountExceedsPriceError
	assert.ErrorAs(t, err, &exceedsErr)
}

// =============================================================================
// VALIDITY CHECKS
// =============================================================================

func TestComputePrice_ExpiredPromotion_Rejected(t *testing.T) {
	// GIVEN: Today is after the promotion window
	// WHEN: Pricing with the promotion
	// THEN: ErrPromotionInvalid

	pricer := booking.NewPricer(booking.NewFixedClock(2025, time.July, 15))

	_, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.July, 20), booking.NewDate(2025, time.July, 22),
		activePromotion(10), nil, "cust-1", 0)

	assert.ErrorIs(t, err, booking.ErrPromotionInvalid)
}

func TestComputePrice_DisabledPromotion_Rejected(t *testing.T) {
	pricer := booking.NewPricer(juneClock())
	promo := activePromotion(10)
	promo.Status = booking.PromotionDisabled

	_, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 12),
		promo, nil, "cust-1", 0)

	assert.ErrorIs(t, err, booking.ErrPromotionInvalid)
}

func TestComputePrice_PromotionForOtherUnit_Rejected(t *testing.T) {
	pricer := booking.NewPricer(juneClock())
	promo := activePromotion(10)
	promo.UnitID = "unit-other"

	_, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 12),
		promo, nil, "cust-1", 0)

	assert.ErrorIs(t, err, booking.ErrPromotionInvalid)
}

func TestComputePrice_UsedUpVoucher_Rejected(t *testing.T) {
	pricer := booking.NewPricer(juneClock())
	v := activeVoucher(100_000, 0)
	v.UsedCount = v.UsageLimit

	_, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 12),
		nil, v, "cust-1", 0)

	assert.ErrorIs(t, err, booking.ErrVoucherInvalid)
}

func TestComputePrice_VoucherBoundToOtherCustomer_Rejected(t *testing.T) {
	pricer := booking.NewPricer(juneClock())
	v := activeVoucher(100_000, 0)
	v.CustomerID = "cust-other"

	_, err := pricer.ComputePrice(testUnit(1_000_000),
		booking.NewDate(2025, time.June, 10), booking.NewDate(2025, time.June, 12),
		nil, v, "cust-1", 0)

	assert.ErrorIs(t, err, booking.ErrVoucherInvalid)
}

// =============================================================================
// POINT CONVERSION
// =============================================================================

func TestPointsToDiscount(t *testing.T) {
	assert.Equal(t, "1", booking.PointsToDiscount(1000).String())
	assert.Equal(t, "2", booking.PointsToDiscount(2000).String())
	assert.Equal(t, "0", booking.PointsToDiscount(999).String())
}
