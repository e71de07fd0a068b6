/*
pricing.go - Price computation with stacked discounts

PURPOSE:
  Computes a booking's total from nightly rate × nights, then applies
  discount sources in a fixed additive order:

    base → promotion (percentage) → voucher (amount and/or percentage)
         → reward points (1,000 points = 1 currency unit)

  Promotion and voucher discounts are clamped so the running price never
  goes negative. A point redemption larger than the already-discounted
  price is rejected instead of clamped, because points are a real
  balance the customer would silently forfeit.

DETERMINISM:
  Promotion/voucher validity is evaluated against the injected clock's
  "today", never the wall clock, so quotes are reproducible in tests.

SEE ALSO:
  - rewards/ledger.go: validates point amounts before redemption
  - types.go: Promotion.ValidOn, Voucher.Redeemable
*/
package booking

import (
	"github.com/shopspring/decimal"
)

// PointsPerCurrencyUnit is the fixed redemption rate: 1,000 points buy
// one currency unit of discount.
const PointsPerCurrencyUnit = 1000

var hundred = decimal.NewFromInt(100)

// PointsToDiscount converts a point amount to its monetary discount.
func PointsToDiscount(points int64) decimal.Decimal {
	return decimal.NewFromInt(points / PointsPerCurrencyUnit)
}

// Quote is the breakdown of a computed price.
type Quote struct {
	Nights            int
	Base              decimal.Decimal
	PromotionDiscount decimal.Decimal
	VoucherDiscount   decimal.Decimal
	PointsDiscount    decimal.Decimal
	Total             decimal.Decimal
}

// Pricer computes booking prices.
type Pricer struct {
	Clock Clock
}

func NewPricer(clock Clock) *Pricer {
	return &Pricer{Clock: clock}
}

// ComputePrice prices a stay on the unit for [start, end). The
// promotion and voucher are optional (nil = not supplied); redeemPoints
// of 0 means no redemption. Point amount validity (minimum, step) is
// the reward ledger's concern, not the pricer's.
func (p *Pricer) ComputePrice(unit *Unit, start, end Date, promo *Promotion, v *Voucher, customerID CustomerID, redeemPoints int64) (Quote, error) {
	nights := DaysBetween(start, end)
	if nights <= 0 {
		return Quote{}, &InvalidRangeError{Start: start, End: end}
	}

	today := p.Clock.Today()
	q := Quote{Nights: nights}
	q.Base = unit.NightlyRate.Mul(decimal.NewFromInt(int64(nights)))
	running := q.Base

	if promo != nil {
		if !promo.ValidOn(today) || !promo.AppliesTo(unit.ID) {
			return Quote{}, ErrPromotionInvalid
		}
		discount := q.Base.Mul(promo.DiscountPercent).Div(hundred)
		q.PromotionDiscount = clampDiscount(discount, running)
		running = running.Sub(q.PromotionDiscount)
	}

	if v != nil {
		if !v.Redeemable(today, customerID, unit.ID) {
			return Quote{}, ErrVoucherInvalid
		}
		discount := v.DiscountAmount
		if !v.DiscountPercent.IsZero() {
			discount = discount.Add(running.Mul(v.DiscountPercent).Div(hundred))
		}
		q.VoucherDiscount = clampDiscount(discount, running)
		running = running.Sub(q.VoucherDiscount)
	}

	if redeemPoints > 0 {
		discount := PointsToDiscount(redeemPoints)
		if discount.GreaterThan(running) {
			return Quote{}, &DiscountExceedsPriceError{Price: running, Discount: discount}
		}
		q.PointsDiscount = discount
		running = running.Sub(discount)
	}

	if running.IsNegative() {
		running = decimal.Zero
	}
	q.Total = running
	return q, nil
}

// clampDiscount caps a discount at the remaining price so stacking can
// never produce a negative total.
func clampDiscount(discount, remaining decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(remaining) {
		return remaining
	}
	return discount
}
