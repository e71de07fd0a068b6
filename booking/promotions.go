// promotions.go - Promotion creation with the per-unit non-overlap invariant.
package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromotionService manages promotion windows.
type PromotionService struct {
	Store PromotionStore
	Clock Clock
}

func NewPromotionService(store PromotionStore, clock Clock) *PromotionService {
	return &PromotionService{Store: store, Clock: clock}
}

// CreatePromotionParams carries an operator's promotion request.
type CreatePromotionParams struct {
	UnitID          UnitID // empty = global
	Start           Date
	End             Date
	DiscountPercent decimal.Decimal
}

// Create validates the window and percentage, then inserts. The store
// enforces the non-overlap invariant inside the insert transaction, so
// two racing creates for the same unit cannot both land.
func (s *PromotionService) Create(ctx context.Context, p CreatePromotionParams) (*Promotion, error) {
	if p.End.Before(p.Start) {
		return nil, &InvalidRangeError{Start: p.Start, End: p.End}
	}
	if !p.DiscountPercent.IsPositive() || p.DiscountPercent.GreaterThan(hundred) {
		return nil, ErrPromotionInvalid
	}

	promo := Promotion{
		ID:              PromotionID(uuid.NewString()),
		UnitID:          p.UnitID,
		Start:           p.Start,
		End:             p.End,
		DiscountPercent: p.DiscountPercent,
		Status:          PromotionActive,
		CreatedAt:       s.Clock.Now(),
	}
	if err := s.Store.CreatePromotion(ctx, promo); err != nil {
		return nil, err
	}
	return &promo, nil
}

// List returns promotions for a unit (or all when unitID is empty).
func (s *PromotionService) List(ctx context.Context, unitID UnitID) ([]Promotion, error) {
	return s.Store.ListPromotions(ctx, unitID)
}
