/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model
  from the wire contract. Request types carry validator/v10 tags;
  handlers run the shared validator before touching domain logic.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

SEE ALSO:
  - handlers.go: decodes/validates these types
*/
package api

import (
	"github.com/stayward/condotel-engine/booking"
	"github.com/stayward/condotel-engine/payout"
	"github.com/stayward/condotel-engine/refund"
)

// =============================================================================
// BOOKINGS
// =============================================================================

type CreateBookingRequest struct {
	UnitID      string `json:"unitId" validate:"required"`
	StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
	PromotionID string `json:"promotionId,omitempty"`
	VoucherCode string `json:"voucherCode,omitempty"`
}

type BookingDTO struct {
	ID               string  `json:"id"`
	UnitID           string  `json:"unitId"`
	CustomerID       string  `json:"customerId"`
	StartDate        string  `json:"startDate"`
	EndDate          string  `json:"endDate"`
	TotalPrice       string  `json:"totalPrice"`
	Status           string  `json:"status"`
	PromotionID      string  `json:"promotionId,omitempty"`
	UsedRewardPoints bool    `json:"usedRewardPoints"`
	PaidToHost       bool    `json:"paidToHost"`
	PaidAt           *string `json:"paidAt,omitempty"`
	CreatedAt        string  `json:"createdAt"`
}

type QuoteDTO struct {
	Nights            int    `json:"nights"`
	Base              string `json:"base"`
	PromotionDiscount string `json:"promotionDiscount"`
	VoucherDiscount   string `json:"voucherDiscount"`
	PointsDiscount    string `json:"pointsDiscount"`
	Total             string `json:"total"`
}

type CreateBookingResponse struct {
	Booking BookingDTO `json:"booking"`
	Quote   QuoteDTO   `json:"quote"`
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
}

// =============================================================================
// UNITS / PROMOTIONS
// =============================================================================

type CreateUnitRequest struct {
	ID          string `json:"id"`
	HostID      string `json:"hostId" validate:"required"`
	Name        string `json:"name"`
	NightlyRate string `json:"nightlyRate" validate:"required"`
}

type UnitDTO struct {
	ID          string `json:"id"`
	HostID      string `json:"hostId"`
	Name        string `json:"name"`
	NightlyRate string `json:"nightlyRate"`
	CreatedAt   string `json:"createdAt"`
}

type CreatePromotionRequest struct {
	UnitID          string `json:"unitId,omitempty"` // empty = global
	StartDate       string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate         string `json:"endDate" validate:"required,datetime=2006-01-02"`
	DiscountPercent string `json:"discountPercent" validate:"required"`
}

type PromotionDTO struct {
	ID              string `json:"id"`
	UnitID          string `json:"unitId,omitempty"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	DiscountPercent string `json:"discountPercent"`
	Status          string `json:"status"`
}

// =============================================================================
// REWARDS / VOUCHERS
// =============================================================================

type RedeemRequest struct {
	BookingID      string `json:"bookingId" validate:"required"`
	PointsToRedeem int64  `json:"pointsToRedeem" validate:"required,gt=0"`
}

type RedeemResponse struct {
	BookingID        string `json:"bookingId"`
	NewTotalPrice    string `json:"newTotalPrice"`
	RemainingBalance int64  `json:"remainingBalance"`
}

type BalanceResponse struct {
	CustomerID string `json:"customerId"`
	Balance    int64  `json:"balance"`
}

type VoucherDTO struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	UnitID          string `json:"unitId,omitempty"`
	DiscountAmount  string `json:"discountAmount"`
	DiscountPercent string `json:"discountPercent"`
	ValidFrom       string `json:"validFrom"`
	ValidTo         string `json:"validTo"`
	UsageLimit      int    `json:"usageLimit"`
	UsedCount       int    `json:"usedCount"`
	Status          string `json:"status"`
}

// =============================================================================
// REFUNDS
// =============================================================================

type FileRefundRequest struct {
	BankName      string `json:"bankName" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required"`
	AccountHolder string `json:"accountHolder" validate:"required"`
}

type RejectRefundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type AppealRefundRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=500"`
}

type RefundDTO struct {
	ID              string  `json:"id"`
	BookingID       string  `json:"bookingId"`
	CustomerID      string  `json:"customerId"`
	Amount          string  `json:"amount"`
	Status          string  `json:"status"`
	Attempt         int     `json:"attempt"`
	AppealReason    string  `json:"appealReason,omitempty"`
	AppealedAt      *string `json:"appealedAt,omitempty"`
	RejectionReason string  `json:"rejectionReason,omitempty"`
	RejectedAt      *string `json:"rejectedAt,omitempty"`
	ProcessedBy     string  `json:"processedBy,omitempty"`
	ProcessedAt     *string `json:"processedAt,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

// =============================================================================
// PAYOUTS / SETTLEMENT
// =============================================================================

type PayoutItemDTO struct {
	BookingID string `json:"bookingId"`
	UnitID    string `json:"unitId"`
	HostID    string `json:"hostId"`
	EndDate   string `json:"endDate"`
	Amount    string `json:"amount"`
}

type PayoutResultDTO struct {
	BookingID string `json:"bookingId"`
	Amount    string `json:"amount"`
	Paid      bool   `json:"paid"`
	Reason    string `json:"reason,omitempty"`
}

type PayoutSummaryDTO struct {
	Processed   int               `json:"processed"`
	Paid        int               `json:"paid"`
	Failed      int               `json:"failed"`
	TotalAmount string            `json:"totalAmount"`
	Results     []PayoutResultDTO `json:"results"`
}

type SettlementRunDTO struct {
	Completed      int   `json:"completed"`
	Failed         int   `json:"failed"`
	VouchersIssued int   `json:"vouchersIssued"`
	PointsAccrued  int64 `json:"pointsAccrued"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toBookingDTO(b *booking.Booking) BookingDTO {
	dto := BookingDTO{
		ID:               string(b.ID),
		UnitID:           string(b.UnitID),
		CustomerID:       string(b.CustomerID),
		StartDate:        b.Start.String(),
		EndDate:          b.End.String(),
		TotalPrice:       b.TotalPrice.String(),
		Status:           string(b.Status),
		PromotionID:      string(b.PromotionID),
		UsedRewardPoints: b.UsedRewardPoints,
		PaidToHost:       b.PaidToHost,
		CreatedAt:        formatTimestamp(b.CreatedAt),
	}
	if b.PaidAt != nil {
		s := formatTimestamp(*b.PaidAt)
		dto.PaidAt = &s
	}
	return dto
}

func toQuoteDTO(q booking.Quote) QuoteDTO {
	return QuoteDTO{
		Nights:            q.Nights,
		Base:              q.Base.String(),
		PromotionDiscount: q.PromotionDiscount.String(),
		VoucherDiscount:   q.VoucherDiscount.String(),
		PointsDiscount:    q.PointsDiscount.String(),
		Total:             q.Total.String(),
	}
}

func toVoucherDTO(v booking.Voucher) VoucherDTO {
	return VoucherDTO{
		ID:              string(v.ID),
		Code:            string(v.Code),
		UnitID:          string(v.UnitID),
		DiscountAmount:  v.DiscountAmount.String(),
		DiscountPercent: v.DiscountPercent.String(),
		ValidFrom:       v.ValidFrom.String(),
		ValidTo:         v.ValidTo.String(),
		UsageLimit:      v.UsageLimit,
		UsedCount:       v.UsedCount,
		Status:          string(v.Status),
	}
}

func toRefundDTO(r *refund.Request) RefundDTO {
	dto := RefundDTO{
		ID:              string(r.ID),
		BookingID:       string(r.BookingID),
		CustomerID:      string(r.CustomerID),
		Amount:          r.Amount.String(),
		Status:          string(r.Status),
		Attempt:         r.Attempt,
		AppealReason:    r.AppealReason,
		RejectionReason: r.RejectionReason,
		ProcessedBy:     r.ProcessedBy,
		CreatedAt:       formatTimestamp(r.CreatedAt),
	}
	if r.AppealedAt != nil {
		s := formatTimestamp(*r.AppealedAt)
		dto.AppealedAt = &s
	}
	if r.RejectedAt != nil {
		s := formatTimestamp(*r.RejectedAt)
		dto.RejectedAt = &s
	}
	if r.ProcessedAt != nil {
		s := formatTimestamp(*r.ProcessedAt)
		dto.ProcessedAt = &s
	}
	return dto
}

func toPayoutItemDTO(i payout.Item) PayoutItemDTO {
	return PayoutItemDTO{
		BookingID: string(i.BookingID),
		UnitID:    string(i.UnitID),
		HostID:    string(i.HostID),
		EndDate:   i.EndDate.String(),
		Amount:    i.Amount.String(),
	}
}

func toPayoutSummaryDTO(s payout.Summary) PayoutSummaryDTO {
	dto := PayoutSummaryDTO{
		Processed:   s.Processed,
		Paid:        s.Paid,
		Failed:      s.Failed,
		TotalAmount: s.TotalAmount.String(),
		Results:     make([]PayoutResultDTO, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		dto.Results = append(dto.Results, toPayoutResultDTO(r))
	}
	return dto
}

func toPayoutResultDTO(r payout.Result) PayoutResultDTO {
	return PayoutResultDTO{
		BookingID: string(r.BookingID),
		Amount:    r.Amount.String(),
		Paid:      r.Paid,
		Reason:    r.Reason,
	}
}
