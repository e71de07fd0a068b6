/*
handlers.go - HTTP handlers for the booking & settlement engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization and input validation, then delegates to domain logic.

ENDPOINTS:
  Guest:
    POST   /booking                     Create booking (price computed)
    GET    /booking/check-availability  Availability probe
    GET    /booking/{id}                Booking detail (owner/admin)
    DELETE /booking/{id}                Cancel booking
    POST   /booking/{id}/refund         File refund for cancelled booking
    GET    /tenant/bookings             Caller's bookings
    POST   /tenant/reward/redeem        Redeem points on pending booking
    GET    /tenant/reward/balance       Point balance
    GET    /tenant/vouchers             Caller's vouchers
    POST   /tenant/refunds/{id}/appeal  Appeal a rejected refund

  Admin:
    POST   /booking/{id}/confirm        Payment acknowledged
    POST   /admin/units                 Register unit
    GET    /admin/units                 List units
    POST   /admin/promotions            Create promotion (non-overlap)
    GET    /admin/promotions            List promotions
    GET    /admin/refunds               List refund requests
    POST   /admin/refunds/{id}/confirm  Confirm (pay out) refund
    POST   /admin/refunds/{id}/reject   Reject refund
    GET    /admin/payouts/eligible      Payout-eligible bookings
    POST   /admin/payouts/process-all   Settle all eligible
    POST   /admin/payouts/{bookingId}/confirm  Settle one
    POST   /admin/settlement/run        Trigger an immediate settlement pass

IDENTITY:
  Authentication is an upstream collaborator. The gateway injects
  X-Customer-ID and X-Role; handlers read them, returning 401 when the
  identity is missing and 404 on ownership mismatch.

ERROR HANDLING:
  Domain errors map to status codes via the booking.Is* classifiers:
  400 validation, 404 not found, 409 conflict, 422 business rule,
  500 internal.

SEE ALSO:
  - dto.go: request/response types
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayward/condotel-engine/booking"
	"github.com/stayward/condotel-engine/payout"
	"github.com/stayward/condotel-engine/refund"
	"github.com/stayward/condotel-engine/rewards"
	"github.com/stayward/condotel-engine/store/sqlite"
	"github.com/stayward/condotel-engine/voucher"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for the HTTP layer.
type Handler struct {
	Store        *sqlite.Store
	Bookings     *booking.Service
	Availability *booking.Checker
	Promotions   *booking.PromotionService
	Rewards      *rewards.Ledger
	Vouchers     *voucher.Issuer
	Refunds      *refund.Workflow
	Payouts      *payout.Engine
	Scheduler    *SettlementScheduler
	Clock        booking.Clock

	validate *validator.Validate
}

// NewHandler wires the engine's services over one store.
func NewHandler(store *sqlite.Store, clock booking.Clock) *Handler {
	svc := booking.NewService(store, clock)
	h := &Handler{
		Store:        store,
		Bookings:     svc,
		Availability: booking.NewChecker(store),
		Promotions:   booking.NewPromotionService(store, clock),
		Rewards:      rewards.NewLedger(store, store),
		Vouchers:     voucher.NewIssuer(store, clock),
		Refunds:      refund.NewWorkflow(store, store, clock),
		Payouts:      payout.NewEngine(store, clock),
		Clock:        clock,
		validate:     validator.New(),
	}
	h.Scheduler = NewSettlementScheduler(svc, h.Vouchers, h.Rewards, clock)
	return h
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// CreateBooking handles POST /booking.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, err := booking.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startDate (use YYYY-MM-DD)", err)
		return
	}
	end, err := booking.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endDate (use YYYY-MM-DD)", err)
		return
	}

	b, quote, err := h.Bookings.Create(r.Context(), booking.CreateParams{
		CustomerID:  customerID,
		UnitID:      booking.UnitID(req.UnitID),
		Start:       start,
		End:         end,
		PromotionID: booking.PromotionID(req.PromotionID),
		VoucherCode: booking.VoucherCode(req.VoucherCode),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateBookingResponse{
		Booking: toBookingDTO(b),
		Quote:   toQuoteDTO(quote),
	})
}

// CheckAvailability handles GET /booking/check-availability.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	unitID := r.URL.Query().Get("unitId")
	checkIn := r.URL.Query().Get("checkIn")
	checkOut := r.URL.Query().Get("checkOut")
	if unitID == "" || checkIn == "" || checkOut == "" {
		writeError(w, http.StatusBadRequest, "unitId, checkIn and checkOut are required", nil)
		return
	}

	start, err := booking.ParseDate(checkIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid checkIn (use YYYY-MM-DD)", err)
		return
	}
	end, err := booking.ParseDate(checkOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid checkOut (use YYYY-MM-DD)", err)
		return
	}

	available, err := h.Availability.IsAvailable(r.Context(), booking.UnitID(unitID), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{Available: available})
}

// GetBooking handles GET /booking/{id}. Owner or admin only.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := booking.BookingID(chi.URLParam(r, "id"))
	b, err := h.Bookings.Store.GetBooking(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !isAdmin(r) && b.CustomerID != booking.CustomerID(r.Header.Get(headerCustomerID)) {
		writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// ListMyBookings handles GET /tenant/bookings.
func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	bookings, err := h.Bookings.Store.ListBookingsByCustomer(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]BookingDTO, 0, len(bookings))
	for i := range bookings {
		dtos = append(dtos, toBookingDTO(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CancelBooking handles DELETE /booking/{id}.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	id := booking.BookingID(chi.URLParam(r, "id"))
	if err := h.Bookings.Cancel(r.Context(), id, customerID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfirmBooking handles POST /booking/{id}/confirm (admin; invoked by
// the payment collaborator's callback).
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		writeError(w, http.StatusForbidden, "Admin role required", nil)
		return
	}
	id := booking.BookingID(chi.URLParam(r, "id"))
	if err := h.Bookings.Confirm(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	b, err := h.Bookings.Store.GetBooking(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// =============================================================================
// UNIT / PROMOTION HANDLERS
// =============================================================================

// CreateUnit handles POST /admin/units.
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if !h.decode(w, r, &req) {
		return
	}

	rate, err := decimal.NewFromString(req.NightlyRate)
	if err != nil || !rate.IsPositive() {
		writeError(w, http.StatusBadRequest, "nightlyRate must be a positive number", err)
		return
	}

	id := req.ID
	if id == "" {
		id = newID()
	}
	u := booking.Unit{
		ID:          booking.UnitID(id),
		HostID:      booking.HostID(req.HostID),
		Name:        req.Name,
		NightlyRate: rate,
		CreatedAt:   h.Clock.Now(),
	}
	if err := h.Store.SaveUnit(r.Context(), u); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUnitDTO(u))
}

// ListUnits handles GET /admin/units.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Store.ListUnits(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]UnitDTO, 0, len(units))
	for _, u := range units {
		dtos = append(dtos, toUnitDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePromotion handles POST /admin/promotions.
func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req CreatePromotionRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, err := booking.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startDate (use YYYY-MM-DD)", err)
		return
	}
	end, err := booking.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endDate (use YYYY-MM-DD)", err)
		return
	}
	percent, err := decimal.NewFromString(req.DiscountPercent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid discountPercent", err)
		return
	}

	p, err := h.Promotions.Create(r.Context(), booking.CreatePromotionParams{
		UnitID:          booking.UnitID(req.UnitID),
		Start:           start,
		End:             end,
		DiscountPercent: percent,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPromotionDTO(*p))
}

// ListPromotions handles GET /admin/promotions?unitId=.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := h.Promotions.List(r.Context(), booking.UnitID(r.URL.Query().Get("unitId")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PromotionDTO, 0, len(promos))
	for _, p := range promos {
		dtos = append(dtos, toPromotionDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REWARD HANDLERS
// =============================================================================

// RedeemPoints handles POST /tenant/reward/redeem.
func (h *Handler) RedeemPoints(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}

	newTotal, err := h.Rewards.Redeem(r.Context(), customerID, booking.BookingID(req.BookingID), req.PointsToRedeem)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	balance, err := h.Rewards.Balance(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RedeemResponse{
		BookingID:        req.BookingID,
		NewTotalPrice:    newTotal.String(),
		RemainingBalance: balance,
	})
}

// RewardBalance handles GET /tenant/reward/balance.
func (h *Handler) RewardBalance(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	balance, err := h.Rewards.Balance(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{CustomerID: string(customerID), Balance: balance})
}

// ListMyVouchers handles GET /tenant/vouchers.
func (h *Handler) ListMyVouchers(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}
	vouchers, err := h.Vouchers.ListForCustomer(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]VoucherDTO, 0, len(vouchers))
	for _, v := range vouchers {
		dtos = append(dtos, toVoucherDTO(v))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REFUND HANDLERS
// =============================================================================

// FileRefund handles POST /booking/{id}/refund.
func (h *Handler) FileRefund(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req FileRefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := booking.BookingID(chi.URLParam(r, "id"))
	req2, err := h.Refunds.File(r.Context(), id, customerID, refund.BankDetails{
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountHolder: req.AccountHolder,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRefundDTO(req2))
}

// AppealRefund handles POST /tenant/refunds/{id}/appeal.
func (h *Handler) AppealRefund(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req AppealRefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := refund.RequestID(chi.URLParam(r, "id"))
	updated, err := h.Refunds.Appeal(r.Context(), id, customerID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundDTO(updated))
}

// ListRefunds handles GET /admin/refunds?status=.
func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Refunds.List(r.Context(), refund.Status(r.URL.Query().Get("status")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]RefundDTO, 0, len(requests))
	for i := range requests {
		dtos = append(dtos, toRefundDTO(&requests[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ConfirmRefund handles POST /admin/refunds/{id}/confirm.
func (h *Handler) ConfirmRefund(w http.ResponseWriter, r *http.Request) {
	id := refund.RequestID(chi.URLParam(r, "id"))
	updated, err := h.Refunds.Confirm(r.Context(), id, operatorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundDTO(updated))
}

// RejectRefund handles POST /admin/refunds/{id}/reject.
func (h *Handler) RejectRefund(w http.ResponseWriter, r *http.Request) {
	var req RejectRefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := refund.RequestID(chi.URLParam(r, "id"))
	updated, err := h.Refunds.Reject(r.Context(), id, operatorID(r), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundDTO(updated))
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// EligiblePayouts handles GET /admin/payouts/eligible?hostId=.
func (h *Handler) EligiblePayouts(w http.ResponseWriter, r *http.Request) {
	items, err := h.Payouts.GetEligible(r.Context(), booking.HostID(r.URL.Query().Get("hostId")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PayoutItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, toPayoutItemDTO(item))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ProcessAllPayouts handles POST /admin/payouts/process-all.
func (h *Handler) ProcessAllPayouts(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Payouts.ProcessAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutSummaryDTO(summary))
}

// ConfirmPayout handles POST /admin/payouts/{bookingId}/confirm.
func (h *Handler) ConfirmPayout(w http.ResponseWriter, r *http.Request) {
	id := booking.BookingID(chi.URLParam(r, "bookingId"))
	result := h.Payouts.ProcessOne(r.Context(), id)
	writeJSON(w, http.StatusOK, toPayoutResultDTO(result))
}

// RunSettlement handles POST /admin/settlement/run.
func (h *Handler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	run := h.Scheduler.RunNow(r.Context())
	writeJSON(w, http.StatusOK, SettlementRunDTO{
		Completed:      run.Completed,
		Failed:         run.Failed,
		VouchersIssued: run.VouchersIssued,
		PointsAccrued:  run.PointsAccrued,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

const (
	headerCustomerID = "X-Customer-ID"
	headerRole       = "X-Role"
)

// callerID extracts the gateway-injected customer identity, writing a
// 401 when absent.
func callerID(w http.ResponseWriter, r *http.Request) (booking.CustomerID, bool) {
	id := r.Header.Get(headerCustomerID)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "Missing caller identity", nil)
		return "", false
	}
	return booking.CustomerID(id), true
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get(headerRole) == "admin"
}

// operatorID identifies the admin performing a manual operation.
func operatorID(r *http.Request) string {
	if id := r.Header.Get(headerCustomerID); id != "" {
		return id
	}
	return "admin"
}

// decode parses and validates a JSON request body, writing a 400 on
// failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error categories to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case booking.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case booking.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case booking.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case booking.IsBusinessRule(err):
		writeError(w, http.StatusUnprocessableEntity, "Operation not permitted", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func toUnitDTO(u booking.Unit) UnitDTO {
	return UnitDTO{
		ID:          string(u.ID),
		HostID:      string(u.HostID),
		Name:        u.Name,
		NightlyRate: u.NightlyRate.String(),
		CreatedAt:   formatTimestamp(u.CreatedAt),
	}
}

func toPromotionDTO(p booking.Promotion) PromotionDTO {
	return PromotionDTO{
		ID:              string(p.ID),
		UnitID:          string(p.UnitID),
		StartDate:       p.Start.String(),
		EndDate:         p.End.String(),
		DiscountPercent: p.DiscountPercent.String(),
		Status:          string(p.Status),
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func newID() string {
	return uuid.NewString()
}
