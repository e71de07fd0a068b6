/*
server.go - Router and middleware

PURPOSE:
  Assembles the chi router: request logging, panic recovery, request
  IDs, permissive CORS for the gateway, and every route the engine
  serves. Route handlers live in handlers.go.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the HTTP surface over a fully wired Handler.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Customer-ID", "X-Role"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/booking", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		r.Get("/check-availability", h.CheckAvailability)
		r.Get("/{id}", h.GetBooking)
		r.Delete("/{id}", h.CancelBooking)
		r.Post("/{id}/confirm", h.ConfirmBooking)
		r.Post("/{id}/refund", h.FileRefund)
	})

	r.Route("/tenant", func(r chi.Router) {
		r.Get("/bookings", h.ListMyBookings)
		r.Post("/reward/redeem", h.RedeemPoints)
		r.Get("/reward/balance", h.RewardBalance)
		r.Get("/vouchers", h.ListMyVouchers)
		r.Post("/refunds/{id}/appeal", h.AppealRefund)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)

		r.Post("/units", h.CreateUnit)
		r.Get("/units", h.ListUnits)
		r.Post("/promotions", h.CreatePromotion)
		r.Get("/promotions", h.ListPromotions)
		r.Get("/refunds", h.ListRefunds)
		r.Post("/refunds/{id}/confirm", h.ConfirmRefund)
		r.Post("/refunds/{id}/reject", h.RejectRefund)
		r.Get("/payouts/eligible", h.EligiblePayouts)
		r.Post("/payouts/process-all", h.ProcessAllPayouts)
		r.Post("/payouts/{bookingId}/confirm", h.ConfirmPayout)
		r.Post("/settlement/run", h.RunSettlement)
	})

	return r
}

// requireAdmin gates the operator surface on the gateway-asserted role.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r) {
			writeError(w, http.StatusForbidden, "Admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
