package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("POST /api/v1/schedules/{id}/cancel", chain(http.HandlerFunc(h.CancelSchedule)))
	mux.Handle("POST /api/v1/schedules/{id}/reschedule", chain(http.HandlerFunc(h.RescheduleSchedule)))

	// Coupons
	mux.Handle("GET /api/v1/coupons/{id}/grants", chain(http.HandlerFunc(h.ListCouponGrants)))
}
