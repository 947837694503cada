package api

import (
	"net/http"
	"strconv"

	"github.com/shaiso/Courier/internal/telemetry"
)

// ListCouponGrants возвращает grants, выданные по купону.
// GET /api/v1/coupons/{id}/grants
func (h *Handler) ListCouponGrants(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(w, "invalid coupon id")
		return
	}
	logger := telemetry.FromContext(r.Context())

	if _, err := h.coupons.GetByID(r.Context(), id); HandleRepoError(w, logger, err, "coupon not found") {
		return
	}

	grants, err := h.coupons.ListGrants(r.Context(), id)
	if HandleRepoError(w, logger, err, "") {
		return
	}

	result := make([]GrantResponse, len(grants))
	for i, g := range grants {
		result[i] = GrantFromDomain(g)
	}

	List(w, result, len(result))
}
