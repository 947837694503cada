package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/schedule"
	"github.com/shaiso/Courier/internal/telemetry"
)

// ListSchedules возвращает записи по возрастанию scheduled_time.
// GET /api/v1/schedules?content_type=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	var contentType *domain.ContentType
	if ct := r.URL.Query().Get("content_type"); ct != "" {
		v := domain.ContentType(ct)
		contentType = &v
	}

	records, err := h.schedules.GetScheduledTasks(r.Context(), contentType)
	if HandleServiceError(w, telemetry.FromContext(r.Context()), err, "") {
		return
	}

	result := make([]ScheduleResponse, len(records))
	for i := range records {
		result[i] = ScheduleFromDomain(&records[i])
	}

	List(w, result, len(result))
}

// CreateSchedule планирует действие над контентом.
// POST /api/v1/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.ScheduledTime.IsZero() {
		BadRequest(w, "scheduled_time is required")
		return
	}

	rec, err := h.schedules.Create(r.Context(), schedule.CreateRequest{
		ContentType:     domain.ContentType(req.ContentType),
		ContentID:       req.ContentID,
		ScheduledTime:   req.ScheduledTime,
		CreatedBy:       req.CreatedBy,
		ActionParameter: req.ActionParameter,
	})
	if HandleServiceError(w, telemetry.FromContext(r.Context()), err, "") {
		return
	}

	Created(w, ScheduleFromDomain(rec))
}

// GetSchedule возвращает запись по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	rec, err := h.schedules.Get(r.Context(), id)
	if HandleServiceError(w, telemetry.FromContext(r.Context()), err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(rec))
}

// CancelSchedule отменяет pending-запись.
// POST /api/v1/schedules/{id}/cancel
//
// Отмена записи, которой нет или которая уже не pending, не ошибка:
// ответ 200 с cancelled=false.
func (h *Handler) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	Success(w, CancelResponse{Cancelled: h.schedules.CancelSchedule(r.Context(), id)})
}

// RescheduleSchedule переносит pending-запись на новое время.
// POST /api/v1/schedules/{id}/reschedule
func (h *Handler) RescheduleSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.ScheduledTime.IsZero() {
		BadRequest(w, "scheduled_time is required")
		return
	}

	rec, err := h.schedules.RescheduleRecord(r.Context(), id, req.ScheduledTime, req.By)
	if HandleServiceError(w, telemetry.FromContext(r.Context()), err, "schedule not found") {
		return
	}

	Created(w, ScheduleFromDomain(rec))
}
