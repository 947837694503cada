package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
)

// Schedule DTOs

// CreateScheduleRequest — запрос на планирование действия.
type CreateScheduleRequest struct {
	ContentType     string    `json:"content_type"`
	ContentID       int64     `json:"content_id"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	CreatedBy       int64     `json:"created_by"`
	ActionParameter string    `json:"action_parameter,omitempty"`
}

// RescheduleRequest — запрос на перенос pending-записи.
type RescheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
	By            int64     `json:"by"`
}

// CancelResponse — результат отмены.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ScheduleResponse — ответ с записью расписания.
type ScheduleResponse struct {
	ID              uuid.UUID  `json:"id"`
	ContentType     string     `json:"content_type"`
	ContentID       int64      `json:"content_id"`
	ActionParameter string     `json:"action_parameter,omitempty"`
	ScheduledTime   time.Time  `json:"scheduled_time"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	CreatedBy       int64      `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// ScheduleFromDomain конвертирует domain.ScheduleRecord в ScheduleResponse.
func ScheduleFromDomain(r *domain.ScheduleRecord) ScheduleResponse {
	if r == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:              r.ID,
		ContentType:     string(r.ContentType),
		ContentID:       r.ContentID,
		ActionParameter: r.ActionParameter,
		ScheduledTime:   r.ScheduledTime,
		Status:          string(r.Status),
		Attempts:        r.Attempts,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		ExecutedAt:      r.ExecutedAt,
		ErrorMessage:    r.ErrorMessage,
		LastError:       r.LastError,
	}
}

// Coupon DTOs

// GrantResponse — выданный купон.
type GrantResponse struct {
	ID               uuid.UUID `json:"id"`
	MemberID         int64     `json:"member_id"`
	CouponID         int64     `json:"coupon_id"`
	Status           string    `json:"status"`
	AssignedAt       time.Time `json:"assigned_at"`
	VerificationCode string    `json:"verification_code"`
}

// GrantFromDomain конвертирует domain.CouponGrant в GrantResponse.
func GrantFromDomain(g domain.CouponGrant) GrantResponse {
	return GrantResponse{
		ID:               g.ID,
		MemberID:         g.MemberID,
		CouponID:         g.CouponID,
		Status:           string(g.Status),
		AssignedAt:       g.AssignedAt,
		VerificationCode: g.VerificationCode,
	}
}
