package domain

import (
	"time"

	"github.com/google/uuid"
)

// Coupon — купон, который раздаётся участникам.
type Coupon struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// MembershipLevel — уровень участника программы лояльности.
type MembershipLevel struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Member — участник программы лояльности.
type Member struct {
	ID       int64  `json:"id"`
	LevelID  *int64 `json:"level_id,omitempty"`
	IsActive bool   `json:"is_active"`
}

// CouponGrant — выданный участнику купон.
//
// Для пары (member, coupon) может быть не больше одного active grant.
// После создания планировщик grant не меняет.
type CouponGrant struct {
	ID               uuid.UUID   `json:"id"`
	MemberID         int64       `json:"member_id"`
	CouponID         int64       `json:"coupon_id"`
	Status           GrantStatus `json:"status"`
	AssignedAt       time.Time   `json:"assigned_at"`
	VerificationCode string      `json:"verification_code"`
}

// DispatchReport — итог раздачи купона когорте.
type DispatchReport struct {
	Granted int `json:"granted"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}

// Total возвращает размер обработанной когорты.
func (r DispatchReport) Total() int {
	return r.Granted + r.Skipped + r.Errored
}
