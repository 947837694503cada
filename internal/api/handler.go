package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/schedule"
)

// CouponReader — чтение купонов и выданных по ним grants.
type CouponReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Coupon, error)
	ListGrants(ctx context.Context, couponID int64) ([]domain.CouponGrant, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	schedules *schedule.Service
	coupons   CouponReader
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Schedules *schedule.Service
	Coupons   CouponReader
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		schedules: cfg.Schedules,
		coupons:   cfg.Coupons,
		logger:    logger,
	}
}
