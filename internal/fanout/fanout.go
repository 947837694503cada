// Package fanout раздаёт купон каждому участнику когорты.
//
// Раздача идемпотентна: участник с active grant пропускается, поэтому
// повторный запуск после сбоя или redelivery не выдаёт купон дважды.
// Ошибка одного участника не прерывает раздачу остальным. Истёкший
// контекст прерывает всю раздачу с ошибкой.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/telemetry"
)

const defaultMaxCodeDraws = 8

// CouponStore — купоны и гранты.
type CouponStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Coupon, error)
	HasActiveGrant(ctx context.Context, memberID, couponID int64) (bool, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	InsertGrant(ctx context.Context, g *domain.CouponGrant) error
}

// CohortResolver разрешает Target в ID участников.
type CohortResolver interface {
	Resolve(ctx context.Context, t domain.Target) ([]int64, error)
}

// TxRunner открывает транзакцию (или savepoint внутри текущей).
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine — движок раздачи купонов.
type Engine struct {
	coupons      CouponStore
	resolver     CohortResolver
	tx           TxRunner
	codes        CodeGenerator
	maxCodeDraws int
	now          func() time.Time
	logger       *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	Coupons  CouponStore
	Resolver CohortResolver
	Tx       TxRunner

	// Codes — генератор кодов (default: RandomCode).
	Codes CodeGenerator

	// MaxCodeDraws — сколько раз тянуть код до ErrCodeExhausted (default: 8).
	MaxCodeDraws int

	Now    func() time.Time
	Logger *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	codes := cfg.Codes
	if codes == nil {
		codes = RandomCode
	}
	maxDraws := cfg.MaxCodeDraws
	if maxDraws <= 0 {
		maxDraws = defaultMaxCodeDraws
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		coupons:      cfg.Coupons,
		resolver:     cfg.Resolver,
		tx:           cfg.Tx,
		codes:        codes,
		maxCodeDraws: maxDraws,
		now:          now,
		logger:       logger,
	}
}

// Dispatch выдаёт купон каждому участнику когорты.
//
// Несуществующий или неактивный купон — domain.ErrInvalidTarget до разрешения когорты.
// Ошибки отдельных участников попадают в Errored и не возвращаются.
// Истёкший или отменённый ctx прерывает раздачу с ошибкой.
func (e *Engine) Dispatch(ctx context.Context, couponID int64, t domain.Target) (domain.DispatchReport, error) {
	var report domain.DispatchReport

	coupon, err := e.coupons.GetByID(ctx, couponID)
	if errors.Is(err, repo.ErrNotFound) {
		return report, fmt.Errorf("%w: coupon %d does not exist", domain.ErrInvalidTarget, couponID)
	}
	if err != nil {
		return report, fmt.Errorf("get coupon %d: %w", couponID, err)
	}
	if !coupon.IsActive {
		return report, fmt.Errorf("%w: coupon %d is inactive", domain.ErrInvalidTarget, couponID)
	}

	members, err := e.resolver.Resolve(ctx, t)
	if err != nil {
		return report, err
	}

	logger := e.logger.With("coupon_id", couponID, "target", t.String())

	for _, memberID := range members {
		if err := ctx.Err(); err != nil {
			return report, e.interrupted(logger, report, len(members), err)
		}

		err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
			return e.grant(ctx, memberID, couponID)
		})

		switch {
		case err == nil:
			report.Granted++
		case errors.Is(err, errAlreadyGranted), errors.Is(err, repo.ErrAlreadyExists):
			report.Skipped++
		case ctx.Err() != nil:
			return report, e.interrupted(logger, report, len(members), err)
		default:
			report.Errored++
			logger.Warn("coupon grant failed", "member_id", memberID, "error", err)
		}
	}

	e.observe(report)
	logger.Info("coupon dispatched",
		"cohort", len(members),
		"granted", report.Granted,
		"skipped", report.Skipped,
		"errored", report.Errored,
	)

	return report, nil
}

// interrupted — раздача прервана отменой или таймаутом контекста.
func (e *Engine) interrupted(logger *slog.Logger, report domain.DispatchReport, cohort int, err error) error {
	done := report.Granted + report.Skipped + report.Errored
	logger.Warn("coupon dispatch interrupted",
		"cohort", cohort,
		"processed", done,
		"error", err,
	)
	return fmt.Errorf("coupon dispatch interrupted after %d of %d members: %w", done, cohort, err)
}

func (e *Engine) observe(report domain.DispatchReport) {
	telemetry.CouponGrants.WithLabelValues("granted").Add(float64(report.Granted))
	telemetry.CouponGrants.WithLabelValues("skipped").Add(float64(report.Skipped))
	telemetry.CouponGrants.WithLabelValues("errored").Add(float64(report.Errored))
}

// grant выдаёт купон одному участнику. Вызывается внутри savepoint.
func (e *Engine) grant(ctx context.Context, memberID, couponID int64) error {
	has, err := e.coupons.HasActiveGrant(ctx, memberID, couponID)
	if err != nil {
		return err
	}
	if has {
		return errAlreadyGranted
	}

	code, err := e.uniqueCode(ctx)
	if err != nil {
		return err
	}

	return e.coupons.InsertGrant(ctx, &domain.CouponGrant{
		ID:               uuid.New(),
		MemberID:         memberID,
		CouponID:         couponID,
		Status:           domain.GrantStatusActive,
		AssignedAt:       e.now().UTC(),
		VerificationCode: code,
	})
}

// uniqueCode тянет коды, пока не найдёт свободный.
func (e *Engine) uniqueCode(ctx context.Context) (string, error) {
	for range e.maxCodeDraws {
		code, err := e.codes()
		if err != nil {
			return "", fmt.Errorf("generate verification code: %w", err)
		}
		taken, err := e.coupons.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}
