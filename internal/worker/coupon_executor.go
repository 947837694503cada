package worker

import (
	"context"

	"github.com/shaiso/Courier/internal/domain"
)

// Dispatcher раздаёт купон когорте (fanout.Engine).
type Dispatcher interface {
	Dispatch(ctx context.Context, couponID int64, t domain.Target) (domain.DispatchReport, error)
}

// CouponExecutor разбирает action_parameter и делегирует раздачу Dispatcher'у.
// Ошибки отдельных участников остаются в отчёте.
type CouponExecutor struct {
	dispatcher Dispatcher
}

// NewCouponExecutor создаёт CouponExecutor.
func NewCouponExecutor(dispatcher Dispatcher) *CouponExecutor {
	return &CouponExecutor{dispatcher: dispatcher}
}

// Execute раздаёт купон rec.ContentID когорте rec.ActionParameter.
func (e *CouponExecutor) Execute(ctx context.Context, rec *domain.ScheduleRecord) (*ExecutionResult, error) {
	target, err := domain.ParseTarget(rec.ActionParameter)
	if err != nil {
		return nil, err
	}

	report, err := e.dispatcher.Dispatch(ctx, rec.ContentID, target)
	if err != nil {
		return nil, err
	}

	return &ExecutionResult{Outputs: map[string]any{
		"target":  target.String(),
		"granted": report.Granted,
		"skipped": report.Skipped,
		"errored": report.Errored,
	}}, nil
}
