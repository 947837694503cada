package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/telemetry"
)

// Default configuration values.
const (
	DefaultMaxAttempts  = 3
	DefaultExecTimeout  = 30 * time.Second
	DefaultStoreTimeout = 10 * time.Second
)

// Outcome — итог одной попытки выполнения записи.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeFailed   Outcome = "failed"
	OutcomeRetry    Outcome = "retry"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeNotDue   Outcome = "not_due"
)

var errNotDue = errors.New("schedule record is not due yet")

// ScheduleStore — операции над записями, которые нужны Runner'у.
type ScheduleStore interface {
	ClaimPending(ctx context.Context, id uuid.UUID) (*domain.ScheduleRecord, error)
	TransitionTo(ctx context.Context, id uuid.UUID, status domain.ScheduleStatus, errMsg string) (bool, error)
	RecordAttempt(ctx context.Context, id uuid.UUID, errMsg string) (int, bool, error)
}

// TxRunner открывает транзакцию (repo.Transactor, memrepo.DB).
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Result — результат Run.
type Result struct {
	Outcome Outcome

	// Record — запись на момент захвата. nil для skipped.
	Record *domain.ScheduleRecord

	// Attempts — число неудачных попыток после этого запуска.
	Attempts int

	// Cause — ошибка исполнителя для failed и retry.
	Cause error
}

// Runner выполняет одну запись расписания: захват, исполнитель и переход
// в executed в одной транзакции. Общий для обоих движков.
//
// Ошибка исполнителя откатывает транзакцию. Постоянные ошибки переводят
// запись в failed сразу, временные расходуют попытку; после MaxAttempts
// запись тоже становится failed.
type Runner struct {
	schedules   ScheduleStore
	tx          TxRunner
	registry    *Registry
	maxAttempts  atomic.Int64
	execTimeout  time.Duration
	storeTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// RunnerConfig — конфигурация Runner.
type RunnerConfig struct {
	Schedules ScheduleStore
	Tx        TxRunner
	Registry  *Registry

	MaxAttempts int           // default: 3
	ExecTimeout time.Duration // default: 30s

	// StoreTimeout — лимит на операции с хранилищем вне исполнителя (default: 10s).
	// Транзакция выполнения ограничена ExecTimeout + StoreTimeout.
	StoreTimeout time.Duration

	// Now — источник времени для проверки due (default: time.Now).
	Now func() time.Time

	Logger *slog.Logger
}

// NewRunner создаёт Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		schedules:    cfg.Schedules,
		tx:           cfg.Tx,
		registry:     cfg.Registry,
		execTimeout:  cfg.ExecTimeout,
		storeTimeout: cfg.StoreTimeout,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
	r.maxAttempts.Store(DefaultMaxAttempts)
	r.SetMaxAttempts(cfg.MaxAttempts)
	if r.execTimeout <= 0 {
		r.execTimeout = DefaultExecTimeout
	}
	if r.storeTimeout <= 0 {
		r.storeTimeout = DefaultStoreTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// SetMaxAttempts меняет лимит попыток на лету. n <= 0 игнорируется.
func (r *Runner) SetMaxAttempts(n int) {
	if n > 0 {
		r.maxAttempts.Store(int64(n))
	}
}

// MaxAttempts возвращает текущий лимит попыток.
func (r *Runner) MaxAttempts() int {
	return int(r.maxAttempts.Load())
}

// Run выполняет запись id, если она всё ещё pending и наступила.
//
// Сбой хранилища после захвата (в том числе при коммите) расходует
// попытку, как временная ошибка исполнителя. Ошибка возвращается, если
// запись не удалось захватить или зафиксировать попытку: тогда запись
// остаётся pending и будет подобрана снова.
func (r *Runner) Run(ctx context.Context, id uuid.UUID) (Result, error) {
	var (
		rec     *domain.ScheduleRecord
		claimed bool
		result  *ExecutionResult
		execErr error
	)

	txCtx, cancel := context.WithTimeout(ctx, r.execTimeout+r.storeTimeout)
	defer cancel()

	err := r.tx.WithinTx(txCtx, func(ctx context.Context) error {
		var err error
		rec, err = r.schedules.ClaimPending(ctx, id)
		if err != nil {
			return err
		}
		claimed = true
		if !rec.IsDue(r.now()) {
			return errNotDue
		}

		executor, err := r.registry.Get(rec.ContentType)
		if err != nil {
			execErr = err
			return err
		}

		result, err = r.execute(ctx, executor, rec)
		if err != nil {
			execErr = err
			return err
		}

		ok, err := r.schedules.TransitionTo(ctx, id, domain.ScheduleStatusExecuted, "")
		if err != nil {
			return err
		}
		if !ok {
			return repo.ErrNotClaimed
		}
		return nil
	})

	switch {
	case err == nil:
		r.observe(rec, OutcomeExecuted)
		r.recordLogger(rec).Info("schedule executed", "outputs", outputsOf(result))
		return Result{Outcome: OutcomeExecuted, Record: rec, Attempts: rec.Attempts}, nil

	case errors.Is(err, repo.ErrNotClaimed):
		r.observe(rec, OutcomeSkipped)
		r.logger.Debug("schedule not claimed", "schedule_id", id)
		return Result{Outcome: OutcomeSkipped}, nil

	case errors.Is(err, errNotDue):
		r.observe(rec, OutcomeNotDue)
		return Result{Outcome: OutcomeNotDue, Record: rec, Attempts: rec.Attempts}, nil

	case execErr != nil:
		return r.fail(ctx, rec, execErr)

	case claimed && ctx.Err() == nil:
		return r.fail(ctx, rec, fmt.Errorf("commit schedule %s: %w", id, err))

	default:
		return Result{}, fmt.Errorf("run schedule %s: %w", id, err)
	}
}

// execute вызывает исполнителя с таймаутом.
func (r *Runner) execute(ctx context.Context, executor Executor, rec *domain.ScheduleRecord) (*ExecutionResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.execTimeout)
	defer cancel()

	start := time.Now()
	result, err := executor.Execute(execCtx, rec)
	telemetry.ExecutionDuration.WithLabelValues(string(rec.ContentType)).Observe(time.Since(start).Seconds())

	if err != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: %v", ErrExecutionTimeout, r.execTimeout, err)
	}
	return result, err
}

// fail фиксирует неудачу после отката транзакции выполнения.
func (r *Runner) fail(ctx context.Context, rec *domain.ScheduleRecord, cause error) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	logger := r.recordLogger(rec)
	msg := cause.Error()

	if IsPermanent(cause) {
		return r.markFailed(ctx, rec, rec.Attempts, cause)
	}

	attempts, ok, err := r.schedules.RecordAttempt(ctx, rec.ID, msg)
	if err != nil {
		return Result{}, fmt.Errorf("record attempt %s: %w", rec.ID, err)
	}
	if !ok {
		r.observe(rec, OutcomeSkipped)
		return Result{Outcome: OutcomeSkipped}, nil
	}

	maxAttempts := r.MaxAttempts()
	if attempts >= maxAttempts {
		logger.Warn("retry limit reached", "attempts", attempts, "error", msg)
		return r.markFailed(ctx, rec, attempts, cause)
	}

	r.observe(rec, OutcomeRetry)
	logger.Warn("schedule execution failed, will retry",
		"attempt", attempts,
		"max_attempts", maxAttempts,
		"error", msg,
	)
	return Result{Outcome: OutcomeRetry, Record: rec, Attempts: attempts, Cause: cause}, nil
}

func (r *Runner) markFailed(ctx context.Context, rec *domain.ScheduleRecord, attempts int, cause error) (Result, error) {
	ok, err := r.schedules.TransitionTo(ctx, rec.ID, domain.ScheduleStatusFailed, cause.Error())
	if err != nil {
		return Result{}, fmt.Errorf("mark schedule %s failed: %w", rec.ID, err)
	}
	if !ok {
		r.observe(rec, OutcomeSkipped)
		return Result{Outcome: OutcomeSkipped}, nil
	}

	r.observe(rec, OutcomeFailed)
	r.recordLogger(rec).Error("schedule failed", "attempts", attempts, "error", cause)
	return Result{Outcome: OutcomeFailed, Record: rec, Attempts: attempts, Cause: cause}, nil
}

func (r *Runner) observe(rec *domain.ScheduleRecord, outcome Outcome) {
	contentType := "unknown"
	if rec != nil {
		contentType = string(rec.ContentType)
	}
	telemetry.ScheduleExecutions.WithLabelValues(contentType, string(outcome)).Inc()
}

func (r *Runner) recordLogger(rec *domain.ScheduleRecord) *slog.Logger {
	logger := telemetry.WithScheduleID(r.logger, rec.ID.String())
	return telemetry.WithContent(logger, string(rec.ContentType), rec.ContentID)
}

func outputsOf(result *ExecutionResult) map[string]any {
	if result == nil {
		return nil
	}
	return result.Outputs
}
