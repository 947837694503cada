package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/telemetry"
	"github.com/shaiso/Courier/internal/worker"
)

// minRedelay — наименьшая задержка для не наступившей записи: младший
// tier очереди ожидания.
const minRedelay = time.Second

// Triggered — движок на отложенных заданиях RabbitMQ.
//
// Enqueue публикует задание с задержкой до scheduled_time. Получатель
// выполняет запись через Runner; повторная доставка безопасна, потому что
// захват возможен только из pending. Не наступившая запись откладывается
// на остаток, временная ошибка — на RetryDelay.
//
// Периодическая сверка подбирает наступившие записи, чьи задания
// потерялись (брокер был недоступен при Enqueue).
type Triggered struct {
	runner            *worker.Runner
	schedules         DueFinder
	queue             JobQueue
	leader            Leader
	retryDelay        time.Duration
	reconcileInterval time.Duration
	storeTimeout      time.Duration
	batch             atomic.Int64
	now               func() time.Time
	logger            *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewTriggered создаёт triggered-движок.
func NewTriggered(cfg Config) (*Triggered, error) {
	if cfg.Queue == nil {
		return nil, ErrQueueRequired
	}
	cfg.applyDefaults()

	t := &Triggered{
		runner:            cfg.Runner,
		schedules:         cfg.Schedules,
		queue:             cfg.Queue,
		leader:            cfg.Leader,
		retryDelay:        cfg.RetryDelay,
		reconcileInterval: cfg.ReconcileInterval,
		storeTimeout:      cfg.StoreTimeout,
		now:               cfg.Now,
		logger:            cfg.Logger.With("engine", string(StrategyTriggered)),
	}
	t.batch.Store(int64(cfg.BatchLimit))
	return t, nil
}

// Name возвращает имя стратегии.
func (t *Triggered) Name() string { return string(StrategyTriggered) }

// SetBatchLimit меняет размер выборки сверки. n <= 0 игнорируется.
func (t *Triggered) SetBatchLimit(n int) {
	if n > 0 {
		t.batch.Store(int64(n))
	}
}

// Enqueue публикует отложенное задание для новой записи.
func (t *Triggered) Enqueue(ctx context.Context, rec *domain.ScheduleRecord) error {
	delay := max(rec.ScheduledTime.Sub(t.now()), 0)
	kind := "due"
	if delay > 0 {
		kind = "delay"
	}
	return t.publish(ctx, rec.ID, delay, kind)
}

// Start запускает consumer и цикл сверки.
func (t *Triggered) Start(ctx context.Context) error {
	if t.runner == nil || t.schedules == nil {
		return ErrRunnerRequired
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancelFunc = cancel

	t.logger.Info("starting scheduler engine",
		"retry_delay", t.retryDelay,
		"reconcile_interval", t.reconcileInterval,
		"max_attempts", t.runner.MaxAttempts(),
	)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.queue.ConsumeDue(ctx, t.HandleDue); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Error("due consumer stopped", "error", err)
		}
	}()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.reconcileLoop(ctx)
	}()

	return nil
}

// Stop останавливает consumer и сверку и ждёт их завершения.
func (t *Triggered) Stop() {
	t.logger.Info("stopping scheduler engine...")
	if t.cancelFunc != nil {
		t.cancelFunc()
	}
	t.wg.Wait()
	t.logger.Info("scheduler engine stopped")
}

// HandleDue обрабатывает наступившее задание.
//
// Ошибка возвращается, только если задание не удалось отложить повторно:
// тогда сообщение возвращается в очередь.
func (t *Triggered) HandleDue(ctx context.Context, id uuid.UUID) error {
	res, err := t.runner.Run(ctx, id)
	if err != nil {
		t.logger.Error("failed to run schedule, redelaying", "schedule_id", id, "error", err)
		return t.publish(ctx, id, t.retryDelay, "retry")
	}

	switch res.Outcome {
	case worker.OutcomeNotDue:
		remaining := max(res.Record.ScheduledTime.Sub(t.now()), minRedelay)
		return t.publish(ctx, id, remaining, "delay")
	case worker.OutcomeRetry:
		return t.publish(ctx, id, t.retryDelay, "retry")
	default:
		return nil
	}
}

func (t *Triggered) publish(ctx context.Context, id uuid.UUID, delay time.Duration, kind string) error {
	if err := t.queue.PublishDue(ctx, id, delay); err != nil {
		return fmt.Errorf("publish schedule %s: %w", id, err)
	}
	telemetry.JobsPublished.WithLabelValues(kind).Inc()
	t.logger.Debug("schedule job published", "schedule_id", id, "delay", delay, "kind", kind)
	return nil
}

func (t *Triggered) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(t.reconcileInterval)
	defer ticker.Stop()

	t.reconcileTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reconcileTick(ctx)
		}
	}
}

func (t *Triggered) reconcileTick(ctx context.Context) {
	if !isLeader(ctx, t.leader, t.storeTimeout, t.logger) {
		return
	}
	if _, err := t.Reconcile(ctx); err != nil && ctx.Err() == nil {
		t.logger.Error("reconcile failed", "error", err)
	}
}

// Reconcile выполняет наступившие записи напрямую, минуя очередь.
// Запись, которую параллельно обработал consumer, просто пропускается.
func (t *Triggered) Reconcile(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	due, err := findDue(ctx, t.schedules, t.storeTimeout, t.now(), int(t.batch.Load()))
	if err != nil {
		return report, err
	}
	report.Due = len(due)
	if len(due) == 0 {
		return report, nil
	}

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		res, err := t.runner.Run(ctx, due[i].ID)
		if err != nil {
			t.logger.Error("failed to run schedule", "schedule_id", due[i].ID, "error", err)
			report.Skipped++
			continue
		}
		report.add(res.Outcome)
	}

	t.logger.Info("reconcile completed",
		"due", report.Due,
		"executed", report.Executed,
		"failed", report.Failed,
		"retried", report.Retried,
	)
	return report, nil
}
