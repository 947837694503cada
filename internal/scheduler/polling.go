package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/telemetry"
	"github.com/shaiso/Courier/internal/worker"
)

// SweepReport — итог одного прохода.
type SweepReport struct {
	Due      int
	Executed int
	Failed   int
	Retried  int
	Skipped  int
}

func (r *SweepReport) add(outcome worker.Outcome) {
	switch outcome {
	case worker.OutcomeExecuted:
		r.Executed++
	case worker.OutcomeFailed:
		r.Failed++
	case worker.OutcomeRetry:
		r.Retried++
	default:
		r.Skipped++
	}
}

// Polling — движок, который раз в PollInterval выбирает наступившие
// записи и выполняет их по очереди.
//
// Проходы не перекрываются: cron пропускает тик, пока идёт предыдущий.
// Запись с временной ошибкой остаётся pending и подбирается следующим
// проходом, пока не кончатся попытки.
type Polling struct {
	runner    *worker.Runner
	schedules DueFinder
	leader    Leader
	interval  time.Duration
	timeout   time.Duration
	batch     atomic.Int64
	now       func() time.Time
	logger    *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
	wg   sync.WaitGroup
}

// NewPolling создаёт polling-движок.
func NewPolling(cfg Config) (*Polling, error) {
	cfg.applyDefaults()
	if err := ValidatePollInterval(cfg.PollInterval); err != nil {
		return nil, err
	}

	p := &Polling{
		runner:    cfg.Runner,
		schedules: cfg.Schedules,
		leader:    cfg.Leader,
		interval:  cfg.PollInterval,
		timeout:   cfg.StoreTimeout,
		now:       cfg.Now,
		logger:    cfg.Logger.With("engine", string(StrategyPolling)),
	}
	p.batch.Store(int64(cfg.BatchLimit))
	return p, nil
}

// Name возвращает имя стратегии.
func (p *Polling) Name() string { return string(StrategyPolling) }

// Enqueue — no-op: запись подберёт ближайший проход.
func (p *Polling) Enqueue(context.Context, *domain.ScheduleRecord) error { return nil }

// SetBatchLimit меняет размер выборки на лету. n <= 0 игнорируется.
func (p *Polling) SetBatchLimit(n int) {
	if n > 0 {
		p.batch.Store(int64(n))
	}
}

// Start запускает проходы по cron и сразу делает первый.
func (p *Polling) Start(ctx context.Context) error {
	if p.runner == nil || p.schedules == nil {
		return ErrRunnerRequired
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return fmt.Errorf("polling engine already started")
	}

	logger := cronLogger{logger: p.logger}
	c := cron.New(
		cron.WithParser(specParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	spec := EverySpec(p.interval)
	id, err := c.AddFunc(spec, func() { p.tick(ctx) })
	if err != nil {
		return fmt.Errorf("add sweep job: %w", err)
	}

	p.logger.Info("starting scheduler engine",
		"spec", spec,
		"batch_limit", p.batch.Load(),
		"max_attempts", p.runner.MaxAttempts(),
	)

	c.Start()
	p.cron = c

	// Первый проход сразу: подбираем записи, наступившие пока процесс был выключен.
	// Обёрнутый job делит SkipIfStillRunning с тиками cron.
	job := c.Entry(id).WrappedJob
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		job.Run()
	}()

	return nil
}

// Stop останавливает cron и ждёт текущий проход.
func (p *Polling) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	p.logger.Info("stopping scheduler engine...")
	<-c.Stop().Done()
	p.wg.Wait()
	p.logger.Info("scheduler engine stopped")
}

func (p *Polling) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !isLeader(ctx, p.leader, p.timeout, p.logger) {
		p.logger.Debug("not a leader, skipping sweep")
		return
	}
	if _, err := p.Sweep(ctx); err != nil {
		p.logger.Error("sweep failed", "error", err)
	}
}

// Sweep выполняет один проход: FindDue и Run для каждой записи, старые первыми.
// Ошибка одной записи не останавливает проход.
func (p *Polling) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	start := time.Now()
	defer func() {
		telemetry.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	due, err := findDue(ctx, p.schedules, p.timeout, p.now(), int(p.batch.Load()))
	if err != nil {
		return report, err
	}
	report.Due = len(due)
	telemetry.SweepDueRecords.Set(float64(len(due)))

	if len(due) == 0 {
		return report, nil
	}

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		res, err := p.runner.Run(ctx, due[i].ID)
		if err != nil {
			p.logger.Error("failed to run schedule", "schedule_id", due[i].ID, "error", err)
			report.Skipped++
			continue
		}
		report.add(res.Outcome)
	}

	p.logger.Info("sweep completed",
		"due", report.Due,
		"executed", report.Executed,
		"failed", report.Failed,
		"retried", report.Retried,
		"skipped", report.Skipped,
		"duration", time.Since(start),
	)

	return report, nil
}
