package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/worker"
)

// Default configuration values.
const (
	DefaultPollInterval      = time.Minute
	DefaultBatchLimit        = 100
	DefaultRetryDelay        = 30 * time.Second
	DefaultReconcileInterval = 5 * time.Minute
	DefaultStoreTimeout      = 10 * time.Second
)

// Ошибки конфигурации движка.
var (
	ErrUnknownStrategy = errors.New("unknown scheduler strategy")
	ErrQueueRequired   = errors.New("triggered strategy requires a job queue")
	ErrRunnerRequired  = errors.New("engine requires a runner to start")
)

// Strategy — способ доставки записей к исполнению.
type Strategy string

const (
	StrategyPolling   Strategy = "polling"
	StrategyTriggered Strategy = "triggered"
)

// Engine — движок планировщика.
//
// Enqueue вызывается после создания записи. Для polling это no-op:
// запись найдёт ближайший проход. Triggered публикует отложенное задание.
// Enqueue работает и без Start, поэтому API-процесс создаёт движок
// только ради него.
type Engine interface {
	Name() string
	Enqueue(ctx context.Context, rec *domain.ScheduleRecord) error
	Start(ctx context.Context) error
	Stop()
}

// DueFinder ищет наступившие записи.
type DueFinder interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduleRecord, error)
}

// Leader — лидерство для проходов по БД (pg advisory lock).
// Без Leader экземпляр считает себя лидером.
type Leader interface {
	TryLead(ctx context.Context) (bool, error)
}

// JobQueue — очередь отложенных заданий (mq.ScheduleQueue).
type JobQueue interface {
	PublishDue(ctx context.Context, id uuid.UUID, delay time.Duration) error

	// ConsumeDue блокируется до отмены ctx.
	ConsumeDue(ctx context.Context, handler func(ctx context.Context, id uuid.UUID) error) error
}

// Config — конфигурация движка.
type Config struct {
	Strategy Strategy

	Runner    *worker.Runner
	Schedules DueFinder
	Queue     JobQueue // только triggered
	Leader    Leader   // опционально

	PollInterval      time.Duration // polling, default: 1m
	BatchLimit        int           // default: 100
	RetryDelay        time.Duration // triggered, default: 30s
	ReconcileInterval time.Duration // triggered, default: 5m
	StoreTimeout      time.Duration // FindDue и проверка лидерства, default: 10s

	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = DefaultBatchLimit
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = DefaultReconcileInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NewEngine создаёт движок по стратегии. Пустая стратегия — polling.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Strategy {
	case StrategyPolling, "":
		return NewPolling(cfg)
	case StrategyTriggered:
		return NewTriggered(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
}

// ParseStrategy разбирает имя стратегии из конфигурации.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyPolling, StrategyTriggered:
		return Strategy(s), nil
	case "":
		return StrategyPolling, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// isLeader спрашивает Leader; ошибка считается отказом.
func isLeader(ctx context.Context, leader Leader, timeout time.Duration, logger *slog.Logger) bool {
	if leader == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := leader.TryLead(ctx)
	if err != nil {
		logger.Warn("leader check failed", "error", err)
		return false
	}
	return ok
}

// findDue — FindDue с лимитом времени на запрос.
func findDue(ctx context.Context, finder DueFinder, timeout time.Duration, now time.Time, limit int) ([]domain.ScheduleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	due, err := finder.FindDue(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due schedules: %w", err)
	}
	return due, nil
}
