// Package schedule — сервис планирования: создание, отмена, перенос
// и просмотр записей расписания.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/telemetry"
)

// DefaultStoreTimeout — лимит на один вызов сервиса по умолчанию.
const DefaultStoreTimeout = 10 * time.Second

// Store — хранилище записей расписания.
type Store interface {
	Create(ctx context.Context, rec *domain.ScheduleRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleRecord, error)
	List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.ScheduleRecord, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

// Enqueuer уведомляет движок о новой записи (scheduler.Engine).
type Enqueuer interface {
	Enqueue(ctx context.Context, rec *domain.ScheduleRecord) error
}

// ContentLookup проверяет существование объекта контента.
type ContentLookup interface {
	Exists(ctx context.Context, contentType domain.ContentType, contentID int64) (bool, error)
}

// TxRunner открывает транзакцию.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreateRequest — запрос на планирование.
type CreateRequest struct {
	ContentType     domain.ContentType
	ContentID       int64
	ScheduledTime   time.Time
	CreatedBy       int64
	ActionParameter string
}

// Result — результат планирования для вызывающей стороны.
type Result struct {
	Success      bool      `json:"success"`
	ScheduleID   uuid.UUID `json:"schedule_id,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Service — сервис планирования.
type Service struct {
	store    Store
	enqueuer Enqueuer
	lookup   ContentLookup
	tx       TxRunner
	minLead  time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Config — конфигурация Service.
type Config struct {
	Store Store

	// Enqueuer — движок; nil для polling без уведомлений.
	Enqueuer Enqueuer

	// Lookup — проверка контента при создании; nil — без проверки.
	Lookup ContentLookup

	// Tx — транзакция для Reschedule; nil — без транзакции.
	Tx TxRunner

	MinLead time.Duration // default: domain.DefaultMinLead

	// StoreTimeout — лимит на один вызов сервиса (default: 10s).
	StoreTimeout time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	s := &Service{
		store:    cfg.Store,
		enqueuer: cfg.Enqueuer,
		lookup:   cfg.Lookup,
		tx:       cfg.Tx,
		minLead:  cfg.MinLead,
		timeout:  cfg.StoreTimeout,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
	if s.minLead <= 0 {
		s.minLead = domain.DefaultMinLead
	}
	if s.timeout <= 0 {
		s.timeout = DefaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Create проверяет запрос, сохраняет pending-запись и ставит её в движок.
//
// Ошибки: *domain.ValidationError (для отсутствующего контента он
// оборачивает ErrContentNotFound), ошибки хранилища.
// При ошибке ничего не сохраняется. Ошибка Enqueue только логируется:
// запись уже в БД, и её подберёт сверка.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.ScheduleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	s.created(ctx, rec)
	return rec, nil
}

// ScheduleTask — Create со структурированным результатом.
func (s *Service) ScheduleTask(ctx context.Context, req CreateRequest) Result {
	rec, err := s.Create(ctx, req)
	if err != nil {
		if !domain.IsValidation(err) {
			s.logger.Error("failed to schedule task", "content_type", req.ContentType, "error", err)
		}
		return Result{ErrorMessage: err.Error()}
	}
	return Result{Success: true, ScheduleID: rec.ID}
}

// CancelSchedule отменяет pending-запись.
// false — записи нет, она уже не pending или хранилище недоступно.
func (s *Service) CancelSchedule(ctx context.Context, id uuid.UUID) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.store.Cancel(ctx, id)
	if err != nil {
		s.logger.Error("failed to cancel schedule", "schedule_id", id, "error", err)
		return false
	}
	if ok {
		telemetry.SchedulesCancelled.Inc()
		s.logger.Info("schedule cancelled", "schedule_id", id)
	}
	return ok
}

// GetScheduledTasks возвращает записи (опционально одного типа) по возрастанию scheduled_time.
func (s *Service) GetScheduledTasks(ctx context.Context, contentType *domain.ContentType) ([]domain.ScheduleRecord, error) {
	if contentType != nil && !contentType.Valid() {
		return nil, &domain.ValidationError{Field: "content_type", Message: "unknown content type " + string(*contentType)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.store.List(ctx, repo.ScheduleFilter{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return records, nil
}

// Get возвращает запись по ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.ScheduleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.store.GetByID(ctx, id)
}

// RescheduleRecord отменяет pending-запись и создаёт новую на newTime
// с теми же параметрами. Отмена и создание коммитятся вместе.
func (s *Service) RescheduleRecord(ctx context.Context, id uuid.UUID, newTime time.Time, by int64) (*domain.ScheduleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	old, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Status != domain.ScheduleStatusPending {
		return nil, fmt.Errorf("%w: %s", ErrNotPending, old.Status)
	}

	rec, err := domain.NewScheduleRecord(old.ContentType, old.ContentID, newTime, by,
		old.ActionParameter, s.now(), s.minLead)
	if err != nil {
		return nil, err
	}

	err = s.withinTx(ctx, func(ctx context.Context) error {
		ok, err := s.store.Cancel(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPending
		}
		return s.store.Create(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("reschedule %s: %w", id, err)
	}

	telemetry.SchedulesCancelled.Inc()
	s.created(ctx, rec)
	s.logger.Info("schedule rescheduled", "old_schedule_id", id, "schedule_id", rec.ID)
	return rec, nil
}

// Reschedule — RescheduleRecord со структурированным результатом.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newTime time.Time, by int64) Result {
	rec, err := s.RescheduleRecord(ctx, id, newTime, by)
	if err != nil {
		return Result{ErrorMessage: err.Error()}
	}
	return Result{Success: true, ScheduleID: rec.ID}
}

func (s *Service) build(ctx context.Context, req CreateRequest) (*domain.ScheduleRecord, error) {
	rec, err := domain.NewScheduleRecord(req.ContentType, req.ContentID, req.ScheduledTime,
		req.CreatedBy, req.ActionParameter, s.now(), s.minLead)
	if err != nil {
		return nil, err
	}

	if s.lookup != nil {
		ok, err := s.lookup.Exists(ctx, rec.ContentType, rec.ContentID)
		if err != nil {
			return nil, fmt.Errorf("check content: %w", err)
		}
		if !ok {
			return nil, &domain.ValidationError{
				Field:   "content_id",
				Message: fmt.Sprintf("%s %d does not exist", rec.ContentType, rec.ContentID),
				Err:     ErrContentNotFound,
			}
		}
	}
	return rec, nil
}

// created — метрика, лог и постановка в движок после коммита.
func (s *Service) created(ctx context.Context, rec *domain.ScheduleRecord) {
	telemetry.SchedulesCreated.WithLabelValues(string(rec.ContentType)).Inc()

	logger := telemetry.WithContent(telemetry.WithScheduleID(s.logger, rec.ID.String()),
		string(rec.ContentType), rec.ContentID)
	logger.Info("schedule created", "scheduled_time", rec.ScheduledTime)

	if s.enqueuer == nil {
		return
	}
	if err := s.enqueuer.Enqueue(ctx, rec); err != nil {
		logger.Warn("failed to enqueue schedule job, reconcile will pick it up", "error", err)
	}
}

func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinTx(ctx, fn)
}
