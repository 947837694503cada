package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/mail"
)

// Executor — обработчик одного типа контента.
//
// Вызывается Runner'ом внутри транзакции выполнения: локальные изменения
// executor'а и перевод записи в executed коммитятся вместе.
// ctx несёт таймаут выполнения.
type Executor interface {
	Execute(ctx context.Context, rec *domain.ScheduleRecord) (*ExecutionResult, error)
}

// ExecutionResult — результат выполнения для логов.
type ExecutionResult struct {
	// Outputs — выходные данные выполнения.
	Outputs map[string]any
}

// Registry — реестр executor'ов по типу контента.
type Registry struct {
	executors map[domain.ContentType]Executor
}

// RegistryConfig — зависимости executor'ов по умолчанию.
// Executor регистрируется, только если заданы его зависимости.
type RegistryConfig struct {
	Posts         PostStore
	Notifications NotificationStore
	Transport     mail.Transport
	Coupons       Dispatcher
	Logger        *slog.Logger
}

// NewRegistry создаёт реестр с executor'ами post, notification и coupon.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{executors: make(map[domain.ContentType]Executor)}
	if cfg.Posts != nil {
		r.Register(domain.ContentTypePost, NewPostExecutor(cfg.Posts))
	}
	if cfg.Notifications != nil && cfg.Transport != nil {
		r.Register(domain.ContentTypeNotification, NewNotificationExecutor(cfg.Notifications, cfg.Transport, cfg.Logger))
	}
	if cfg.Coupons != nil {
		r.Register(domain.ContentTypeCoupon, NewCouponExecutor(cfg.Coupons))
	}
	return r
}

// Register добавляет executor для типа контента.
func (r *Registry) Register(contentType domain.ContentType, executor Executor) {
	r.executors[contentType] = executor
}

// Get возвращает executor для типа контента.
func (r *Registry) Get(contentType domain.ContentType) (Executor, error) {
	executor, ok := r.executors[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContentType, contentType)
	}
	return executor, nil
}
