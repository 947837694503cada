package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/mail"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/telemetry"
)

// NotificationStore — доступ к уведомлениям.
type NotificationStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// NotificationExecutor отправляет email-уведомление.
//
// Неудача транспорта не ошибка выполнения: уведомление помечается failed,
// retry_count растёт, а запись расписания всё равно становится executed.
// Само письмо транзакцией не покрыто.
type NotificationExecutor struct {
	notifications NotificationStore
	transport     mail.Transport
	now           func() time.Time
	logger        *slog.Logger
}

// NewNotificationExecutor создаёт NotificationExecutor.
func NewNotificationExecutor(notifications NotificationStore, transport mail.Transport, logger *slog.Logger) *NotificationExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationExecutor{
		notifications: notifications,
		transport:     transport,
		now:           time.Now,
		logger:        logger,
	}
}

// Execute отправляет уведомление rec.ContentID.
func (e *NotificationExecutor) Execute(ctx context.Context, rec *domain.ScheduleRecord) (*ExecutionResult, error) {
	n, err := e.notifications.GetByID(ctx, rec.ContentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: notification %d", ErrContentNotFound, rec.ContentID)
	}
	if err != nil {
		return nil, err
	}
	if !n.HasRecipient() {
		return nil, fmt.Errorf("%w: notification %d", ErrMissingRecipient, n.ID)
	}

	// Уже доставлено — второе письмо не отправляем.
	if n.Status == domain.NotificationStatusSent {
		return &ExecutionResult{Outputs: map[string]any{"already_sent": true}}, nil
	}

	sendErr := e.transport.Send(ctx, mail.Message{To: n.Recipient, Subject: n.Subject, Body: n.Body})
	if sendErr != nil {
		if err := e.notifications.MarkFailed(ctx, n.ID, sendErr.Error()); err != nil {
			return nil, fmt.Errorf("mark notification %d failed: %w", n.ID, err)
		}
		telemetry.NotificationDeliveries.WithLabelValues("failed").Inc()
		e.logger.Warn("email delivery failed",
			"notification_id", n.ID,
			"retry_count", n.RetryCount+1,
			"error", sendErr,
		)
		return &ExecutionResult{Outputs: map[string]any{
			"delivered":   false,
			"retry_count": n.RetryCount + 1,
			"error":       sendErr.Error(),
		}}, nil
	}

	at := e.now().UTC()
	if err := e.notifications.MarkSent(ctx, n.ID, at); err != nil {
		return nil, fmt.Errorf("mark notification %d sent: %w", n.ID, err)
	}
	telemetry.NotificationDeliveries.WithLabelValues("sent").Inc()

	return &ExecutionResult{Outputs: map[string]any{"delivered": true, "sent_at": at}}, nil
}
