package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

// NotificationRepo — доступ к email-уведомлениям.
type NotificationRepo struct {
	pool *pgxpool.Pool
}

// NewNotificationRepo создаёт новый NotificationRepo.
func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// GetByID возвращает уведомление по ID.
func (r *NotificationRepo) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	var n domain.Notification
	var status string
	var lastError *string
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, recipient, subject, body, status, sent_at, retry_count, last_error
		FROM notifications
		WHERE id = $1
	`, id).Scan(&n.ID, &n.Recipient, &n.Subject, &n.Body, &status, &n.SentAt, &n.RetryCount, &lastError)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	n.Status = domain.NotificationStatus(status)
	if lastError != nil {
		n.LastError = *lastError
	}
	return &n, nil
}

// MarkSent отмечает успешную доставку.
func (r *NotificationRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = $2, last_error = NULL WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed отмечает неудачную доставку и увеличивает retry_count.
func (r *NotificationRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE notifications
		SET status = 'failed', retry_count = retry_count + 1, last_error = $2
		WHERE id = $1
	`, id, errMsg)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
