package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

const scheduleColumns = `
	id, content_type, content_id, action_parameter, scheduled_time, status,
	attempts, created_by, created_at, executed_at, error_message, last_error`

// ScheduleRepo — репозиторий записей расписания.
//
// Все изменения статуса — compare-and-set от pending.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// ScheduleFilter — параметры фильтрации записей.
type ScheduleFilter struct {
	ContentType *domain.ContentType
	Status      *domain.ScheduleStatus
	Limit       int
	Offset      int
}

// Create сохраняет новую запись.
func (r *ScheduleRepo) Create(ctx context.Context, rec *domain.ScheduleRecord) error {
	query := `
		INSERT INTO schedule_records (id, content_type, content_id, action_parameter,
		                              scheduled_time, status, attempts, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		rec.ID,
		string(rec.ContentType),
		rec.ContentID,
		rec.ActionParameter,
		rec.ScheduledTime,
		string(rec.Status),
		rec.Attempts,
		rec.CreatedBy,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule record: %w", mapUniqueViolation(err))
	}
	return nil
}

// GetByID возвращает запись по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleRecord, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedule_records WHERE id = $1`
	return scanRecord(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// ClaimPending блокирует pending-запись до конца текущей транзакции.
//
// Вызывается только внутри Transactor.WithinTx. Если запись не pending
// или её держит другая транзакция, возвращает ErrNotClaimed.
func (r *ScheduleRepo) ClaimPending(ctx context.Context, id uuid.UUID) (*domain.ScheduleRecord, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedule_records
		WHERE id = $1 AND status = 'pending'
		FOR UPDATE SKIP LOCKED
	`
	rec, err := scanRecord(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotClaimed
	}
	return rec, err
}

// FindDue возвращает pending-записи с scheduled_time <= now, старые первыми.
func (r *ScheduleRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduleRecord, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedule_records
		WHERE status = 'pending'
		  AND scheduled_time <= $1
		ORDER BY scheduled_time ASC, created_at ASC
		LIMIT $2
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due schedule records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// List возвращает записи по фильтру, упорядоченные по scheduled_time.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]domain.ScheduleRecord, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedule_records
		WHERE ($1::text IS NULL OR content_type = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY scheduled_time ASC, created_at ASC
		LIMIT $3 OFFSET $4
	`
	var contentType, status *string
	if filter.ContentType != nil {
		s := string(*filter.ContentType)
		contentType = &s
	}
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, contentType, status, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list schedule records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// TransitionTo переводит запись из pending в финальный статус.
//
// Возвращает false, если запись уже не pending. errMsg сохраняется только для failed.
func (r *ScheduleRepo) TransitionTo(ctx context.Context, id uuid.UUID, status domain.ScheduleStatus, errMsg string) (bool, error) {
	if !domain.ScheduleStatusPending.CanTransition(status) {
		return false, fmt.Errorf("%w: transition to %s", ErrInvalidState, status)
	}

	var message *string
	if status == domain.ScheduleStatusFailed {
		message = &errMsg
	}
	var executedAt *time.Time
	if status != domain.ScheduleStatusCancelled {
		now := time.Now().UTC()
		executedAt = &now
	}

	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE schedule_records
		SET status = $2, error_message = $3, executed_at = $4
		WHERE id = $1 AND status = 'pending'
	`, id, string(status), message, executedAt)
	if err != nil {
		return false, fmt.Errorf("transition schedule record: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Cancel отменяет pending-запись.
func (r *ScheduleRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.TransitionTo(ctx, id, domain.ScheduleStatusCancelled, "")
}

// RecordAttempt увеличивает счётчик попыток pending-записи и запоминает ошибку
// в last_error. error_message остаётся пустым до перехода в failed.
// Возвращает новое значение счётчика; ok=false, если запись уже не pending.
func (r *ScheduleRepo) RecordAttempt(ctx context.Context, id uuid.UUID, errMsg string) (int, bool, error) {
	var attempts int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE schedule_records
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING attempts
	`, id, errMsg).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("record attempt: %w", err)
	}
	return attempts, true, nil
}

// --- Helpers ---

func scanRecord(row pgx.Row) (*domain.ScheduleRecord, error) {
	var rec domain.ScheduleRecord
	var contentType, status string
	var errMsg, lastErr *string

	err := row.Scan(
		&rec.ID,
		&contentType,
		&rec.ContentID,
		&rec.ActionParameter,
		&rec.ScheduledTime,
		&status,
		&rec.Attempts,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.ExecutedAt,
		&errMsg,
		&lastErr,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule record: %w", err)
	}

	rec.ContentType = domain.ContentType(contentType)
	rec.Status = domain.ScheduleStatus(status)
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	if lastErr != nil {
		rec.LastError = *lastErr
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]domain.ScheduleRecord, error) {
	var records []domain.ScheduleRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
