package memrepo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
)

// ScheduleRepo — in-memory аналог repo.ScheduleRepo.
type ScheduleRepo struct {
	db *DB
}

// Create сохраняет новую запись.
func (r *ScheduleRepo) Create(ctx context.Context, rec *domain.ScheduleRecord) error {
	defer r.db.lock(ctx)()

	if _, ok := r.db.state.schedules[rec.ID]; ok {
		return repo.ErrAlreadyExists
	}
	r.db.state.schedules[rec.ID] = *rec
	return nil
}

// GetByID возвращает запись по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleRecord, error) {
	defer r.db.lock(ctx)()

	rec, ok := r.db.state.schedules[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &rec, nil
}

// ClaimPending возвращает pending-запись. Эксклюзивность обеспечивает WithinTx.
func (r *ScheduleRepo) ClaimPending(ctx context.Context, id uuid.UUID) (*domain.ScheduleRecord, error) {
	defer r.db.lock(ctx)()

	rec, ok := r.db.state.schedules[id]
	if !ok || rec.Status != domain.ScheduleStatusPending {
		return nil, repo.ErrNotClaimed
	}
	return &rec, nil
}

// FindDue возвращает pending-записи с scheduled_time <= now, старые первыми.
func (r *ScheduleRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduleRecord, error) {
	defer r.db.lock(ctx)()

	var due []domain.ScheduleRecord
	for _, rec := range r.db.state.schedules {
		if rec.IsDue(now) {
			due = append(due, rec)
		}
	}
	sortRecords(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// List возвращает записи по фильтру, упорядоченные по scheduled_time.
func (r *ScheduleRepo) List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.ScheduleRecord, error) {
	defer r.db.lock(ctx)()

	var out []domain.ScheduleRecord
	for _, rec := range r.db.state.schedules {
		if filter.ContentType != nil && rec.ContentType != *filter.ContentType {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// TransitionTo переводит запись из pending в финальный статус.
func (r *ScheduleRepo) TransitionTo(ctx context.Context, id uuid.UUID, status domain.ScheduleStatus, errMsg string) (bool, error) {
	if !domain.ScheduleStatusPending.CanTransition(status) {
		return false, fmt.Errorf("%w: transition to %s", repo.ErrInvalidState, status)
	}

	defer r.db.lock(ctx)()

	rec, ok := r.db.state.schedules[id]
	if !ok || rec.Status != domain.ScheduleStatusPending {
		return false, nil
	}

	rec.Status = status
	rec.ErrorMessage = ""
	if status == domain.ScheduleStatusFailed {
		rec.ErrorMessage = errMsg
	}
	if status != domain.ScheduleStatusCancelled {
		now := time.Now().UTC()
		rec.ExecutedAt = &now
	}
	r.db.state.schedules[id] = rec
	return true, nil
}

// Cancel отменяет pending-запись.
func (r *ScheduleRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.TransitionTo(ctx, id, domain.ScheduleStatusCancelled, "")
}

// RecordAttempt увеличивает счётчик попыток pending-записи.
func (r *ScheduleRepo) RecordAttempt(ctx context.Context, id uuid.UUID, errMsg string) (int, bool, error) {
	defer r.db.lock(ctx)()

	rec, ok := r.db.state.schedules[id]
	if !ok || rec.Status != domain.ScheduleStatusPending {
		return 0, false, nil
	}
	rec.Attempts++
	rec.LastError = errMsg
	r.db.state.schedules[id] = rec
	return rec.Attempts, true, nil
}

func sortRecords(records []domain.ScheduleRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.ScheduledTime.Equal(b.ScheduledTime) {
			return a.ScheduledTime.Before(b.ScheduledTime)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
