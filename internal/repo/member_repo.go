package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

// MemberRepo — чтение участников и уровней. Только read-only запросы.
type MemberRepo struct {
	pool *pgxpool.Pool
}

// NewMemberRepo создаёт новый MemberRepo.
func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

// ListActiveIDs возвращает ID всех активных участников.
func (r *MemberRepo) ListActiveIDs(ctx context.Context) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT id FROM members WHERE is_active ORDER BY id`)
}

// ListActiveIDsByLevel возвращает ID активных участников уровня.
func (r *MemberRepo) ListActiveIDsByLevel(ctx context.Context, levelID int64) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT id FROM members WHERE is_active AND level_id = $1 ORDER BY id`, levelID)
}

// GetLevel возвращает уровень по ID.
func (r *MemberRepo) GetLevel(ctx context.Context, id int64) (*domain.MembershipLevel, error) {
	var l domain.MembershipLevel
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, name, is_active FROM membership_levels WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get membership level: %w", err)
	}
	return &l, nil
}

func (r *MemberRepo) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect members: %w", err)
	}
	return ids, nil
}
