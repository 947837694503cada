package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

// CouponRepo — купоны и выданные гранты.
type CouponRepo struct {
	pool *pgxpool.Pool
}

// NewCouponRepo создаёт новый CouponRepo.
func NewCouponRepo(pool *pgxpool.Pool) *CouponRepo {
	return &CouponRepo{pool: pool}
}

// GetByID возвращает купон по ID.
func (r *CouponRepo) GetByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	var c domain.Coupon
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, name, is_active FROM coupons WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return &c, nil
}

// HasActiveGrant проверяет, есть ли у участника active grant купона.
func (r *CouponRepo) HasActiveGrant(ctx context.Context, memberID, couponID int64) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM coupon_grants
			WHERE member_id = $1 AND coupon_id = $2 AND status = 'active'
		)
	`, memberID, couponID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active grant: %w", err)
	}
	return exists, nil
}

// CodeExists проверяет, занят ли код подтверждения любым грантом.
func (r *CouponRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM coupon_grants WHERE verification_code = $1)
	`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check verification code: %w", err)
	}
	return exists, nil
}

// InsertGrant сохраняет грант.
//
// ErrAlreadyExists — у участника уже есть active grant (гонка раздач),
// ErrDuplicateCode — код занят.
func (r *CouponRepo) InsertGrant(ctx context.Context, g *domain.CouponGrant) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO coupon_grants (id, member_id, coupon_id, status, assigned_at, verification_code)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, g.ID, g.MemberID, g.CouponID, string(g.Status), g.AssignedAt, g.VerificationCode)
	if err != nil {
		mapped := mapUniqueViolation(err)
		if errors.Is(mapped, ErrAlreadyExists) || errors.Is(mapped, ErrDuplicateCode) {
			return mapped
		}
		return fmt.Errorf("insert coupon grant: %w", err)
	}
	return nil
}

// ListGrants возвращает гранты купона по времени выдачи.
func (r *CouponRepo) ListGrants(ctx context.Context, couponID int64) ([]domain.CouponGrant, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, member_id, coupon_id, status, assigned_at, verification_code
		FROM coupon_grants
		WHERE coupon_id = $1
		ORDER BY assigned_at ASC, member_id ASC
	`, couponID)
	if err != nil {
		return nil, fmt.Errorf("list coupon grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.CouponGrant
	for rows.Next() {
		var g domain.CouponGrant
		var status string
		if err := rows.Scan(&g.ID, &g.MemberID, &g.CouponID, &status, &g.AssignedAt, &g.VerificationCode); err != nil {
			return nil, fmt.Errorf("scan coupon grant: %w", err)
		}
		g.Status = domain.GrantStatus(status)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
