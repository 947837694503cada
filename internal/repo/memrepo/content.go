package memrepo

import (
	"context"
	"sort"
	"time"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
)

// PostRepo — in-memory аналог repo.PostRepo.
type PostRepo struct {
	db *DB
}

func (r *PostRepo) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	defer r.db.lock(ctx)()

	p, ok := r.db.state.posts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &p, nil
}

func (r *PostRepo) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	defer r.db.lock(ctx)()

	p, ok := r.db.state.posts[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.Status = domain.PostStatusPublished
	p.PublishedAt = &at
	r.db.state.posts[id] = p
	return nil
}

// NotificationRepo — in-memory аналог repo.NotificationRepo.
type NotificationRepo struct {
	db *DB
}

func (r *NotificationRepo) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	defer r.db.lock(ctx)()

	n, ok := r.db.state.notifications[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &n, nil
}

func (r *NotificationRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	defer r.db.lock(ctx)()

	n, ok := r.db.state.notifications[id]
	if !ok {
		return repo.ErrNotFound
	}
	n.Status = domain.NotificationStatusSent
	n.SentAt = &at
	n.LastError = ""
	r.db.state.notifications[id] = n
	return nil
}

func (r *NotificationRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	defer r.db.lock(ctx)()

	n, ok := r.db.state.notifications[id]
	if !ok {
		return repo.ErrNotFound
	}
	n.Status = domain.NotificationStatusFailed
	n.RetryCount++
	n.LastError = errMsg
	r.db.state.notifications[id] = n
	return nil
}

// MemberRepo — in-memory аналог repo.MemberRepo.
type MemberRepo struct {
	db *DB
}

func (r *MemberRepo) ListActiveIDs(ctx context.Context) ([]int64, error) {
	defer r.db.lock(ctx)()

	var ids []int64
	for _, m := range r.db.state.members {
		if m.IsActive {
			ids = append(ids, m.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *MemberRepo) ListActiveIDsByLevel(ctx context.Context, levelID int64) ([]int64, error) {
	defer r.db.lock(ctx)()

	var ids []int64
	for _, m := range r.db.state.members {
		if m.IsActive && m.LevelID != nil && *m.LevelID == levelID {
			ids = append(ids, m.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *MemberRepo) GetLevel(ctx context.Context, id int64) (*domain.MembershipLevel, error) {
	defer r.db.lock(ctx)()

	l, ok := r.db.state.levels[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &l, nil
}

// CouponRepo — in-memory аналог repo.CouponRepo.
type CouponRepo struct {
	db *DB
}

func (r *CouponRepo) GetByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	defer r.db.lock(ctx)()

	c, ok := r.db.state.coupons[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &c, nil
}

func (r *CouponRepo) HasActiveGrant(ctx context.Context, memberID, couponID int64) (bool, error) {
	defer r.db.lock(ctx)()
	return r.hasActive(memberID, couponID), nil
}

func (r *CouponRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	defer r.db.lock(ctx)()
	return r.codeTaken(code), nil
}

// InsertGrant проверяет те же ограничения уникальности, что и схема Postgres.
func (r *CouponRepo) InsertGrant(ctx context.Context, g *domain.CouponGrant) error {
	defer r.db.lock(ctx)()

	if r.codeTaken(g.VerificationCode) {
		return repo.ErrDuplicateCode
	}
	if g.Status == domain.GrantStatusActive && r.hasActive(g.MemberID, g.CouponID) {
		return repo.ErrAlreadyExists
	}
	r.db.state.grants = append(r.db.state.grants, *g)
	return nil
}

func (r *CouponRepo) ListGrants(ctx context.Context, couponID int64) ([]domain.CouponGrant, error) {
	defer r.db.lock(ctx)()

	var out []domain.CouponGrant
	for _, g := range r.db.state.grants {
		if g.CouponID == couponID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *CouponRepo) hasActive(memberID, couponID int64) bool {
	for _, g := range r.db.state.grants {
		if g.MemberID == memberID && g.CouponID == couponID && g.Status == domain.GrantStatusActive {
			return true
		}
	}
	return false
}

func (r *CouponRepo) codeTaken(code string) bool {
	for _, g := range r.db.state.grants {
		if g.VerificationCode == code {
			return true
		}
	}
	return false
}

// ContentLookup — in-memory аналог repo.ContentLookup.
type ContentLookup struct {
	db *DB
}

// Exists сообщает, есть ли объект contentID типа contentType.
func (l *ContentLookup) Exists(ctx context.Context, contentType domain.ContentType, contentID int64) (bool, error) {
	defer l.db.lock(ctx)()

	var ok bool
	switch contentType {
	case domain.ContentTypePost:
		_, ok = l.db.state.posts[contentID]
	case domain.ContentTypeNotification:
		_, ok = l.db.state.notifications[contentID]
	case domain.ContentTypeCoupon:
		_, ok = l.db.state.coupons[contentID]
	}
	return ok, nil
}
