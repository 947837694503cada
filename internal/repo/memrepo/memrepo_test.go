package memrepo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
)

func newPending(t *testing.T, db *DB, at time.Time) *domain.ScheduleRecord {
	t.Helper()
	rec := &domain.ScheduleRecord{
		ID:            uuid.New(),
		ContentType:   domain.ContentTypePost,
		ContentID:     1,
		ScheduledTime: at,
		Status:        domain.ScheduleStatusPending,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, db.Schedules().Create(context.Background(), rec))
	return rec
}

func TestScheduleRepo_TerminalStatusIsFinal(t *testing.T) {
	ctx := context.Background()
	db := New()
	schedules := db.Schedules()

	for _, terminal := range []domain.ScheduleStatus{
		domain.ScheduleStatusExecuted,
		domain.ScheduleStatusFailed,
		domain.ScheduleStatusCancelled,
	} {
		rec := newPending(t, db, time.Now())

		ok, err := schedules.TransitionTo(ctx, rec.ID, terminal, "boom")
		require.NoError(t, err)
		require.True(t, ok)

		for _, next := range []domain.ScheduleStatus{
			domain.ScheduleStatusExecuted,
			domain.ScheduleStatusFailed,
			domain.ScheduleStatusCancelled,
		} {
			ok, err := schedules.TransitionTo(ctx, rec.ID, next, "again")
			require.NoError(t, err)
			assert.False(t, ok, "%s -> %s must be rejected", terminal, next)
		}

		_, ok, err = schedules.RecordAttempt(ctx, rec.ID, "late")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := schedules.GetByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, terminal, got.Status)
	}
}

func TestScheduleRepo_TransitionToPendingIsInvalid(t *testing.T) {
	db := New()
	rec := newPending(t, db, time.Now())

	_, err := db.Schedules().TransitionTo(context.Background(), rec.ID, domain.ScheduleStatusPending, "")
	assert.ErrorIs(t, err, repo.ErrInvalidState)
}

func TestScheduleRepo_FindDueOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	db := New()
	now := time.Now()

	late := newPending(t, db, now.Add(-time.Minute))
	early := newPending(t, db, now.Add(-time.Hour))
	newPending(t, db, now.Add(time.Hour))

	due, err := db.Schedules().FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, late.ID, due[1].ID)

	due, err = db.Schedules().FindDue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	db := New()
	rec := newPending(t, db, time.Now())
	db.AddPost(domain.Post{ID: 1, Status: domain.PostStatusDraft})

	errBoom := errors.New("boom")
	err := db.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, db.Posts().MarkPublished(ctx, 1, time.Now()))
		ok, err := db.Schedules().TransitionTo(ctx, rec.ID, domain.ScheduleStatusExecuted, "")
		require.NoError(t, err)
		require.True(t, ok)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	post, err := db.Posts().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusDraft, post.Status)

	got, err := db.Schedules().GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusPending, got.Status)
}

func TestWithinTx_NestedRollsBackOnlySavepoint(t *testing.T) {
	ctx := context.Background()
	db := New()
	db.AddCoupon(domain.Coupon{ID: 1, IsActive: true})
	coupons := db.Coupons()

	err := db.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, coupons.InsertGrant(ctx, &domain.CouponGrant{
			ID: uuid.New(), MemberID: 1, CouponID: 1, Status: domain.GrantStatusActive, VerificationCode: "AAAA",
		}))

		inner := db.WithinTx(ctx, func(ctx context.Context) error {
			require.NoError(t, coupons.InsertGrant(ctx, &domain.CouponGrant{
				ID: uuid.New(), MemberID: 2, CouponID: 1, Status: domain.GrantStatusActive, VerificationCode: "BBBB",
			}))
			return errors.New("member 2 failed")
		})
		assert.Error(t, inner)
		return nil
	})
	require.NoError(t, err)

	grants, err := coupons.ListGrants(ctx, 1)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, int64(1), grants[0].MemberID)
}

func TestCouponRepo_Uniqueness(t *testing.T) {
	ctx := context.Background()
	db := New()
	coupons := db.Coupons()

	first := &domain.CouponGrant{ID: uuid.New(), MemberID: 1, CouponID: 1, Status: domain.GrantStatusActive, VerificationCode: "CODE1"}
	require.NoError(t, coupons.InsertGrant(ctx, first))

	dupCode := &domain.CouponGrant{ID: uuid.New(), MemberID: 2, CouponID: 1, Status: domain.GrantStatusActive, VerificationCode: "CODE1"}
	assert.ErrorIs(t, coupons.InsertGrant(ctx, dupCode), repo.ErrDuplicateCode)

	dupActive := &domain.CouponGrant{ID: uuid.New(), MemberID: 1, CouponID: 1, Status: domain.GrantStatusActive, VerificationCode: "CODE2"}
	assert.ErrorIs(t, coupons.InsertGrant(ctx, dupActive), repo.ErrAlreadyExists)
}

func TestCancelWaitsForRunningTransaction(t *testing.T) {
	ctx := context.Background()
	db := New()
	rec := newPending(t, db, time.Now())

	entered := make(chan struct{})
	var cancelled atomic.Bool
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = db.WithinTx(ctx, func(ctx context.Context) error {
			close(entered)
			time.Sleep(20 * time.Millisecond)
			_, err := db.Schedules().TransitionTo(ctx, rec.ID, domain.ScheduleStatusExecuted, "")
			return err
		})
	}()

	<-entered
	ok, err := db.Schedules().Cancel(ctx, rec.ID)
	require.NoError(t, err)
	cancelled.Store(ok)
	wg.Wait()

	assert.False(t, cancelled.Load())
	got, err := db.Schedules().GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusExecuted, got.Status)
}
