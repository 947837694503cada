package worker

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
	"github.com/shaiso/Courier/internal/fanout"
	"github.com/shaiso/Courier/internal/mail"
	"github.com/shaiso/Courier/internal/repo/memrepo"
	"github.com/shaiso/Courier/internal/target"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeTransport записывает отправленные письма.
type fakeTransport struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (t *fakeTransport) Send(_ context.Context, msg mail.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

// countingExecutor считает вызовы и возвращает заданную ошибку.
type countingExecutor struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (e *countingExecutor) Execute(ctx context.Context, _ *domain.ScheduleRecord) (*ExecutionResult, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return &ExecutionResult{}, nil
}

type runnerFixture struct {
	db        *memrepo.DB
	transport *fakeTransport
	registry  *Registry
	runner    *Runner
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	db := memrepo.New()
	transport := &fakeTransport{}
	dispatcher := fanout.New(fanout.Config{
		Coupons:  db.Coupons(),
		Resolver: target.NewResolver(db.Members()),
		Tx:       db,
	})
	registry := NewRegistry(RegistryConfig{
		Posts:         db.Posts(),
		Notifications: db.Notifications(),
		Transport:     transport,
		Coupons:       dispatcher,
	})
	runner := NewRunner(RunnerConfig{
		Schedules: db.Schedules(),
		Tx:        db,
		Registry:  registry,
		Now:       func() time.Time { return base },
	})
	return &runnerFixture{db: db, transport: transport, registry: registry, runner: runner}
}

// addDue создаёт pending-запись, наступившую минуту назад.
func (f *runnerFixture) addDue(t *testing.T, contentType domain.ContentType, contentID int64, param string) uuid.UUID {
	t.Helper()
	rec := &domain.ScheduleRecord{
		ID:              uuid.New(),
		ContentType:     contentType,
		ContentID:       contentID,
		ActionParameter: param,
		ScheduledTime:   base.Add(-time.Minute),
		Status:          domain.ScheduleStatusPending,
		CreatedBy:       1,
		CreatedAt:       base.Add(-time.Hour),
	}
	require.NoError(t, f.db.Schedules().Create(context.Background(), rec))
	return rec.ID
}

func (f *runnerFixture) record(t *testing.T, id uuid.UUID) *domain.ScheduleRecord {
	t.Helper()
	rec, err := f.db.Schedules().GetByID(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestRunner_PublishPost(t *testing.T) {
	f := newRunnerFixture(t)
	f.db.AddPost(domain.Post{ID: 7, Title: "hello", Status: domain.PostStatusDraft})
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)

	rec := f.record(t, id)
	assert.Equal(t, domain.ScheduleStatusExecuted, rec.Status)
	require.NotNil(t, rec.ExecutedAt)

	post, err := f.db.Posts().GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, post.IsPublished())
}

func TestRunner_PublishAlreadyPublishedIsNoop(t *testing.T) {
	f := newRunnerFixture(t)
	published := base.Add(-24 * time.Hour)
	f.db.AddPost(domain.Post{ID: 7, Status: domain.PostStatusPublished, PublishedAt: &published})
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)

	post, err := f.db.Posts().GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, post.PublishedAt)
	assert.True(t, post.PublishedAt.Equal(published))
}

func TestRunner_MissingContentFails(t *testing.T) {
	f := newRunnerFixture(t)
	id := f.addDue(t, domain.ContentTypePost, 9999, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Cause, ErrContentNotFound)

	rec := f.record(t, id)
	assert.Equal(t, domain.ScheduleStatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "content not found")
	assert.Zero(t, rec.Attempts, "permanent errors do not consume attempts")
}

func TestRunner_NotificationSent(t *testing.T) {
	f := newRunnerFixture(t)
	f.db.AddNotification(domain.Notification{
		ID: 3, Recipient: "a@example.com", Subject: "hi", Body: "body",
		Status: domain.NotificationStatusPending,
	})
	id := f.addDue(t, domain.ContentTypeNotification, 3, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)
	assert.Equal(t, 1, f.transport.count())

	n, err := f.db.Notifications().GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationStatusSent, n.Status)
	assert.NotNil(t, n.SentAt)
}

func TestRunner_NotificationTransportFailureStillExecuted(t *testing.T) {
	f := newRunnerFixture(t)
	f.transport.err = errors.New("smtp: connection refused")
	f.db.AddNotification(domain.Notification{
		ID: 3, Recipient: "a@example.com", Status: domain.NotificationStatusPending, RetryCount: 1,
	})
	id := f.addDue(t, domain.ContentTypeNotification, 3, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)
	assert.Equal(t, domain.ScheduleStatusExecuted, f.record(t, id).Status)

	n, err := f.db.Notifications().GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationStatusFailed, n.Status)
	assert.Equal(t, 2, n.RetryCount)
	assert.Contains(t, n.LastError, "connection refused")
}

func TestRunner_NotificationWithoutRecipientFails(t *testing.T) {
	f := newRunnerFixture(t)
	f.db.AddNotification(domain.Notification{ID: 3, Status: domain.NotificationStatusPending})
	id := f.addDue(t, domain.ContentTypeNotification, 3, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Cause, ErrMissingRecipient)
	assert.Zero(t, f.transport.count())
}

func TestRunner_NotificationAlreadySentIsNoop(t *testing.T) {
	f := newRunnerFixture(t)
	f.db.AddNotification(domain.Notification{ID: 3, Recipient: "a@example.com", Status: domain.NotificationStatusSent})
	id := f.addDue(t, domain.ContentTypeNotification, 3, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)
	assert.Zero(t, f.transport.count())
}

func TestRunner_CouponDispatch(t *testing.T) {
	f := newRunnerFixture(t)
	level := int64(2)
	f.db.AddLevel(domain.MembershipLevel{ID: level, Name: "gold", IsActive: true})
	f.db.AddCoupon(domain.Coupon{ID: 5, Name: "C5", IsActive: true})
	f.db.AddMember(domain.Member{ID: 1, LevelID: &level, IsActive: true})
	f.db.AddMember(domain.Member{ID: 2, LevelID: &level, IsActive: true})
	f.db.AddMember(domain.Member{ID: 3, IsActive: true})
	id := f.addDue(t, domain.ContentTypeCoupon, 5, "2")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)

	grants, err := f.db.Coupons().ListGrants(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, grants, 2)
}

func TestRunner_CouponMissingIsInvalidTarget(t *testing.T) {
	f := newRunnerFixture(t)
	f.db.AddMember(domain.Member{ID: 1, IsActive: true})
	id := f.addDue(t, domain.ContentTypeCoupon, 42, "all")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Cause, domain.ErrInvalidTarget)
}

func TestRunner_NotDue(t *testing.T) {
	f := newRunnerFixture(t)
	f.db.AddPost(domain.Post{ID: 7, Status: domain.PostStatusDraft})
	rec := &domain.ScheduleRecord{
		ID: uuid.New(), ContentType: domain.ContentTypePost, ContentID: 7,
		ScheduledTime: base.Add(time.Hour), Status: domain.ScheduleStatusPending, CreatedAt: base,
	}
	require.NoError(t, f.db.Schedules().Create(context.Background(), rec))

	res, err := f.runner.Run(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, res.Outcome)
	assert.Equal(t, domain.ScheduleStatusPending, f.record(t, rec.ID).Status)
}

func TestRunner_TerminalRecordSkipped(t *testing.T) {
	f := newRunnerFixture(t)
	exec := &countingExecutor{}
	f.registry.Register(domain.ContentTypePost, exec)
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	ok, err := f.db.Schedules().Cancel(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Zero(t, exec.calls.Load())
	assert.Equal(t, domain.ScheduleStatusCancelled, f.record(t, id).Status)
}

func TestRunner_NoDoubleExecution(t *testing.T) {
	f := newRunnerFixture(t)
	exec := &countingExecutor{delay: 10 * time.Millisecond}
	f.registry.Register(domain.ContentTypePost, exec)
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	const runners = 8
	outcomes := make(chan Outcome, runners)
	var wg sync.WaitGroup
	for range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.runner.Run(context.Background(), id)
			assert.NoError(t, err)
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	executed := 0
	for o := range outcomes {
		if o == OutcomeExecuted {
			executed++
		} else {
			assert.Equal(t, OutcomeSkipped, o)
		}
	}
	assert.Equal(t, 1, executed)
	assert.Equal(t, int32(1), exec.calls.Load())
}

func TestRunner_BoundedRetries(t *testing.T) {
	f := newRunnerFixture(t)
	exec := &countingExecutor{err: errors.New("database is on fire")}
	f.registry.Register(domain.ContentTypePost, exec)
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	for attempt := 1; attempt < DefaultMaxAttempts; attempt++ {
		res, err := f.runner.Run(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRetry, res.Outcome)
		assert.Equal(t, attempt, res.Attempts)

		rec := f.record(t, id)
		assert.Equal(t, domain.ScheduleStatusPending, rec.Status)
		assert.Equal(t, attempt, rec.Attempts)
		assert.Empty(t, rec.ErrorMessage)
		assert.Equal(t, "database is on fire", rec.LastError)
	}

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	rec := f.record(t, id)
	assert.Equal(t, domain.ScheduleStatusFailed, rec.Status)
	assert.Equal(t, "database is on fire", rec.ErrorMessage)

	res, err = f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, int32(DefaultMaxAttempts), exec.calls.Load())
}

func TestRunner_FailedAttemptRollsBackExecutorWrites(t *testing.T) {
	f := newRunnerFixture(t)
	f.db.AddPost(domain.Post{ID: 7, Status: domain.PostStatusDraft})
	posts := f.db.Posts()
	f.registry.Register(domain.ContentTypePost, executorFunc(func(ctx context.Context, rec *domain.ScheduleRecord) (*ExecutionResult, error) {
		if err := posts.MarkPublished(ctx, rec.ContentID, base); err != nil {
			return nil, err
		}
		return nil, errors.New("late failure")
	}))
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRetry, res.Outcome)

	post, err := posts.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, post.IsPublished())
}

func TestRunner_ExecutionTimeout(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner = NewRunner(RunnerConfig{
		Schedules:   f.db.Schedules(),
		Tx:          f.db,
		Registry:    f.registry,
		ExecTimeout: 20 * time.Millisecond,
		Now:         func() time.Time { return base },
	})
	f.registry.Register(domain.ContentTypePost, &countingExecutor{delay: time.Second})
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRetry, res.Outcome)
	assert.ErrorIs(t, res.Cause, ErrExecutionTimeout)
}

func TestRunner_UnknownContentType(t *testing.T) {
	f := newRunnerFixture(t)
	runner := NewRunner(RunnerConfig{
		Schedules: f.db.Schedules(),
		Tx:        f.db,
		Registry:  NewRegistry(RegistryConfig{}),
		Now:       func() time.Time { return base },
	})
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	res, err := runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Cause, ErrUnknownContentType)
}

func TestRunner_SetMaxAttempts(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.SetMaxAttempts(0)
	assert.Equal(t, DefaultMaxAttempts, f.runner.MaxAttempts())

	f.runner.SetMaxAttempts(1)
	f.registry.Register(domain.ContentTypePost, &countingExecutor{err: errors.New("boom")})
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	res, err := f.runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(ErrContentNotFound))
	assert.True(t, IsPermanent(ErrMissingRecipient))
	assert.True(t, IsPermanent(ErrUnknownContentType))
	assert.True(t, IsPermanent(domain.ErrInvalidTarget))
	assert.False(t, IsPermanent(ErrExecutionTimeout))
	assert.False(t, IsPermanent(errors.New("connection reset")))
}

type executorFunc func(ctx context.Context, rec *domain.ScheduleRecord) (*ExecutionResult, error)

func (f executorFunc) Execute(ctx context.Context, rec *domain.ScheduleRecord) (*ExecutionResult, error) {
	return f(ctx, rec)
}

// slowCoupons отвечает на HasActiveGrant с задержкой и уважает ctx.
type slowCoupons struct {
	*memrepo.CouponRepo
	delay time.Duration
}

func (c *slowCoupons) HasActiveGrant(ctx context.Context, memberID, couponID int64) (bool, error) {
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return c.CouponRepo.HasActiveGrant(ctx, memberID, couponID)
}

func TestRunner_CouponDispatchTimeoutIsRetried(t *testing.T) {
	f := newRunnerFixture(t)
	f.db.AddCoupon(domain.Coupon{ID: 5, Name: "C5", IsActive: true})
	const cohort = 20
	for i := int64(1); i <= cohort; i++ {
		f.db.AddMember(domain.Member{ID: i, IsActive: true})
	}

	coupons := &slowCoupons{CouponRepo: f.db.Coupons(), delay: 5 * time.Millisecond}
	registry := NewRegistry(RegistryConfig{
		Coupons: fanout.New(fanout.Config{
			Coupons:  coupons,
			Resolver: target.NewResolver(f.db.Members()),
			Tx:       f.db,
		}),
	})
	runner := NewRunner(RunnerConfig{
		Schedules:   f.db.Schedules(),
		Tx:          f.db,
		Registry:    registry,
		ExecTimeout: 30 * time.Millisecond,
		Now:         func() time.Time { return base },
	})
	id := f.addDue(t, domain.ContentTypeCoupon, 5, "all")

	res, err := runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRetry, res.Outcome)
	assert.ErrorIs(t, res.Cause, ErrExecutionTimeout)

	rec := f.record(t, id)
	assert.Equal(t, domain.ScheduleStatusPending, rec.Status)
	assert.Equal(t, 1, rec.Attempts)

	// Частичная раздача откатывается вместе с попыткой.
	grants, err := f.db.Coupons().ListGrants(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, grants)

	coupons.delay = 0
	res, err = runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)

	grants, err = f.db.Coupons().ListGrants(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, grants, cohort)
}

// failingCommitStore не может перевести запись в executed.
type failingCommitStore struct {
	*memrepo.ScheduleRepo
}

func (s failingCommitStore) TransitionTo(ctx context.Context, id uuid.UUID, status domain.ScheduleStatus, errMsg string) (bool, error) {
	if status == domain.ScheduleStatusExecuted {
		return false, errors.New("connection reset by peer")
	}
	return s.ScheduleRepo.TransitionTo(ctx, id, status, errMsg)
}

func TestRunner_StorageFailureAfterClaimConsumesAttempt(t *testing.T) {
	f := newRunnerFixture(t)
	exec := &countingExecutor{}
	f.registry.Register(domain.ContentTypePost, exec)
	runner := NewRunner(RunnerConfig{
		Schedules: failingCommitStore{ScheduleRepo: f.db.Schedules()},
		Tx:        f.db,
		Registry:  f.registry,
		Now:       func() time.Time { return base },
	})
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	for attempt := 1; attempt < DefaultMaxAttempts; attempt++ {
		res, err := runner.Run(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRetry, res.Outcome)
		assert.Equal(t, attempt, f.record(t, id).Attempts)
	}

	res, err := runner.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	rec := f.record(t, id)
	assert.Equal(t, domain.ScheduleStatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "connection reset by peer")

	for range 5 {
		res, err = runner.Run(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, res.Outcome)
	}
	assert.Equal(t, int32(DefaultMaxAttempts), exec.calls.Load())
}

// stuckStore зависает на захвате, пока не истечёт ctx.
type stuckStore struct {
	*memrepo.ScheduleRepo
}

func (s stuckStore) ClaimPending(ctx context.Context, _ uuid.UUID) (*domain.ScheduleRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunner_StorageCallsAreBounded(t *testing.T) {
	f := newRunnerFixture(t)
	runner := NewRunner(RunnerConfig{
		Schedules:    stuckStore{ScheduleRepo: f.db.Schedules()},
		Tx:           f.db,
		Registry:     f.registry,
		ExecTimeout:  20 * time.Millisecond,
		StoreTimeout: 20 * time.Millisecond,
		Now:          func() time.Time { return base },
	})
	id := f.addDue(t, domain.ContentTypePost, 7, "")

	start := time.Now()
	_, err := runner.Run(context.Background(), id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.ScheduleStatusPending, f.record(t, id).Status)
}
