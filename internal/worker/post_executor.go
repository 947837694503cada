package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
)

// PostStore — доступ к постам.
type PostStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Post, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
}

// PostExecutor публикует пост. Повторный вызов для опубликованного поста — no-op.
type PostExecutor struct {
	posts PostStore
	now   func() time.Time
}

// NewPostExecutor создаёт PostExecutor.
func NewPostExecutor(posts PostStore) *PostExecutor {
	return &PostExecutor{posts: posts, now: time.Now}
}

// Execute публикует пост rec.ContentID.
func (e *PostExecutor) Execute(ctx context.Context, rec *domain.ScheduleRecord) (*ExecutionResult, error) {
	post, err := e.posts.GetByID(ctx, rec.ContentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: post %d", ErrContentNotFound, rec.ContentID)
	}
	if err != nil {
		return nil, err
	}

	if post.IsPublished() {
		return &ExecutionResult{Outputs: map[string]any{"already_published": true}}, nil
	}

	at := e.now().UTC()
	if err := e.posts.MarkPublished(ctx, post.ID, at); err != nil {
		return nil, fmt.Errorf("publish post %d: %w", post.ID, err)
	}

	return &ExecutionResult{Outputs: map[string]any{"published_at": at}}, nil
}
