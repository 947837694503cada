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

// PostRepo — доступ к постам бэк-офиса.
type PostRepo struct {
	pool *pgxpool.Pool
}

// NewPostRepo создаёт новый PostRepo.
func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

// GetByID возвращает пост по ID.
func (r *PostRepo) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	var p domain.Post
	var status string
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, title, status, published_at FROM posts WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &status, &p.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	p.Status = domain.PostStatus(status)
	return &p, nil
}

// MarkPublished публикует пост.
func (r *PostRepo) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE posts SET status = 'published', published_at = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("publish post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
