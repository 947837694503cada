package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Courier/internal/domain"
)

// contentTables — таблица объекта контента по типу.
var contentTables = map[domain.ContentType]string{
	domain.ContentTypePost:         "posts",
	domain.ContentTypeNotification: "notifications",
	domain.ContentTypeCoupon:       "coupons",
}

// ContentLookup проверяет существование объектов контента.
type ContentLookup struct {
	pool *pgxpool.Pool
}

// NewContentLookup создаёт ContentLookup.
func NewContentLookup(pool *pgxpool.Pool) *ContentLookup {
	return &ContentLookup{pool: pool}
}

// Exists сообщает, есть ли объект contentID типа contentType.
func (l *ContentLookup) Exists(ctx context.Context, contentType domain.ContentType, contentID int64) (bool, error) {
	table, ok := contentTables[contentType]
	if !ok {
		return false, fmt.Errorf("unknown content type %q", contentType)
	}

	var exists bool
	err := conn(ctx, l.pool).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", contentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s %d: %w", contentType, contentID, err)
	}
	return exists, nil
}
