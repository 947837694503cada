// Package target превращает дескриптор когорты в список участников.
package target

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
)

// MemberStore — источник участников и уровней.
type MemberStore interface {
	ListActiveIDs(ctx context.Context) ([]int64, error)
	ListActiveIDsByLevel(ctx context.Context, levelID int64) ([]int64, error)
	GetLevel(ctx context.Context, id int64) (*domain.MembershipLevel, error)
}

// Resolver разрешает Target в ID участников. Без побочных эффектов.
type Resolver struct {
	members MemberStore
}

// NewResolver создаёт Resolver.
func NewResolver(members MemberStore) *Resolver {
	return &Resolver{members: members}
}

// Resolve возвращает активных участников когорты.
//
// Для Level(id) уровень должен существовать и быть активным,
// иначе domain.ErrInvalidTarget.
func (r *Resolver) Resolve(ctx context.Context, t domain.Target) ([]int64, error) {
	switch t.Kind {
	case domain.TargetAll:
		ids, err := r.members.ListActiveIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list active members: %w", err)
		}
		return ids, nil

	case domain.TargetLevel:
		level, err := r.members.GetLevel(ctx, t.LevelID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: level %d does not exist", domain.ErrInvalidTarget, t.LevelID)
		}
		if err != nil {
			return nil, fmt.Errorf("get level %d: %w", t.LevelID, err)
		}
		if !level.IsActive {
			return nil, fmt.Errorf("%w: level %d is inactive", domain.ErrInvalidTarget, t.LevelID)
		}

		ids, err := r.members.ListActiveIDsByLevel(ctx, t.LevelID)
		if err != nil {
			return nil, fmt.Errorf("list members of level %d: %w", t.LevelID, err)
		}
		return ids, nil

	default:
		return nil, fmt.Errorf("%w: unknown target kind %d", domain.ErrInvalidTarget, t.Kind)
	}
}

// ResolveDescriptor разбирает строковый дескриптор и разрешает его.
func (r *Resolver) ResolveDescriptor(ctx context.Context, descriptor string) ([]int64, error) {
	t, err := domain.ParseTarget(descriptor)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, t)
}
