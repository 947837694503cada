package schedule

import (
	"context"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/fanout"
	"github.com/shaiso/Courier/internal/repo/memrepo"
	"github.com/shaiso/Courier/internal/target"
)

type dispatcherFunc func(ctx context.Context, couponID int64, t domain.Target) (domain.DispatchReport, error)

func (f dispatcherFunc) Dispatch(ctx context.Context, couponID int64, t domain.Target) (domain.DispatchReport, error) {
	return f(ctx, couponID, t)
}

func newDispatcher(db *memrepo.DB) *fanout.Engine {
	return fanout.New(fanout.Config{
		Coupons:  db.Coupons(),
		Resolver: target.NewResolver(db.Members()),
		Tx:       db,
	})
}
