// README: Driver availability registry. Feeds the order admission gate.
package availability

import (
	"context"
	"log/slog"

	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

// Store is the slice of the user directory the registry needs.
type Store interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
	SetAvailability(ctx context.Context, id types.ID, available bool) (*user.User, error)
	CountAvailableDrivers(ctx context.Context) (int, error)
}

type Registry struct {
	store Store
	log   *slog.Logger
}

func NewRegistry(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, log: logger}
}

// CountAvailableDrivers is read on every order creation. The count is a
// snapshot; a driver going offline right after it is read is accepted.
func (r *Registry) CountAvailableDrivers(ctx context.Context) (int, error) {
	return r.store.CountAvailableDrivers(ctx)
}

// SetAvailability lets a driver toggle themselves, or an admin toggle any
// driver. Last write wins.
func (r *Registry) SetAvailability(ctx context.Context, actor types.Actor, target types.ID, available bool) (*user.User, error) {
	if actor.UserID != target && !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	cur, err := r.store.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	if cur.Role != types.RoleDriver {
		return nil, errs.Validation("user %s is not a driver", target)
	}
	u, err := r.store.SetAvailability(ctx, target, available)
	if err != nil {
		return nil, err
	}
	r.log.Info("driver availability changed", "driver_id", target, "available", available, "by", actor.UserID)
	return u, nil
}
