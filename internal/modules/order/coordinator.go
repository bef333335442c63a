// README: Claim coordinator. Turns driver and admin intents into conditional
// store writes and classifies every refusal.
package order

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

type Coordinator struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewCoordinator(repo Repository, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{repo: repo, log: logger, now: time.Now}
}

// Claim assigns a pending order to driverID. Exactly one of any number of
// concurrent claimers wins; the rest get ErrAlreadyClaimed.
func (c *Coordinator) Claim(ctx context.Context, orderID, driverID types.ID) (*Order, error) {
	if orderID == "" || driverID == "" {
		return nil, errs.Validation("order id and driver id are required")
	}
	o, err := c.repo.CompareAndSwap(ctx, Transition{
		OrderID:      orderID,
		From:         StatusPending,
		To:           StatusClaimed,
		AssignDriver: &driverID,
	})
	if err != nil {
		return nil, err
	}
	if o == nil {
		if _, err := c.repo.Get(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, errs.ErrAlreadyClaimed
	}
	c.record(ctx, o.ID, StatusPending, StatusClaimed, types.RoleDriver, &driverID)
	return o, nil
}

// Advance moves an order held by driverID to next.
func (c *Coordinator) Advance(ctx context.Context, orderID, driverID types.ID, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, errs.Validation("unknown status %q", next)
	}
	cur, err := c.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !cur.AssignedTo(driverID) {
		return nil, errs.ErrNotAssigned
	}
	if !DriverCanSet(next) || !CanTransition(cur.Status, next) {
		return nil, errs.ErrInvalidTransition
	}

	o, err := c.repo.CompareAndSwap(ctx, Transition{
		OrderID:       orderID,
		From:          cur.Status,
		To:            next,
		RequireDriver: &driverID,
	})
	if err != nil {
		return nil, err
	}
	if o == nil {
		// The row moved between the read and the write.
		return nil, errs.ErrInvalidTransition
	}
	c.record(ctx, o.ID, cur.Status, next, types.RoleDriver, &driverID)
	return o, nil
}

// Complete is Advance to delivered.
func (c *Coordinator) Complete(ctx context.Context, orderID, driverID types.ID) (*Order, error) {
	return c.Advance(ctx, orderID, driverID, StatusDelivered)
}

// Cancel is the administrative exit from pending or claimed. The driver
// assignment, if any, is kept.
func (c *Coordinator) Cancel(ctx context.Context, orderID types.ID, actor types.Actor) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	cur, err := c.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, StatusCancelled) {
		return nil, errs.ErrInvalidTransition
	}
	o, err := c.repo.CompareAndSwap(ctx, Transition{
		OrderID: orderID,
		From:    cur.Status,
		To:      StatusCancelled,
	})
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errs.ErrInvalidTransition
	}
	adminID := actor.UserID
	c.record(ctx, o.ID, cur.Status, StatusCancelled, types.RoleAdmin, &adminID)
	return o, nil
}

func (c *Coordinator) record(ctx context.Context, orderID types.ID, from, to Status, role types.Role, actorID *types.ID) {
	err := c.repo.AppendEvent(ctx, &Event{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ActorRole:  role,
		ActorID:    actorID,
		CreatedAt:  c.now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("order event append failed", "order_id", orderID, "from", from, "to", to, "err", err)
	}
}
