package order

import (
	"context"

	"github.com/Lm7452/UniEats/internal/types"
)

// Transition is a conditional status update. The store applies it only when
// the row is still in From and, if RequireDriver is set, held by that driver.
type Transition struct {
	OrderID       types.ID
	From          Status
	To            Status
	RequireDriver *types.ID
	AssignDriver  *types.ID
}

// Repository is the order persistence contract. CompareAndSwap returns
// (nil, nil) when the guard did not match; the caller decides why.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	CompareAndSwap(ctx context.Context, tr Transition) (*Order, error)
	AppendEvent(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id types.ID) error
	ListAvailable(ctx context.Context) ([]*Order, error)
	ListActiveByDriver(ctx context.Context, driverID types.ID) ([]*Order, error)
	ListByCustomer(ctx context.Context, customerID types.ID) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*MemoryStore)(nil)
)
