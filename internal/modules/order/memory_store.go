package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

// MemoryStore is the in-process Repository used for development without a
// database and in unit tests. The mutex is held only for the compare-and-set.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[types.ID]*Order
	events []Event
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[types.ID]*Order),
		now:    time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[o.ID]; exists {
		return errs.Validation("order %s already exists", o.ID)
	}
	if o.PromoApplied {
		for _, other := range m.orders {
			if other.CustomerID == o.CustomerID && other.PromoApplied && other.Status != StatusCancelled {
				return ErrPromoUsed
			}
		}
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) CompareAndSwap(ctx context.Context, tr Transition) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("update order status", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[tr.OrderID]
	if !ok || o.Status != tr.From {
		return nil, nil
	}
	if tr.RequireDriver != nil && !o.AssignedTo(*tr.RequireDriver) {
		return nil, nil
	}

	now := m.now().UTC()
	o.Status = tr.To
	o.StatusVersion++
	o.UpdatedAt = now
	if tr.AssignDriver != nil {
		d := *tr.AssignDriver
		o.DriverID = &d
	}
	switch tr.To {
	case StatusClaimed:
		o.ClaimedAt = &now
	case StatusPickedUp:
		o.PickedUpAt = &now
	case StatusEnRoute:
		o.EnRouteAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := *e
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// Events returns the recorded transitions of one order, oldest first.
func (m *MemoryStore) Events(id types.ID) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.OrderID == id {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemoryStore) Delete(_ context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *MemoryStore) ListAvailable(_ context.Context) ([]*Order, error) {
	out := m.filter(func(o *Order) bool { return o.Status == StatusPending })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListActiveByDriver(_ context.Context, driverID types.ID) ([]*Order, error) {
	out := m.filter(func(o *Order) bool { return o.AssignedTo(driverID) && o.Status.Active() })
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) ListByCustomer(_ context.Context, customerID types.ID) ([]*Order, error) {
	out := m.filter(func(o *Order) bool { return o.CustomerID == customerID })
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) ListAll(_ context.Context) ([]*Order, error) {
	out := m.filter(func(*Order) bool { return true })
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) filter(keep func(*Order) bool) []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Order, 0)
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	return out
}

func sortNewestFirst(list []*Order) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func cloneOrder(o *Order) *Order {
	c := *o
	if o.DriverID != nil {
		d := *o.DriverID
		c.DriverID = &d
	}
	return &c
}
