package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lm7452/UniEats/internal/modules/availability"
	"github.com/Lm7452/UniEats/internal/modules/order"
	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/realtime"
	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []realtime.Event
	err    error
	delay  time.Duration
}

func (e *recordingEmitter) Emit(ctx context.Context, ev realtime.Event) error {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

func (e *recordingEmitter) byKind(kind realtime.Kind) []realtime.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []realtime.Event
	for _, ev := range e.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []order.Status
}

func (n *recordingNotifier) OrderStatus(_ context.Context, _ *user.User, o *order.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, o.Status)
	return nil
}

type fixture struct {
	svc      *OrderService
	orders   *order.MemoryStore
	users    *user.MemoryStore
	emitter  *recordingEmitter
	notifier *recordingNotifier

	student types.Actor
	driverA types.Actor
	driverB types.Actor
	admin   types.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:   order.NewMemoryStore(),
		users:    user.NewMemoryStore(),
		emitter:  &recordingEmitter{},
		notifier: &recordingNotifier{},
	}
	phone := "+16095550100"
	f.users.Put(&user.User{ID: "s1", Subject: "s1", Email: "s1@princeton.edu", Role: types.RoleStudent, PhoneNumber: &phone})
	f.users.Put(&user.User{ID: "da", Subject: "da", Role: types.RoleDriver, IsAvailable: true})
	f.users.Put(&user.User{ID: "db", Subject: "db", Role: types.RoleDriver, IsAvailable: true})
	f.users.Put(&user.User{ID: "a1", Subject: "a1", Role: types.RoleAdmin})
	f.student = types.Actor{UserID: "s1", Role: types.RoleStudent}
	f.driverA = types.Actor{UserID: "da", Role: types.RoleDriver}
	f.driverB = types.Actor{UserID: "db", Role: types.RoleDriver}
	f.admin = types.Actor{UserID: "a1", Role: types.RoleAdmin}

	f.svc = NewOrderService(OrderDeps{
		Orders:       f.orders,
		Users:        f.users,
		Availability: availability.NewRegistry(f.users, nil),
		Emitter:      f.emitter,
		Notifier:     f.notifier,
		EmitTimeout:  time.Second,
	})
	t.Cleanup(f.svc.Wait)
	return f
}

func residentialInput() CreateOrderInput {
	return CreateOrderInput{
		ExternalOrderRef: "TB-1001",
		LocationType:     "residential",
		DeliveryBuilding: "Mathey College",
		ResidenceHall:    "Blair",
		DeliveryRoom:     "301",
		TipAmount:        2.00,
		PaymentReference: "pi_123",
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Nil(t, o.DriverID)
	assert.Equal(t, int64(200), o.TipAmount.Amount)
	assert.Equal(t, int64(150), o.ServiceFee.Amount)
	require.NotNil(t, o.ResidenceHall)
	assert.Equal(t, "Blair", *o.ResidenceHall)
	require.NotNil(t, o.CustomerPhone)
	assert.Equal(t, "+16095550100", *o.CustomerPhone)
	require.NotNil(t, o.CustomerEmail)
	assert.Equal(t, "s1@princeton.edu", *o.CustomerEmail)

	stored, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)

	f.svc.Wait()
	created := f.emitter.byKind(realtime.KindOrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, []realtime.Target{realtime.DriversTarget}, created[0].Targets)
	assert.Equal(t, 1, f.emitter.count())
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateOrderInput)
	}{
		{"missing ref", func(in *CreateOrderInput) { in.ExternalOrderRef = " " }},
		{"unknown location", func(in *CreateOrderInput) { in.LocationType = "boathouse" }},
		{"residential without hall", func(in *CreateOrderInput) { in.ResidenceHall = "" }},
		{"residential without room", func(in *CreateOrderInput) { in.DeliveryRoom = "" }},
		{"upperclassmen without building", func(in *CreateOrderInput) {
			in.LocationType = "Upperclassmen Hall"
			in.DeliveryBuilding = ""
		}},
		{"campus without room", func(in *CreateOrderInput) {
			in.LocationType = "campus"
			in.DeliveryRoom = ""
		}},
		{"negative tip", func(in *CreateOrderInput) { in.TipAmount = -1 }},
		{"missing payment reference", func(in *CreateOrderInput) { in.PaymentReference = "" }},
		{"bad phone", func(in *CreateOrderInput) { in.CustomerPhone = "12" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := residentialInput()
			tc.mutate(&in)
			_, err := f.svc.CreateOrder(ctx, f.student, in)
			require.ErrorIs(t, err, errs.ErrValidation)
		})
	}

	all, err := f.orders.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	f.svc.Wait()
	assert.Zero(t, f.emitter.count())
}

func TestCreateOrderLocationVariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := residentialInput()
	in.LocationType = "Upperclassmen Hall"
	in.ResidenceHall = "ignored"
	o, err := f.svc.CreateOrder(ctx, f.student, in)
	require.NoError(t, err)
	assert.Equal(t, order.LocationUpperclassmen, o.LocationType)
	assert.Nil(t, o.ResidenceHall)

	in = residentialInput()
	in.LocationType = "Campus Building"
	in.DeliveryBuilding = "Frist Campus Center"
	in.DeliveryRoom = "front desk"
	in.ResidenceHall = ""
	o, err = f.svc.CreateOrder(ctx, f.student, in)
	require.NoError(t, err)
	assert.Equal(t, order.LocationCampus, o.LocationType)
}

func TestCreateOrderAdmissionGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []types.Actor{f.driverA, f.driverB} {
		_, err := f.svc.SetDriverAvailability(ctx, d, d.UserID, false)
		require.NoError(t, err)
	}
	n, err := f.svc.CountAvailableDrivers(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.ErrorIs(t, err, errs.ErrNoDriversAvailable)

	_, err = f.svc.SetDriverAvailability(ctx, f.driverA, f.driverA.UserID, true)
	require.NoError(t, err)
	o, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)

	// Later availability changes do not touch admitted orders.
	_, err = f.svc.SetDriverAvailability(ctx, f.driverA, f.driverA.UserID, false)
	require.NoError(t, err)
	stored, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, stored.Status)

	status, err := f.svc.AppStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.AvailableDriverCount)
}

func TestCreateOrderWelcomePromo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := residentialInput()
	in.TipAmount = 0
	in.PromoCode = " welcomebite "
	in.PaymentReference = ""
	o, err := f.svc.CreateOrder(ctx, f.student, in)
	require.NoError(t, err)
	assert.True(t, o.PromoApplied)
	assert.True(t, o.ServiceFee.IsZero())
	assert.Nil(t, o.PaymentReference)

	// Second order: promo no longer applies, so the fee is due again.
	_, err = f.svc.CreateOrder(ctx, f.student, in)
	require.ErrorIs(t, err, errs.ErrValidation)

	q, err := f.svc.Quote(ctx, f.student, 0, "WELCOMEBITE")
	require.NoError(t, err)
	assert.False(t, q.PromoApplied)
	assert.Equal(t, int64(150), q.Total.Amount)
}

func TestConcurrentFirstOrdersWaiveFeeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := residentialInput()
	in.TipAmount = 0
	in.PromoCode = "WELCOMEBITE"
	in.PaymentReference = ""

	const attempts = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateOrder(ctx, f.student, in)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, errs.ErrValidation)
	}
	assert.Equal(t, 1, created)

	history, err := f.orders.ListByCustomer(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].PromoApplied)
}

func TestZeroTotalRejectsReference(t *testing.T) {
	f := newFixture(t)
	in := residentialInput()
	in.TipAmount = 0
	in.PromoCode = "WELCOMEBITE"
	in.PaymentReference = "pi_unexpected"
	_, err := f.svc.CreateOrder(context.Background(), f.student, in)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestClaimEmitsAndPushes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)
	f.svc.Wait()

	claimed, err := f.svc.ClaimOrder(ctx, f.driverA, o.ID)
	require.NoError(t, err)
	assert.True(t, claimed.AssignedTo(f.driverA.UserID))
	f.svc.Wait()

	ce := f.emitter.byKind(realtime.KindOrderClaimed)
	require.Len(t, ce, 1)
	assert.Equal(t, []realtime.Target{realtime.DriversTarget}, ce[0].Targets)
	assert.Equal(t, realtime.OrderClaimed{OrderID: string(o.ID), ClaimedBy: "da"}, ce[0].Data)

	ue := f.emitter.byKind(realtime.KindOrderUpdated)
	require.Len(t, ue, 1)
	assert.Equal(t, []realtime.Target{realtime.UserTarget("s1")}, ue[0].Targets)

	assert.Equal(t, []order.Status{order.StatusClaimed}, f.notifier.statuses)

	_, err = f.svc.ClaimOrder(ctx, f.student, o.ID)
	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestFailedClaimEmitsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)
	_, err = f.svc.ClaimOrder(ctx, f.driverA, o.ID)
	require.NoError(t, err)
	f.svc.Wait()
	before := f.emitter.count()

	_, err = f.svc.ClaimOrder(ctx, f.driverA, o.ID)
	require.ErrorIs(t, err, errs.ErrAlreadyClaimed)
	_, err = f.svc.AdvanceOrderStatus(ctx, f.driverB, o.ID, order.StatusPickedUp)
	require.ErrorIs(t, err, errs.ErrNotAssigned)
	_, err = f.svc.CompleteOrder(ctx, f.driverA, o.ID)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	f.svc.Wait()
	assert.Equal(t, before, f.emitter.count())
}

func TestDeliveryScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, o.Status)

	type result struct {
		actor types.Actor
		order *order.Order
		err   error
	}
	results := make(chan result, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, d := range []types.Actor{f.driverA, f.driverB} {
		wg.Add(1)
		go func(d types.Actor) {
			defer wg.Done()
			<-start
			got, err := f.svc.ClaimOrder(ctx, d, o.ID)
			results <- result{actor: d, order: got, err: err}
		}(d)
	}
	close(start)
	wg.Wait()
	close(results)

	var winner, loser types.Actor
	for r := range results {
		if r.err == nil {
			require.Equal(t, order.StatusClaimed, r.order.Status)
			winner = r.actor
			continue
		}
		require.ErrorIs(t, r.err, errs.ErrAlreadyClaimed)
		loser = r.actor
	}
	require.NotEmpty(t, winner.UserID)
	require.NotEmpty(t, loser.UserID)

	_, err = f.svc.AdvanceOrderStatus(ctx, winner, o.ID, order.StatusPickedUp)
	require.NoError(t, err)
	_, err = f.svc.AdvanceOrderStatus(ctx, loser, o.ID, order.StatusEnRoute)
	require.ErrorIs(t, err, errs.ErrNotAssigned)
	done, err := f.svc.AdvanceOrderStatus(ctx, winner, o.ID, order.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, done.Status)

	_, err = f.svc.ClaimOrder(ctx, loser, o.ID)
	require.ErrorIs(t, err, errs.ErrAlreadyClaimed)

	f.svc.Wait()
	changed := f.emitter.byKind(realtime.KindOrderStatusChanged)
	require.Len(t, changed, 2)
	assert.ElementsMatch(t, []realtime.Target{realtime.UserTarget("s1"), realtime.DriversTarget}, changed[1].Targets)
	require.Len(t, f.emitter.byKind(realtime.KindOrderCompleted), 1)
}

func TestEmitFailureDoesNotFailCall(t *testing.T) {
	f := newFixture(t)
	f.emitter.err = errors.New("bus down")
	f.emitter.delay = 300 * time.Millisecond
	ctx := context.Background()

	start := time.Now()
	o, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)
	_, err = f.svc.ClaimOrder(ctx, f.driverA, o.ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 300*time.Millisecond)

	stored, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusClaimed, stored.Status)
}

func TestCancelAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, f.driverA, o.ID)
	require.ErrorIs(t, err, errs.ErrForbidden)
	cancelled, err := f.svc.CancelOrder(ctx, f.admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)

	f.svc.Wait()
	changed := f.emitter.byKind(realtime.KindOrderStatusChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, "cancelled", changed[0].Data.(realtime.OrderStatusChanged).Status)

	require.ErrorIs(t, f.svc.DeleteOrder(ctx, f.student, o.ID), errs.ErrForbidden)
	require.NoError(t, f.svc.DeleteOrder(ctx, f.admin, o.ID))
	_, err = f.svc.GetOrder(ctx, f.admin, o.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGetOrderVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.users.Put(&user.User{ID: "s2", Subject: "s2", Role: types.RoleStudent})
	other := types.Actor{UserID: "s2", Role: types.RoleStudent}

	o, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)

	for _, a := range []types.Actor{f.student, f.driverA, f.driverB, f.admin} {
		_, err := f.svc.GetOrder(ctx, a, o.ID)
		require.NoError(t, err, a.UserID)
	}
	_, err = f.svc.GetOrder(ctx, other, o.ID)
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.svc.ClaimOrder(ctx, f.driverA, o.ID)
	require.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, f.driverA, o.ID)
	require.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, f.driverB, o.ID)
	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)
	second, err := f.svc.CreateOrder(ctx, f.student, residentialInput())
	require.NoError(t, err)
	_, err = f.svc.ClaimOrder(ctx, f.driverA, second.ID)
	require.NoError(t, err)

	available, err := f.svc.ListAvailableOrders(ctx, f.driverB)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, first.ID, available[0].ID)
	_, err = f.svc.ListAvailableOrders(ctx, f.student)
	require.ErrorIs(t, err, errs.ErrForbidden)

	mine, err := f.svc.ListDriverOrders(ctx, f.driverA)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.ID, mine[0].ID)

	history, err := f.svc.ListCustomerOrderHistory(ctx, f.student)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = f.svc.ListAllOrders(ctx, f.driverA)
	require.ErrorIs(t, err, errs.ErrForbidden)
	all, err := f.svc.ListAllOrders(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
