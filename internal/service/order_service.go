package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lm7452/UniEats/internal/modules/availability"
	"github.com/Lm7452/UniEats/internal/modules/order"
	"github.com/Lm7452/UniEats/internal/modules/payment"
	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/realtime"
	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

// DefaultEmitTimeout bounds one fire-and-forget emission.
const DefaultEmitTimeout = 5 * time.Second

const maxFieldLen = 200

// Emitter publishes realtime events. *realtime.Hub satisfies it.
type Emitter interface {
	Emit(ctx context.Context, ev realtime.Event) error
}

// Notifier pushes status changes to a customer's device.
type Notifier interface {
	OrderStatus(ctx context.Context, customer *user.User, o *order.Order) error
}

// OrderAPI is the order use-case surface consumed by transports.
type OrderAPI interface {
	CreateOrder(ctx context.Context, actor types.Actor, in CreateOrderInput) (*order.Order, error)
	ClaimOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error)
	AdvanceOrderStatus(ctx context.Context, actor types.Actor, orderID types.ID, next order.Status) (*order.Order, error)
	CompleteOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error)
	CancelOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error)
	DeleteOrder(ctx context.Context, actor types.Actor, orderID types.ID) error
	GetOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error)
	ListAvailableOrders(ctx context.Context, actor types.Actor) ([]*order.Order, error)
	ListDriverOrders(ctx context.Context, actor types.Actor) ([]*order.Order, error)
	ListCustomerOrderHistory(ctx context.Context, actor types.Actor) ([]*order.Order, error)
	ListAllOrders(ctx context.Context, actor types.Actor) ([]*order.Order, error)
	SetDriverAvailability(ctx context.Context, actor types.Actor, driverID types.ID, available bool) (*user.User, error)
	CountAvailableDrivers(ctx context.Context) (int, error)
	AppStatus(ctx context.Context) (AppStatus, error)
	Quote(ctx context.Context, actor types.Actor, tip float64, promoCode string) (payment.Quote, error)
}

// CreateOrderInput is a delivery request as submitted by a customer.
// Amounts are decimal dollars.
type CreateOrderInput struct {
	ExternalOrderRef string
	LocationType     string
	DeliveryBuilding string
	DeliveryRoom     string
	ResidenceHall    string
	TipAmount        float64
	PaymentReference string
	PromoCode        string
	CustomerPhone    string
	CustomerEmail    string
}

type AppStatus struct {
	AvailableDriverCount int `json:"availableDriverCount"`
}

type OrderDeps struct {
	Orders       order.Repository
	Users        user.Repository
	Coordinator  *order.Coordinator
	Availability *availability.Registry
	Emitter      Emitter
	Notifier     Notifier
	Logger       *slog.Logger
	EmitTimeout  time.Duration
}

// OrderService orchestrates the order lifecycle: admission, validation,
// payment rule, persistence and event emission.
type OrderService struct {
	orders      order.Repository
	users       user.Repository
	coord       *order.Coordinator
	avail       *availability.Registry
	emitter     Emitter
	notifier    Notifier
	log         *slog.Logger
	emitTimeout time.Duration
	now         func() time.Time

	inflight sync.WaitGroup
}

func NewOrderService(d OrderDeps) *OrderService {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.EmitTimeout <= 0 {
		d.EmitTimeout = DefaultEmitTimeout
	}
	if d.Coordinator == nil {
		d.Coordinator = order.NewCoordinator(d.Orders, d.Logger)
	}
	return &OrderService{
		orders:      d.Orders,
		users:       d.Users,
		coord:       d.Coordinator,
		avail:       d.Availability,
		emitter:     d.Emitter,
		notifier:    d.Notifier,
		log:         d.Logger,
		emitTimeout: d.EmitTimeout,
		now:         time.Now,
	}
}

// CreateOrder admits, validates and stores a new pending order, then tells
// the drivers about it.
func (s *OrderService) CreateOrder(ctx context.Context, actor types.Actor, in CreateOrderInput) (*order.Order, error) {
	if actor.UserID == "" {
		return nil, errs.ErrForbidden
	}

	n, err := s.avail.CountAvailableDrivers(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errs.ErrNoDriversAvailable
	}

	d, err := validateDelivery(in)
	if err != nil {
		return nil, err
	}

	quote, err := s.quote(ctx, actor.UserID, in.TipAmount, in.PromoCode)
	if err != nil {
		return nil, err
	}
	if err := payment.CheckReference(quote, in.PaymentReference); err != nil {
		return nil, err
	}

	phone, email, err := s.contact(ctx, actor.UserID, in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &order.Order{
		ID:               types.ID(uuid.NewString()),
		ExternalOrderRef: d.ref,
		LocationType:     d.locType,
		DeliveryBuilding: d.building,
		DeliveryRoom:     d.room,
		ResidenceHall:    d.hall,
		TipAmount:        quote.Tip,
		ServiceFee:       quote.ServiceFee,
		PaymentReference: optional(in.PaymentReference),
		PromoApplied:     quote.PromoApplied,
		PromoCode:        optional(quote.PromoCode),
		CustomerID:       actor.UserID,
		CustomerPhone:    phone,
		CustomerEmail:    email,
		Status:           order.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	s.log.Info("order created", "order_id", o.ID, "customer_id", o.CustomerID, "location_type", o.LocationType)

	s.emit(realtime.Event{
		Kind:    realtime.KindOrderCreated,
		Targets: []realtime.Target{realtime.DriversTarget},
		Data:    order.ToView(o),
	})
	return o, nil
}

func (s *OrderService) ClaimOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	if !actor.IsDriver() {
		return nil, errs.ErrForbidden
	}
	o, err := s.coord.Claim(ctx, orderID, actor.UserID)
	if err != nil {
		return nil, err
	}
	s.log.Info("order claimed", "order_id", o.ID, "driver_id", actor.UserID)

	s.emit(realtime.Event{
		Kind:    realtime.KindOrderClaimed,
		Targets: []realtime.Target{realtime.DriversTarget},
		Data:    realtime.OrderClaimed{OrderID: string(o.ID), ClaimedBy: string(actor.UserID)},
	})
	s.emit(realtime.Event{
		Kind:    realtime.KindOrderUpdated,
		Targets: []realtime.Target{realtime.UserTarget(o.CustomerID)},
		Data:    order.ToView(o),
	})
	s.push(o)
	return o, nil
}

func (s *OrderService) AdvanceOrderStatus(ctx context.Context, actor types.Actor, orderID types.ID, next order.Status) (*order.Order, error) {
	if !actor.IsDriver() {
		return nil, errs.ErrForbidden
	}
	o, err := s.coord.Advance(ctx, orderID, actor.UserID, next)
	if err != nil {
		return nil, err
	}
	s.log.Info("order status changed", "order_id", o.ID, "driver_id", actor.UserID, "status", o.Status)
	s.emitStatusChange(o)
	return o, nil
}

func (s *OrderService) CompleteOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	return s.AdvanceOrderStatus(ctx, actor, orderID, order.StatusDelivered)
}

func (s *OrderService) CancelOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	o, err := s.coord.Cancel(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	s.log.Info("order cancelled", "order_id", o.ID, "admin_id", actor.UserID)
	s.emitStatusChange(o)
	return o, nil
}

// DeleteOrder removes the order row and its event trail. Admin only.
func (s *OrderService) DeleteOrder(ctx context.Context, actor types.Actor, orderID types.ID) error {
	if !actor.IsAdmin() {
		return errs.ErrForbidden
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return err
	}
	s.log.Info("order deleted", "order_id", orderID, "admin_id", actor.UserID)
	return nil
}

// GetOrder returns the order to its customer, its driver, any driver while
// it is still pending, and admins.
func (s *OrderService) GetOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin(),
		o.CustomerID == actor.UserID,
		o.AssignedTo(actor.UserID),
		actor.IsDriver() && o.Status == order.StatusPending:
		return o, nil
	}
	return nil, errs.ErrForbidden
}

func (s *OrderService) ListAvailableOrders(ctx context.Context, actor types.Actor) ([]*order.Order, error) {
	if !actor.IsDriver() && !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	return s.orders.ListAvailable(ctx)
}

func (s *OrderService) ListDriverOrders(ctx context.Context, actor types.Actor) ([]*order.Order, error) {
	if !actor.IsDriver() {
		return nil, errs.ErrForbidden
	}
	return s.orders.ListActiveByDriver(ctx, actor.UserID)
}

func (s *OrderService) ListCustomerOrderHistory(ctx context.Context, actor types.Actor) ([]*order.Order, error) {
	if actor.UserID == "" {
		return nil, errs.ErrForbidden
	}
	return s.orders.ListByCustomer(ctx, actor.UserID)
}

func (s *OrderService) ListAllOrders(ctx context.Context, actor types.Actor) ([]*order.Order, error) {
	if !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	return s.orders.ListAll(ctx)
}

func (s *OrderService) SetDriverAvailability(ctx context.Context, actor types.Actor, driverID types.ID, available bool) (*user.User, error) {
	return s.avail.SetAvailability(ctx, actor, driverID, available)
}

func (s *OrderService) CountAvailableDrivers(ctx context.Context) (int, error) {
	return s.avail.CountAvailableDrivers(ctx)
}

func (s *OrderService) AppStatus(ctx context.Context) (AppStatus, error) {
	n, err := s.avail.CountAvailableDrivers(ctx)
	if err != nil {
		return AppStatus{}, err
	}
	return AppStatus{AvailableDriverCount: n}, nil
}

// Quote prices a prospective order for the caller without storing anything.
func (s *OrderService) Quote(ctx context.Context, actor types.Actor, tip float64, promoCode string) (payment.Quote, error) {
	if actor.UserID == "" {
		return payment.Quote{}, errs.ErrForbidden
	}
	return s.quote(ctx, actor.UserID, tip, promoCode)
}

// Wait blocks until in-flight emissions finish. Used on shutdown and in tests.
func (s *OrderService) Wait() {
	s.inflight.Wait()
}

func (s *OrderService) quote(ctx context.Context, customerID types.ID, tip float64, promoCode string) (payment.Quote, error) {
	tipMoney, err := types.MoneyFromDecimal(tip)
	if err != nil {
		return payment.Quote{}, errs.Validation("tip: %v", err)
	}
	first := true
	if payment.NormalizePromo(promoCode) != "" {
		history, err := s.orders.ListByCustomer(ctx, customerID)
		if err != nil {
			return payment.Quote{}, err
		}
		for _, o := range history {
			if o.Status != order.StatusCancelled {
				first = false
				break
			}
		}
	}
	return payment.PriceQuote(payment.QuoteRequest{Tip: tipMoney, PromoCode: promoCode, FirstOrder: first})
}

// contact snapshots how the driver can reach the customer. Explicit input
// wins over the stored profile.
func (s *OrderService) contact(ctx context.Context, customerID types.ID, in CreateOrderInput) (*string, *string, error) {
	phone := strings.TrimSpace(in.CustomerPhone)
	email := strings.TrimSpace(in.CustomerEmail)
	if phone == "" || email == "" {
		if u, err := s.users.Get(ctx, customerID); err == nil {
			if phone == "" && u.PhoneNumber != nil {
				phone = *u.PhoneNumber
			}
			if email == "" {
				email = u.Email
			}
		} else if !errors.Is(err, errs.ErrNotFound) {
			return nil, nil, err
		}
	}
	if phone != "" {
		normalized, err := user.NormalizePhone(phone)
		if err != nil {
			return nil, nil, err
		}
		phone = normalized
	}
	return optional(phone), optional(email), nil
}

func (s *OrderService) emitStatusChange(o *order.Order) {
	s.emit(realtime.Event{
		Kind:    realtime.KindOrderStatusChanged,
		Targets: []realtime.Target{realtime.UserTarget(o.CustomerID), realtime.DriversTarget},
		Data: realtime.OrderStatusChanged{
			OrderID: string(o.ID),
			Status:  string(o.Status),
			Order:   order.ToView(o),
		},
	})
	if o.Status == order.StatusDelivered {
		s.emit(realtime.Event{
			Kind:    realtime.KindOrderCompleted,
			Targets: []realtime.Target{realtime.DriversTarget},
			Data:    realtime.OrderCompleted{OrderID: string(o.ID)},
		})
	}
	s.push(o)
}

// emit publishes on its own goroutine and deadline. A failed emission is
// logged and never affects the operation that triggered it.
func (s *OrderService) emit(ev realtime.Event) {
	if s.emitter == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.emitTimeout)
		defer cancel()
		if err := s.emitter.Emit(ctx, ev); err != nil {
			s.log.Warn("realtime emit failed", "kind", ev.Kind, "err", err)
		}
	}()
}

func (s *OrderService) push(o *order.Order) {
	if s.notifier == nil || s.users == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.emitTimeout)
		defer cancel()
		customer, err := s.users.Get(ctx, o.CustomerID)
		if err != nil {
			s.log.Warn("push: load customer failed", "order_id", o.ID, "err", err)
			return
		}
		if err := s.notifier.OrderStatus(ctx, customer, o); err != nil {
			s.log.Warn("push failed", "order_id", o.ID, "status", o.Status, "err", err)
		}
	}()
}

type delivery struct {
	ref      string
	locType  order.LocationType
	building string
	room     string
	hall     *string
}

func validateDelivery(in CreateOrderInput) (delivery, error) {
	var d delivery
	d.ref = strings.TrimSpace(in.ExternalOrderRef)
	if d.ref == "" {
		return d, errs.Validation("external order reference is required")
	}

	lt, ok := order.ParseLocationType(in.LocationType)
	if !ok {
		return d, errs.Validation("unknown location type %q", in.LocationType)
	}
	d.locType = lt
	d.building = strings.TrimSpace(in.DeliveryBuilding)
	d.room = strings.TrimSpace(in.DeliveryRoom)
	hall := strings.TrimSpace(in.ResidenceHall)

	switch lt {
	case order.LocationResidential:
		if d.building == "" || hall == "" || d.room == "" {
			return d, errs.Validation("residential delivery needs building, hall and room")
		}
		d.hall = &hall
	case order.LocationUpperclassmen:
		if d.building == "" || d.room == "" {
			return d, errs.Validation("upperclassmen delivery needs building and room")
		}
	case order.LocationCampus:
		if d.building == "" || d.room == "" {
			return d, errs.Validation("campus delivery needs a building name and room or location")
		}
	}

	for name, v := range map[string]string{"external order reference": d.ref, "building": d.building, "room": d.room, "hall": hall} {
		if len(v) > maxFieldLen {
			return d, errs.Validation("%s is longer than %d characters", name, maxFieldLen)
		}
	}
	return d, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
