package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Lm7452/UniEats/internal/modules/order"
	"github.com/Lm7452/UniEats/internal/modules/payment"
	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

const tracerName = "github.com/Lm7452/UniEats/internal/service"

// Traced decorates an OrderAPI with spans, logs and counters.
type Traced struct {
	inner   OrderAPI
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics orderMetrics
}

type TraceOption func(*Traced)

func WithLogger(logger *slog.Logger) TraceOption {
	return func(t *Traced) {
		t.logger = logger
	}
}

func WithTracer(tr trace.Tracer) TraceOption {
	return func(t *Traced) {
		t.tracer = tr
	}
}

func WithMeter(m metric.Meter) TraceOption {
	return func(t *Traced) {
		t.metrics = newOrderMetrics(m)
	}
}

func NewTraced(inner OrderAPI, opts ...TraceOption) *Traced {
	t := &Traced{
		inner:   inner,
		metrics: newOrderMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.tracer == nil {
		t.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return t
}

func (t *Traced) CreateOrder(ctx context.Context, actor types.Actor, in CreateOrderInput) (*order.Order, error) {
	ctx, span := t.start(ctx, "OrderService.CreateOrder", actor,
		attribute.String("order.location_type", in.LocationType))
	defer span.End()

	o, err := t.inner.CreateOrder(ctx, actor, in)
	if err != nil {
		return nil, t.handleError(ctx, span, err, "create order failed", slog.String("customer_id", string(actor.UserID)))
	}
	span.SetAttributes(attribute.String("order.id", string(o.ID)))
	t.metrics.recordCreated(ctx, o.LocationType)
	return o, nil
}

func (t *Traced) ClaimOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	ctx, span := t.start(ctx, "OrderService.ClaimOrder", actor, attribute.String("order.id", string(orderID)))
	defer span.End()

	o, err := t.inner.ClaimOrder(ctx, actor, orderID)
	t.metrics.recordClaim(ctx, err)
	if err != nil {
		return nil, t.handleError(ctx, span, err, "claim failed", slog.String("order_id", string(orderID)))
	}
	return o, nil
}

func (t *Traced) AdvanceOrderStatus(ctx context.Context, actor types.Actor, orderID types.ID, next order.Status) (*order.Order, error) {
	ctx, span := t.start(ctx, "OrderService.AdvanceOrderStatus", actor,
		attribute.String("order.id", string(orderID)), attribute.String("order.next_status", string(next)))
	defer span.End()

	o, err := t.inner.AdvanceOrderStatus(ctx, actor, orderID, next)
	if err != nil {
		return nil, t.handleError(ctx, span, err, "status change failed",
			slog.String("order_id", string(orderID)), slog.String("status", string(next)))
	}
	t.metrics.recordTransition(ctx, o.Status)
	return o, nil
}

func (t *Traced) CompleteOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	ctx, span := t.start(ctx, "OrderService.CompleteOrder", actor, attribute.String("order.id", string(orderID)))
	defer span.End()

	o, err := t.inner.CompleteOrder(ctx, actor, orderID)
	if err != nil {
		return nil, t.handleError(ctx, span, err, "complete failed", slog.String("order_id", string(orderID)))
	}
	t.metrics.recordTransition(ctx, o.Status)
	return o, nil
}

func (t *Traced) CancelOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	ctx, span := t.start(ctx, "OrderService.CancelOrder", actor, attribute.String("order.id", string(orderID)))
	defer span.End()

	o, err := t.inner.CancelOrder(ctx, actor, orderID)
	if err != nil {
		return nil, t.handleError(ctx, span, err, "cancel failed", slog.String("order_id", string(orderID)))
	}
	t.metrics.recordTransition(ctx, o.Status)
	return o, nil
}

func (t *Traced) DeleteOrder(ctx context.Context, actor types.Actor, orderID types.ID) error {
	ctx, span := t.start(ctx, "OrderService.DeleteOrder", actor, attribute.String("order.id", string(orderID)))
	defer span.End()

	if err := t.inner.DeleteOrder(ctx, actor, orderID); err != nil {
		return t.handleError(ctx, span, err, "delete failed", slog.String("order_id", string(orderID)))
	}
	return nil
}

func (t *Traced) GetOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	ctx, span := t.start(ctx, "OrderService.GetOrder", actor, attribute.String("order.id", string(orderID)))
	defer span.End()

	o, err := t.inner.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, t.handleError(ctx, span, err, "get order failed", slog.String("order_id", string(orderID)))
	}
	return o, nil
}

func (t *Traced) ListAvailableOrders(ctx context.Context, actor types.Actor) ([]*order.Order, error) {
	return t.list(ctx, "OrderService.ListAvailableOrders", actor, t.inner.ListAvailableOrders)
}

func (t *Traced) ListDriverOrders(ctx context.Context, actor types.Actor) ([]*order.Order, error) {
	return t.list(ctx, "OrderService.ListDriverOrders", actor, t.inner.ListDriverOrders)
}

func (t *Traced) ListCustomerOrderHistory(ctx context.Context, actor types.Actor) ([]*order.Order, error) {
	return t.list(ctx, "OrderService.ListCustomerOrderHistory", actor, t.inner.ListCustomerOrderHistory)
}

func (t *Traced) ListAllOrders(ctx context.Context, actor types.Actor) ([]*order.Order, error) {
	return t.list(ctx, "OrderService.ListAllOrders", actor, t.inner.ListAllOrders)
}

func (t *Traced) SetDriverAvailability(ctx context.Context, actor types.Actor, driverID types.ID, available bool) (*user.User, error) {
	ctx, span := t.start(ctx, "OrderService.SetDriverAvailability", actor,
		attribute.String("driver.id", string(driverID)), attribute.Bool("driver.available", available))
	defer span.End()

	u, err := t.inner.SetDriverAvailability(ctx, actor, driverID, available)
	if err != nil {
		return nil, t.handleError(ctx, span, err, "set availability failed", slog.String("driver_id", string(driverID)))
	}
	return u, nil
}

func (t *Traced) CountAvailableDrivers(ctx context.Context) (int, error) {
	ctx, span := t.tracer.Start(ctx, "OrderService.CountAvailableDrivers")
	defer span.End()

	n, err := t.inner.CountAvailableDrivers(ctx)
	if err != nil {
		return 0, t.handleError(ctx, span, err, "count drivers failed")
	}
	span.SetAttributes(attribute.Int("drivers.available", n))
	return n, nil
}

func (t *Traced) AppStatus(ctx context.Context) (AppStatus, error) {
	ctx, span := t.tracer.Start(ctx, "OrderService.AppStatus")
	defer span.End()

	st, err := t.inner.AppStatus(ctx)
	if err != nil {
		return AppStatus{}, t.handleError(ctx, span, err, "app status failed")
	}
	return st, nil
}

func (t *Traced) Quote(ctx context.Context, actor types.Actor, tip float64, promoCode string) (payment.Quote, error) {
	ctx, span := t.start(ctx, "OrderService.Quote", actor)
	defer span.End()

	q, err := t.inner.Quote(ctx, actor, tip, promoCode)
	if err != nil {
		return payment.Quote{}, t.handleError(ctx, span, err, "quote failed")
	}
	span.SetAttributes(attribute.Int64("quote.total_cents", q.Total.Amount), attribute.Bool("quote.promo_applied", q.PromoApplied))
	return q, nil
}

func (t *Traced) list(ctx context.Context, name string, actor types.Actor, fn func(context.Context, types.Actor) ([]*order.Order, error)) ([]*order.Order, error) {
	ctx, span := t.start(ctx, name, actor)
	defer span.End()

	out, err := fn(ctx, actor)
	if err != nil {
		return nil, t.handleError(ctx, span, err, "list orders failed", slog.String("op", name))
	}
	span.SetAttributes(attribute.Int("orders.count", len(out)))
	return out, nil
}

func (t *Traced) start(ctx context.Context, name string, actor types.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("actor.id", string(actor.UserID)),
		attribute.String("actor.role", string(actor.Role)))
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// handleError marks the span and logs. Expected outcomes such as a lost
// claim race stay at debug level and leave the span status unset.
func (t *Traced) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	attrs = append(attrs, slog.String("error", err.Error()))
	if errs.Expected(err) {
		span.AddEvent(msg, trace.WithAttributes(attribute.String("error", err.Error())))
		t.log(ctx, slog.LevelDebug, msg, attrs...)
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	t.log(ctx, slog.LevelError, msg, attrs...)
	return err
}

func (t *Traced) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if t.logger == nil {
		return
	}
	t.logger.LogAttrs(ctx, level, msg, attrs...)
}

type orderMetrics struct {
	created     metric.Int64Counter
	claims      metric.Int64Counter
	transitions metric.Int64Counter
}

func newOrderMetrics(m metric.Meter) orderMetrics {
	if m == nil {
		return orderMetrics{}
	}
	created, _ := m.Int64Counter("orders.created", metric.WithDescription("Orders accepted"))
	claims, _ := m.Int64Counter("orders.claims", metric.WithDescription("Claim attempts by outcome"))
	transitions, _ := m.Int64Counter("orders.transitions", metric.WithDescription("Status changes by target status"))
	return orderMetrics{created: created, claims: claims, transitions: transitions}
}

func (m orderMetrics) recordCreated(ctx context.Context, lt order.LocationType) {
	if m.created != nil {
		m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("order.location_type", string(lt))))
	}
}

func (m orderMetrics) recordClaim(ctx context.Context, err error) {
	if m.claims == nil {
		return
	}
	outcome := "won"
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrAlreadyClaimed):
		outcome = "lost"
	case errs.Expected(err):
		outcome = "rejected"
	default:
		outcome = "failed"
	}
	m.claims.Add(ctx, 1, metric.WithAttributes(attribute.String("claim.outcome", outcome)))
}

func (m orderMetrics) recordTransition(ctx context.Context, to order.Status) {
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", string(to))))
	}
}

var (
	_ OrderAPI = (*OrderService)(nil)
	_ OrderAPI = (*Traced)(nil)
)
