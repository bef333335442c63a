// README: Order store backed by PostgreSQL. Every statement runs under the
// configured statement timeout.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

const DefaultStatementTimeout = 3 * time.Second

const promoConstraint = "uq_orders_customer_promo"

const orderColumns = `
	id, external_order_ref, location_type, delivery_building, delivery_room, residence_hall,
	tip_cents, service_fee_cents, currency, payment_reference, promo_applied, promo_code,
	customer_id, customer_phone, customer_email, driver_id, status, status_version,
	created_at, updated_at, claimed_at, picked_up_at, en_route_at, delivered_at, cancelled_at`

type Store struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewStore(db *pgxpool.Pool, statementTimeout time.Duration) *Store {
	if statementTimeout <= 0 {
		statementTimeout = DefaultStatementTimeout
	}
	return &Store{db: db, timeout: statementTimeout}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, external_order_ref, location_type, delivery_building, delivery_room, residence_hall,
			tip_cents, service_fee_cents, currency, payment_reference, promo_applied, promo_code,
			customer_id, customer_phone, customer_email, driver_id, status, status_version,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20
		)`,
		string(o.ID),
		o.ExternalOrderRef,
		string(o.LocationType),
		o.DeliveryBuilding,
		o.DeliveryRoom,
		o.ResidenceHall,
		o.TipAmount.Amount,
		o.ServiceFee.Amount,
		currencyOf(o.TipAmount),
		o.PaymentReference,
		o.PromoApplied,
		o.PromoCode,
		string(o.CustomerID),
		o.CustomerPhone,
		o.CustomerEmail,
		toStringPtr(o.DriverID),
		string(o.Status),
		o.StatusVersion,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == promoConstraint {
			return ErrPromoUsed
		}
		return errs.Unavailable("insert order", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errs.Unavailable("get order", err)
	}
	return o, nil
}

// CompareAndSwap is the single atomic write behind claim, advance and cancel.
// Concurrent callers racing on the same row serialise on the row lock; only
// the first sees the guard hold and gets a row back.
func (s *Store) CompareAndSwap(ctx context.Context, tr Transition) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $1,
			status_version = status_version + 1,
			driver_id = COALESCE($2, driver_id),
			updated_at = NOW(),
			claimed_at = CASE WHEN $1 = 'claimed' THEN NOW() ELSE claimed_at END,
			picked_up_at = CASE WHEN $1 = 'picked_up' THEN NOW() ELSE picked_up_at END,
			en_route_at = CASE WHEN $1 = 'en_route' THEN NOW() ELSE en_route_at END,
			delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
			cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $3
		  AND status = $4
		  AND ($5::text IS NULL OR driver_id = $5)
		RETURNING `+orderColumns,
		string(tr.To),
		toStringPtr(tr.AssignDriver),
		string(tr.OrderID),
		string(tr.From),
		toStringPtr(tr.RequireDriver),
	)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Unavailable("update order status", err)
	}
	return o, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_role, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID),
		string(e.FromStatus),
		string(e.ToStatus),
		string(e.ActorRole),
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	if err != nil {
		return errs.Unavailable("append order event", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id types.ID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, string(id))
	if err != nil {
		return errs.Unavailable("delete order", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) ListAvailable(ctx context.Context) ([]*Order, error) {
	return s.list(ctx, "list available orders",
		`SELECT `+orderColumns+` FROM orders WHERE status = 'pending' ORDER BY created_at ASC`)
}

func (s *Store) ListActiveByDriver(ctx context.Context, driverID types.ID) ([]*Order, error) {
	return s.list(ctx, "list driver orders", `
		SELECT `+orderColumns+` FROM orders
		WHERE driver_id = $1 AND status IN ('claimed', 'picked_up', 'en_route')
		ORDER BY created_at DESC`, string(driverID))
}

func (s *Store) ListByCustomer(ctx context.Context, customerID types.ID) ([]*Order, error) {
	return s.list(ctx, "list customer orders",
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`, string(customerID))
}

func (s *Store) ListAll(ctx context.Context) ([]*Order, error) {
	return s.list(ctx, "list orders",
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Unavailable(op, err)
	}
	defer rows.Close()

	out := make([]*Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errs.Unavailable(op, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Unavailable(op, err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o          Order
		id         string
		locType    string
		customerID string
		driverID   *string
		status     string
		currency   string
	)
	err := row.Scan(
		&id, &o.ExternalOrderRef, &locType, &o.DeliveryBuilding, &o.DeliveryRoom, &o.ResidenceHall,
		&o.TipAmount.Amount, &o.ServiceFee.Amount, &currency, &o.PaymentReference, &o.PromoApplied, &o.PromoCode,
		&customerID, &o.CustomerPhone, &o.CustomerEmail, &driverID, &status, &o.StatusVersion,
		&o.CreatedAt, &o.UpdatedAt, &o.ClaimedAt, &o.PickedUpAt, &o.EnRouteAt, &o.DeliveredAt, &o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	o.ID = types.ID(id)
	o.LocationType = LocationType(locType)
	o.CustomerID = types.ID(customerID)
	o.Status = Status(status)
	if driverID != nil {
		d := types.ID(*driverID)
		o.DriverID = &d
	}
	if currency == "" {
		currency = types.DefaultCurrency
	}
	o.TipAmount.Currency = currency
	o.ServiceFee.Currency = currency
	if !o.Status.Valid() {
		return nil, fmt.Errorf("order %s: unknown status %q", id, status)
	}
	return &o, nil
}

func currencyOf(m types.Money) string {
	if m.Currency == "" {
		return types.DefaultCurrency
	}
	return m.Currency
}

func toStringPtr(id *types.ID) *string {
	if id == nil {
		return nil
	}
	v := string(*id)
	return &v
}
