// README: Order state machine and coordinator tests (flow + invalid requests).
package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

// TestCanTransition verifies the state machine transition table without a database.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// forward transitions
		{StatusPending, StatusClaimed, true},
		{StatusClaimed, StatusPickedUp, true},
		{StatusPickedUp, StatusEnRoute, true},
		{StatusPickedUp, StatusDelivered, true}, // same-building delivery
		{StatusEnRoute, StatusDelivered, true},
		// admin exits
		{StatusPending, StatusCancelled, true},
		{StatusClaimed, StatusCancelled, true},
		{StatusPickedUp, StatusCancelled, false},
		{StatusEnRoute, StatusCancelled, false},
		// terminal states have no outgoing transitions
		{StatusDelivered, StatusPending, false},
		{StatusDelivered, StatusEnRoute, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusClaimed, false},
		// skipping or reverting
		{StatusClaimed, StatusDelivered, false},
		{StatusClaimed, StatusEnRoute, false},
		{StatusPending, StatusPickedUp, false},
		{StatusEnRoute, StatusPickedUp, false},
		{StatusClaimed, StatusPending, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseLocationType(t *testing.T) {
	cases := map[string]LocationType{
		"residential":         LocationResidential,
		"Residential College": LocationResidential,
		" upperclassmen ":     LocationUpperclassmen,
		"Upperclassmen Hall":  LocationUpperclassmen,
		"Campus Building":     LocationCampus,
		"campus":              LocationCampus,
	}
	for raw, want := range cases {
		got, ok := ParseLocationType(raw)
		if !ok || got != want {
			t.Errorf("ParseLocationType(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	if _, ok := ParseLocationType("off campus"); ok {
		t.Errorf("expected unknown location type to be rejected")
	}
}

func TestOrderFlowHappyPath(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator(store, nil)
	ctx := context.Background()

	orderID := mustCreateOrder(t, store, "s_happy")

	o, err := c.Claim(ctx, orderID, "d1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if o.Status != StatusClaimed || !o.AssignedTo("d1") || o.ClaimedAt == nil {
		t.Fatalf("unexpected claimed order: %+v", o)
	}

	for _, next := range []Status{StatusPickedUp, StatusEnRoute} {
		if _, err := c.Advance(ctx, orderID, "d1", next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		assertStatus(t, store, orderID, next)
	}

	o, err = c.Complete(ctx, orderID, "d1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if o.Status != StatusDelivered || o.DeliveredAt == nil {
		t.Fatalf("unexpected delivered order: %+v", o)
	}
	if o.StatusVersion != 4 {
		t.Fatalf("expected status_version 4, got %d", o.StatusVersion)
	}

	events := store.Events(orderID)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].FromStatus != StatusPending || events[3].ToStatus != StatusDelivered {
		t.Fatalf("unexpected event trail: %+v", events)
	}
}

func TestOrderFlowSkipEnRoute(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator(store, nil)
	ctx := context.Background()

	orderID := mustCreateOrder(t, store, "s_skip")
	mustClaim(t, c, orderID, "d1")
	if _, err := c.Advance(ctx, orderID, "d1", StatusPickedUp); err != nil {
		t.Fatalf("pick up: %v", err)
	}
	if _, err := c.Advance(ctx, orderID, "d1", StatusDelivered); err != nil {
		t.Fatalf("deliver from picked_up: %v", err)
	}
	assertStatus(t, store, orderID, StatusDelivered)
}

func TestOrderInvalidTransitions(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator(store, nil)
	ctx := context.Background()

	orderID := mustCreateOrder(t, store, "s_invalid")

	if _, err := c.Advance(ctx, orderID, "d1", StatusPickedUp); !errors.Is(err, errs.ErrNotAssigned) {
		t.Fatalf("advance before claim: expected ErrNotAssigned, got %v", err)
	}

	mustClaim(t, c, orderID, "d1")

	if _, err := c.Complete(ctx, orderID, "d1"); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("claimed -> delivered: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := c.Advance(ctx, orderID, "d1", StatusEnRoute); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("claimed -> en_route: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := c.Advance(ctx, orderID, "d1", StatusCancelled); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("driver cancel: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := c.Advance(ctx, orderID, "d1", StatusClaimed); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("claimed -> claimed: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := c.Advance(ctx, orderID, "d1", Status("teleported")); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("unknown status: expected ErrValidation, got %v", err)
	}
	assertStatus(t, store, orderID, StatusClaimed)
}

func TestAdvanceByOtherDriver(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator(store, nil)
	ctx := context.Background()

	orderID := mustCreateOrder(t, store, "s_other")
	mustClaim(t, c, orderID, "d1")

	if _, err := c.Advance(ctx, orderID, "d2", StatusPickedUp); !errors.Is(err, errs.ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned, got %v", err)
	}
	if _, err := c.Complete(ctx, orderID, "d2"); !errors.Is(err, errs.ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned, got %v", err)
	}
	assertStatus(t, store, orderID, StatusClaimed)
}

func TestClaimOutcomes(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator(store, nil)
	ctx := context.Background()

	if _, err := c.Claim(ctx, "missing", "d1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("claim missing: expected ErrNotFound, got %v", err)
	}

	orderID := mustCreateOrder(t, store, "s_claim")
	mustClaim(t, c, orderID, "d1")

	// Not idempotent: the holder re-claiming is refused like anyone else.
	if _, err := c.Claim(ctx, orderID, "d1"); !errors.Is(err, errs.ErrAlreadyClaimed) {
		t.Fatalf("reclaim by holder: expected ErrAlreadyClaimed, got %v", err)
	}
	if _, err := c.Claim(ctx, orderID, "d2"); !errors.Is(err, errs.ErrAlreadyClaimed) {
		t.Fatalf("claim by other: expected ErrAlreadyClaimed, got %v", err)
	}

	o, err := store.Get(ctx, orderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !o.AssignedTo("d1") {
		t.Fatalf("driver changed after refused claims: %v", *o.DriverID)
	}
}

func TestCancel(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator(store, nil)
	ctx := context.Background()
	admin := types.Actor{UserID: "a1", Role: types.RoleAdmin}

	pending := mustCreateOrder(t, store, "s_cancel_pending")
	if _, err := c.Cancel(ctx, pending, types.Actor{UserID: "d1", Role: types.RoleDriver}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("driver cancel: expected ErrForbidden, got %v", err)
	}
	o, err := c.Cancel(ctx, pending, admin)
	if err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if o.Status != StatusCancelled || o.DriverID != nil || o.CancelledAt == nil {
		t.Fatalf("unexpected cancelled order: %+v", o)
	}
	if _, err := c.Claim(ctx, pending, "d1"); !errors.Is(err, errs.ErrAlreadyClaimed) {
		t.Fatalf("claim cancelled: expected ErrAlreadyClaimed, got %v", err)
	}

	claimed := mustCreateOrder(t, store, "s_cancel_claimed")
	mustClaim(t, c, claimed, "d1")
	o, err = c.Cancel(ctx, claimed, admin)
	if err != nil {
		t.Fatalf("cancel claimed: %v", err)
	}
	if !o.AssignedTo("d1") {
		t.Fatalf("driver must be kept after cancel")
	}
	if _, err := c.Advance(ctx, claimed, "d1", StatusPickedUp); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("advance cancelled: expected ErrInvalidTransition, got %v", err)
	}

	picked := mustCreateOrder(t, store, "s_cancel_picked")
	mustClaim(t, c, picked, "d1")
	if _, err := c.Advance(ctx, picked, "d1", StatusPickedUp); err != nil {
		t.Fatalf("pick up: %v", err)
	}
	if _, err := c.Cancel(ctx, picked, admin); !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("cancel picked_up: expected ErrInvalidTransition, got %v", err)
	}
}

func TestStoreTimeoutIsFailure(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator(store, nil)
	orderID := mustCreateOrder(t, store, "s_timeout")

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	if _, err := c.Claim(ctx, orderID, "d1"); !errors.Is(err, errs.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	assertStatus(t, store, orderID, StatusPending)
}

func TestListings(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator(store, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := createAt(t, store, "s1", base)
	second := createAt(t, store, "s1", base.Add(time.Minute))
	third := createAt(t, store, "s2", base.Add(2*time.Minute))

	mustClaim(t, c, second, "d1")

	available, _ := store.ListAvailable(ctx)
	if len(available) != 2 || available[0].ID != first || available[1].ID != third {
		t.Fatalf("available orders must be pending oldest first: %+v", available)
	}

	mine, _ := store.ListActiveByDriver(ctx, "d1")
	if len(mine) != 1 || mine[0].ID != second {
		t.Fatalf("unexpected driver orders: %+v", mine)
	}

	history, _ := store.ListByCustomer(ctx, "s1")
	if len(history) != 2 || history[0].ID != second || history[1].ID != first {
		t.Fatalf("history must be newest first: %+v", history)
	}

	if err := store.Delete(ctx, third); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, third); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	all, _ := store.ListAll(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 orders after delete, got %d", len(all))
	}
}

func TestCreateRejectsSecondLivePromo(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := NewCoordinator(store, nil)

	first := promoOrder("o_promo_1", "s1")
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("first promo order: %v", err)
	}
	if err := store.Create(ctx, promoOrder("o_promo_2", "s1")); !errors.Is(err, ErrPromoUsed) {
		t.Fatalf("expected ErrPromoUsed, got %v", err)
	}
	if !errors.Is(ErrPromoUsed, errs.ErrValidation) {
		t.Fatal("ErrPromoUsed should be a validation error")
	}
	// Another customer is unaffected.
	if err := store.Create(ctx, promoOrder("o_promo_3", "s2")); err != nil {
		t.Fatalf("other customer: %v", err)
	}

	// Once the promo order is cancelled the code is free again.
	if _, err := c.Cancel(ctx, first.ID, types.Actor{UserID: "a1", Role: types.RoleAdmin}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := store.Create(ctx, promoOrder("o_promo_4", "s1")); err != nil {
		t.Fatalf("promo after cancel: %v", err)
	}
}

func promoOrder(id types.ID, customerID types.ID) *Order {
	code := "WELCOMEBITE"
	now := time.Now().UTC()
	return &Order{
		ID:               id,
		ExternalOrderRef: "TB-2001",
		LocationType:     LocationCampus,
		DeliveryBuilding: "Frist Campus Center",
		DeliveryRoom:     "100",
		TipAmount:        types.USD(0),
		ServiceFee:       types.USD(0),
		PromoApplied:     true,
		PromoCode:        &code,
		CustomerID:       customerID,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func mustCreateOrder(t *testing.T, repo Repository, customerID types.ID) types.ID {
	t.Helper()
	return createAt(t, repo, customerID, time.Now().UTC())
}

func createAt(t *testing.T, repo Repository, customerID types.ID, at time.Time) types.ID {
	t.Helper()
	hall := "Blair"
	o := &Order{
		ID:               types.ID("o_" + string(customerID) + "_" + at.Format("150405.000000000")),
		ExternalOrderRef: "TB-1042",
		LocationType:     LocationResidential,
		DeliveryBuilding: "Mathey College",
		DeliveryRoom:     "301",
		ResidenceHall:    &hall,
		TipAmount:        types.USD(200),
		ServiceFee:       types.USD(150),
		CustomerID:       customerID,
		Status:           StatusPending,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
	if err := repo.Create(context.Background(), o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o.ID
}

func mustClaim(t *testing.T, c *Coordinator, orderID, driverID types.ID) {
	t.Helper()
	if _, err := c.Claim(context.Background(), orderID, driverID); err != nil {
		t.Fatalf("claim: %v", err)
	}
}

func assertStatus(t *testing.T, repo Repository, orderID types.ID, want Status) {
	t.Helper()
	o, err := repo.Get(context.Background(), orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != want {
		t.Fatalf("expected status %s, got %s", want, o.Status)
	}
}
