// README: Order aggregate, location types and the status flow.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

// ErrPromoUsed is returned by Create when the customer already holds a live
// order with the welcome promo applied.
var ErrPromoUsed = fmt.Errorf("%w: welcome promo already used", errs.ErrValidation)

type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusPickedUp  Status = "picked_up"
	StatusEnRoute   Status = "en_route"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusClaimed, StatusPickedUp, StatusEnRoute, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Active reports whether a driver is still working the order.
func (s Status) Active() bool {
	return s == StatusClaimed || s == StatusPickedUp || s == StatusEnRoute
}

type LocationType string

const (
	LocationResidential   LocationType = "residential"
	LocationUpperclassmen LocationType = "upperclassmen"
	LocationCampus        LocationType = "campus"
)

// ParseLocationType accepts both the short codes and the labels shown on the
// order form.
func ParseLocationType(raw string) (LocationType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "residential", "residential college":
		return LocationResidential, true
	case "upperclassmen", "upperclassmen hall":
		return LocationUpperclassmen, true
	case "campus", "campus building":
		return LocationCampus, true
	}
	return "", false
}

type Order struct {
	ID               types.ID
	ExternalOrderRef string
	LocationType     LocationType
	DeliveryBuilding string
	DeliveryRoom     string
	ResidenceHall    *string
	TipAmount        types.Money
	ServiceFee       types.Money
	PaymentReference *string
	PromoApplied     bool
	PromoCode        *string
	CustomerID       types.ID
	CustomerPhone    *string
	CustomerEmail    *string
	DriverID         *types.ID
	Status           Status
	StatusVersion    int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ClaimedAt        *time.Time
	PickedUpAt       *time.Time
	EnRouteAt        *time.Time
	DeliveredAt      *time.Time
	CancelledAt      *time.Time
}

// AssignedTo reports whether driverID holds the order.
func (o *Order) AssignedTo(driverID types.ID) bool {
	return o.DriverID != nil && *o.DriverID == driverID
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorRole  types.Role
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the order state flow as code.
// picked_up may skip en_route for deliveries inside the pickup building.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusClaimed, StatusCancelled},
	StatusClaimed:  {StatusPickedUp, StatusCancelled},
	StatusPickedUp: {StatusEnRoute, StatusDelivered},
	StatusEnRoute:  {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// DriverCanSet reports whether a driver may request this target status.
// Claiming has its own path and cancellation is admin only.
func DriverCanSet(to Status) bool {
	return to == StatusPickedUp || to == StatusEnRoute || to == StatusDelivered
}
