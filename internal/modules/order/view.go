package order

import "time"

// View is the wire shape of an order, shared by the HTTP API and realtime
// events. Amounts are decimal dollars.
type View struct {
	ID               string     `json:"id"`
	ExternalOrderRef string     `json:"external_order_ref"`
	LocationType     string     `json:"location_type"`
	DeliveryBuilding string     `json:"delivery_building"`
	DeliveryRoom     string     `json:"delivery_room"`
	ResidenceHall    *string    `json:"residence_hall,omitempty"`
	TipAmount        float64    `json:"tip_amount"`
	ServiceFee       float64    `json:"service_fee"`
	Currency         string     `json:"currency"`
	PaymentReference *string    `json:"payment_reference,omitempty"`
	PromoApplied     bool       `json:"promo_applied"`
	PromoCode        *string    `json:"promo_code,omitempty"`
	Status           string     `json:"status"`
	CustomerID       string     `json:"customer_id"`
	CustomerPhone    *string    `json:"customer_phone,omitempty"`
	CustomerEmail    *string    `json:"customer_email,omitempty"`
	DriverID         *string    `json:"driver_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

func ToView(o *Order) View {
	return View{
		ID:               string(o.ID),
		ExternalOrderRef: o.ExternalOrderRef,
		LocationType:     string(o.LocationType),
		DeliveryBuilding: o.DeliveryBuilding,
		DeliveryRoom:     o.DeliveryRoom,
		ResidenceHall:    o.ResidenceHall,
		TipAmount:        o.TipAmount.Decimal(),
		ServiceFee:       o.ServiceFee.Decimal(),
		Currency:         currencyOf(o.TipAmount),
		PaymentReference: o.PaymentReference,
		PromoApplied:     o.PromoApplied,
		PromoCode:        o.PromoCode,
		Status:           string(o.Status),
		CustomerID:       string(o.CustomerID),
		CustomerPhone:    o.CustomerPhone,
		CustomerEmail:    o.CustomerEmail,
		DriverID:         toStringPtr(o.DriverID),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		ClaimedAt:        o.ClaimedAt,
		DeliveredAt:      o.DeliveredAt,
		CancelledAt:      o.CancelledAt,
	}
}

func ToViews(list []*Order) []View {
	out := make([]View, 0, len(list))
	for _, o := range list {
		out = append(out, ToView(o))
	}
	return out
}
