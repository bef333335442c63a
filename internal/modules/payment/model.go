// README: Checkout quote for a delivery request.
package payment

import "github.com/Lm7452/UniEats/internal/types"

const (
	// ServiceFeeCents is the flat per-order fee.
	ServiceFeeCents int64 = 150
	// WelcomePromoCode waives the service fee on a customer's first order.
	WelcomePromoCode = "WELCOMEBITE"
)

type QuoteRequest struct {
	Tip       types.Money
	PromoCode string
	// FirstOrder is true when the customer has no earlier non-cancelled order.
	FirstOrder bool
}

type Quote struct {
	Tip          types.Money
	ServiceFee   types.Money
	Total        types.Money
	PromoApplied bool
	PromoCode    string
	// ZeroAmount orders skip the payment processor entirely.
	ZeroAmount bool
	Breakdown  map[string]int64
}
