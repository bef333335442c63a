// README: Quote computes the amount charged for an order and checks the
// payment reference against it.
package payment

import (
	"strings"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

func NormalizePromo(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PriceQuote applies the fee and promo rules. Unknown or ineligible codes
// are ignored; the code is echoed back only when it was applied.
func PriceQuote(req QuoteRequest) (Quote, error) {
	if req.Tip.Amount < 0 {
		return Quote{}, errs.Validation("tip must not be negative")
	}
	tip := types.USD(req.Tip.Amount)
	fee := types.USD(ServiceFeeCents)

	q := Quote{Tip: tip}
	if code := NormalizePromo(req.PromoCode); code == WelcomePromoCode && req.FirstOrder {
		fee = types.USD(0)
		q.PromoApplied = true
		q.PromoCode = code
	}

	q.ServiceFee = fee
	q.Total = tip.Add(fee)
	q.ZeroAmount = q.Total.IsZero()
	q.Breakdown = map[string]int64{
		"tip":         tip.Amount,
		"service_fee": fee.Amount,
	}
	return q, nil
}

// CheckReference enforces that a charged order carries the processor's
// reference and a free one does not.
func CheckReference(q Quote, reference string) error {
	reference = strings.TrimSpace(reference)
	switch {
	case q.ZeroAmount && reference != "":
		return errs.Validation("payment reference given for a zero-amount order")
	case !q.ZeroAmount && reference == "":
		return errs.Validation("payment reference is required for a %s charge", q.Total)
	}
	return nil
}
