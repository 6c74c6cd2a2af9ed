// Package credit decides whether a customer may take on more debt. The
// decision is pure so the sales engine can re-evaluate it inside its own
// transaction with the customer row locked.
package credit

import "github.com/shopspring/decimal"

// Decision is the outcome of a credit check.
type Decision struct {
	Allowed bool
	// AvailableCredit is limit minus balance, floored at zero. Zero for
	// walk-in customers, who have no account.
	AvailableCredit decimal.Decimal
}

// Admit evaluates whether a customer with the given limit and current
// balance can absorb the prospective unpaid amount. Walk-in customers always
// pass; their sales carry no account to guard. A zero limit means no credit
// at all.
func Admit(limit, balance, prospective decimal.Decimal, walkIn bool) Decision {
	if walkIn {
		return Decision{Allowed: true, AvailableCredit: decimal.Zero}
	}
	if !prospective.IsPositive() {
		// Nothing unpaid; fully-paid sales always pass.
		return Decision{Allowed: true, AvailableCredit: available(limit, balance)}
	}
	avail := available(limit, balance)
	return Decision{
		Allowed:         prospective.LessThanOrEqual(avail),
		AvailableCredit: avail,
	}
}

func available(limit, balance decimal.Decimal) decimal.Decimal {
	avail := limit.Sub(balance)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}
