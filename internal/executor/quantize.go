package executor

import "github.com/shopspring/decimal"

// FloorToStep floors value to an exact multiple of step. Flooring (never
// rounding) guarantees the venue accepts the result and that it stays within
// the balance the raw value was sized from. A zero step passes the value
// through; malformed rule data must not zero out an order.
func FloorToStep(value float64, step decimal.Decimal) float64 {
	if step.IsZero() {
		return value
	}
	quantized, _ := decimal.NewFromFloat(value).Div(step).Floor().Mul(step).Float64()
	return quantized
}

// meetsNotional reports whether quantity*price clears the rule's minimum
// notional. A zero minimum disables the check.
func meetsNotional(quantity, price float64, min decimal.Decimal) bool {
	if min.IsZero() {
		return true
	}
	notional := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price))
	return notional.GreaterThan(min)
}
