package promotions

import "github.com/shopspring/decimal"

const currencyPlaces = 2

// roundCurrency rounds half away from zero, which is half-up for the
// non-negative amounts the engine works with.
func roundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(currencyPlaces)
}

// allocateProportionally splits amount across weights in proportion to each
// weight. Every positive weight but the last receives its share rounded to
// currency precision; the last positive weight takes the remainder so the
// allocations always add up to amount. No allocation exceeds its weight or
// goes negative: rounding overflow spills onto earlier rows with headroom and
// rounding deficits are taken back from earlier rows in reverse order.
// amount is capped at the weight total.
func allocateProportionally(weights []decimal.Decimal, amount decimal.Decimal) []decimal.Decimal {
	allocations := make([]decimal.Decimal, len(weights))
	for i := range allocations {
		allocations[i] = decimal.Zero
	}

	total := decimal.Zero
	last := -1
	for i, w := range weights {
		if w.IsPositive() {
			total = total.Add(w)
			last = i
		}
	}
	if last < 0 || !amount.IsPositive() {
		return allocations
	}
	if amount.GreaterThan(total) {
		amount = total
	}

	allocated := decimal.Zero
	for i, w := range weights {
		if i == last || !w.IsPositive() {
			continue
		}
		share := roundCurrency(amount.Mul(w).Div(total))
		if share.GreaterThan(w) {
			share = w
		}
		allocations[i] = share
		allocated = allocated.Add(share)
	}

	remainder := amount.Sub(allocated)
	switch {
	case remainder.IsNegative():
		deficit := remainder.Neg()
		for i := last - 1; i >= 0 && deficit.IsPositive(); i-- {
			take := decimal.Min(allocations[i], deficit)
			allocations[i] = allocations[i].Sub(take)
			deficit = deficit.Sub(take)
		}
	case remainder.GreaterThan(weights[last]):
		allocations[last] = weights[last]
		overflow := remainder.Sub(weights[last])
		for i := 0; i < last && overflow.IsPositive(); i++ {
			headroom := weights[i].Sub(allocations[i])
			if !headroom.IsPositive() {
				continue
			}
			take := decimal.Min(headroom, overflow)
			allocations[i] = allocations[i].Add(take)
			overflow = overflow.Sub(take)
		}
	default:
		allocations[last] = remainder
	}
	return allocations
}
