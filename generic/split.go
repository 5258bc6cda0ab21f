package generic

import "github.com/shopspring/decimal"

// =============================================================================
// AMOUNT SPLITTING - Distributes a total across items without losing cents
// =============================================================================

const (
	splitIntermediatePrecision = 10
	splitResultPlaces          = 2
)

// SplitAmounts calls fn once per item, in order, with the item's share of
// total and of totalUSD. Every item but the last receives the truncated
// quotient total/N; the last receives the remainder, so the shares always
// add up to the totals exactly. USD shares are tagged USD.
func SplitAmounts[T any](total, totalUSD Money, items []T, fn func(item T, amount, amountUSD Money)) {
	n := len(items)
	switch n {
	case 0:
		return
	case 1:
		fn(items[0], total, Money{Amount: totalUSD.Amount, Currency: USD})
		return
	}

	amount, lastAmount := splitShares(total.Amount, n)
	usd, lastUSD := splitShares(totalUSD.Amount, n)

	for i, item := range items {
		if i == n-1 {
			fn(item, total.WithAmount(lastAmount), Money{Amount: lastUSD, Currency: USD})
			break
		}
		fn(item, total.WithAmount(amount), Money{Amount: usd, Currency: USD})
	}
}

// splitShares returns the per-item share and the last item's share of total
// split n ways. Rounding is always toward zero.
func splitShares(total decimal.Decimal, n int) (each, last decimal.Decimal) {
	count := decimal.NewFromInt(int64(n))
	quotient, _ := total.QuoRem(count, splitIntermediatePrecision)
	each = quotient.Truncate(splitResultPlaces)
	last = total.Sub(each.Mul(decimal.NewFromInt(int64(n - 1)))).Truncate(splitResultPlaces)
	return each, last
}
