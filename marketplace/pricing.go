package marketplace

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/marketplace-stats/generic"
)

// =============================================================================
// PRICING - List prices per subscription period and customer type
// =============================================================================

// AnnualPriceMonths is how many monthly prices an annual subscription costs.
// The marketplace prices annual plans at 10x the monthly price.
const AnnualPriceMonths = 10

// Pricing holds the list prices of a plugin.
type Pricing struct {
	Prices map[SubscriptionPeriod]map[CustomerType]generic.Money
}

func NewPricing() *Pricing {
	return &Pricing{Prices: make(map[SubscriptionPeriod]map[CustomerType]generic.Money)}
}

// Set records the list price for period and customer type.
func (p *Pricing) Set(period SubscriptionPeriod, customer CustomerType, price generic.Money) {
	if p.Prices[period] == nil {
		p.Prices[period] = make(map[CustomerType]generic.Money)
	}
	p.Prices[period][customer] = price
}

// Price returns the list price for period and customer type. A missing
// annual price is derived from the monthly price.
func (p *Pricing) Price(period SubscriptionPeriod, customer CustomerType) (generic.Money, error) {
	if p != nil {
		if price, ok := p.Prices[period][customer]; ok {
			return price, nil
		}
		if period == PeriodAnnual {
			if monthly, ok := p.Prices[PeriodMonthly][customer]; ok {
				return monthly.Mul(decimal.NewFromInt(AnnualPriceMonths)), nil
			}
		}
	}
	return generic.Money{}, fmt.Errorf("%w: %s %s", generic.ErrPriceUnknown, period, customer)
}
