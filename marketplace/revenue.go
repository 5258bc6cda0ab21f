/*
revenue.go - Recurring revenue projection (MRR / ARR)

PURPOSE:
  Projects the net recurring revenue of a date range from the subscriptions
  active in it. Each active subscription contributes its list price,
  normalized to the tracker's unit, reduced by its itemized discounts, by
  the continuity discount of its next renewal, and by the marketplace fee.

VARIANTS:
  Monthly (MRR):  monthly license → monthly price
                  annual license  → annual price / 12
                  next renewal    → validity end + 1 month
  Annual (ARR):   annual license  → annual price
                  monthly license → monthly price × 12
                  next renewal    → validity end + 1 year

  Without an explicit annual price, the annual price is 10 monthly prices,
  so an annual subscription is worth 10/12 of a monthly price per month.

SELECTION:
  Every paid license feeds the continuity tracker so tenure covers the whole
  lineage. Only the latest license per ID whose validity contains the start
  or the end of the range is projected.

MISSING PRICES:
  A license without a list price is skipped and counted in Skipped. It does
  not fail the projection. A list price that is not in USD does.

ROUNDING:
  Gross and fee are rounded to cents; net is gross minus fee.
*/
package marketplace

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/marketplace-stats/generic"
)

// RevenueKind selects the unit of a recurring revenue projection.
type RevenueKind string

const (
	RevenueMonthly RevenueKind = "monthly"
	RevenueAnnual  RevenueKind = "annual"
)

// RecurringRevenue is the projected revenue of a date range, in USD.
type RecurringRevenue struct {
	Kind         RevenueKind       `json:"kind"`
	DateRange    generic.DateRange `json:"dateRange"`
	GrossAmount  generic.Money     `json:"grossAmount"`
	FeeAmount    generic.Money     `json:"feeAmount"`
	NetAmount    generic.Money     `json:"netAmount"`
	LicenseCount int               `json:"licenseCount"`
	Skipped      int               `json:"skipped"`
}

// RecurringRevenueTracker accumulates licenses for one date range.
// It is not safe for concurrent use.
type RecurringRevenueTracker struct {
	kind       RevenueKind
	dateRange  generic.DateRange
	pricing    *Pricing
	continuity *ContinuityTracker
	latest     map[string]License
}

func NewMonthlyRevenueTracker(dateRange generic.DateRange, pricing *Pricing) *RecurringRevenueTracker {
	return newRevenueTracker(RevenueMonthly, dateRange, pricing)
}

func NewAnnualRevenueTracker(dateRange generic.DateRange, pricing *Pricing) *RecurringRevenueTracker {
	return newRevenueTracker(RevenueAnnual, dateRange, pricing)
}

func newRevenueTracker(kind RevenueKind, dateRange generic.DateRange, pricing *Pricing) *RecurringRevenueTracker {
	return &RecurringRevenueTracker{
		kind:       kind,
		dateRange:  dateRange,
		pricing:    pricing,
		continuity: NewContinuityTracker(),
		latest:     make(map[string]License),
	}
}

func (t *RecurringRevenueTracker) Kind() RevenueKind            { return t.kind }
func (t *RecurringRevenueTracker) DateRange() generic.DateRange { return t.dateRange }

// ProcessLicenseSale feeds one license. Unpaid and perpetual licenses are
// ignored.
func (t *RecurringRevenueTracker) ProcessLicenseSale(l License) {
	if !l.IsPaidLicense() || !l.IsSubscriptionLicense() {
		return
	}
	t.continuity.Process(l)

	if !l.Validity.Contains(t.dateRange.Start) && !l.Validity.Contains(t.dateRange.End) {
		return
	}
	if existing, ok := t.latest[l.ID]; ok && existing.Validity.Compare(*l.Validity) > 0 {
		return
	}
	t.latest[l.ID] = l
}

// Result projects the revenue of all retained licenses. Licenses without a
// known price are skipped and counted. A list price in another currency
// than USD fails the projection.
func (t *RecurringRevenueTracker) Result() (RecurringRevenue, error) {
	gross := decimal.Zero
	count, skipped := 0, 0

	for _, id := range t.licenseIDs() {
		amount, err := t.projectedAmount(t.latest[id])
		switch {
		case errors.Is(err, generic.ErrPriceUnknown), errors.Is(err, errUnsupportedPeriod):
			skipped++
			continue
		case err != nil:
			return RecurringRevenue{}, fmt.Errorf("license %s: %w", id, err)
		}
		gross = gross.Add(amount)
		count++
	}

	// Net is derived from the rounded amounts so that fee + net == gross.
	grossMoney := generic.Money{Amount: gross, Currency: generic.USD}.Round(2)
	fee := FeeAmount(t.dateRange.End, grossMoney).Round(2)
	net := generic.Money{Amount: grossMoney.Amount.Sub(fee.Amount), Currency: generic.USD}

	return RecurringRevenue{
		Kind:         t.kind,
		DateRange:    t.dateRange,
		GrossAmount:  grossMoney,
		FeeAmount:    fee,
		NetAmount:    net,
		LicenseCount: count,
		Skipped:      skipped,
	}, nil
}

func (t *RecurringRevenueTracker) licenseIDs() []string {
	ids := make([]string, 0, len(t.latest))
	for id := range t.latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var errUnsupportedPeriod = errors.New("license period has no recurring price")

// projectedAmount returns the discounted list price of l in the tracker's
// unit, before the marketplace fee.
func (t *RecurringRevenueTracker) projectedAmount(l License) (decimal.Decimal, error) {
	period := l.Period()
	if period != PeriodMonthly && period != PeriodAnnual {
		return decimal.Zero, errUnsupportedPeriod
	}

	price, err := t.pricing.Price(period, l.Customer().Type)
	if err != nil {
		return decimal.Zero, err
	}
	if price.Currency != generic.USD {
		return decimal.Zero, &generic.CurrencyMismatchError{Op: "project", Left: generic.USD, Right: price.Currency}
	}

	next := t.continuity.NextContinuity(l.ID, t.nextRenewal(l.Validity.End))

	return t.normalize(price.Amount, period).
		Mul(OtherDiscountsFactor(l.LineItem.Discounts)).
		Mul(next.Factor()), nil
}

func (t *RecurringRevenueTracker) normalize(price decimal.Decimal, period SubscriptionPeriod) decimal.Decimal {
	twelve := decimal.NewFromInt(12)
	switch {
	case t.kind == RevenueMonthly && period == PeriodAnnual:
		return price.Div(twelve)
	case t.kind == RevenueAnnual && period == PeriodMonthly:
		return price.Mul(twelve)
	default:
		return price
	}
}

func (t *RecurringRevenueTracker) nextRenewal(end generic.Date) generic.Date {
	if t.kind == RevenueAnnual {
		return end.AddYears(1)
	}
	return end.AddMonths(1)
}
