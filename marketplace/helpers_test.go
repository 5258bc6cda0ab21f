package marketplace_test

import (
	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func validity(start, end string) *generic.DateRange {
	r := generic.MustDateRange(start, end)
	return &r
}

func usd(v string) generic.Money { return generic.NewMoney(v, generic.USD) }
func eur(v string) generic.Money { return generic.NewMoney(v, generic.EUR) }

func percent(v float64) *float64 { return &v }

func customer(code marketplace.CustomerID, t marketplace.CustomerType) marketplace.Customer {
	return marketplace.Customer{Code: code, Country: "DE", Type: t}
}

// item builds a line item priced in USD with the EUR amount equal to it.
func item(t marketplace.LineItemType, v *generic.DateRange, amountUSD string, ids ...string) marketplace.LineItem {
	return marketplace.LineItem{
		Type:       t,
		LicenseIDs: ids,
		Validity:   v,
		Amount:     eur(amountUSD),
		AmountUSD:  usd(amountUSD),
	}
}

func withDiscounts(li marketplace.LineItem, discounts ...marketplace.Discount) marketplace.LineItem {
	li.Discounts = discounts
	return li
}

// sale builds a sale whose totals are the sum of its line items.
func sale(ref, date string, period marketplace.SubscriptionPeriod, c marketplace.Customer, items ...marketplace.LineItem) marketplace.Sale {
	total, totalUSD := eur("0"), usd("0")
	for _, li := range items {
		total, _ = total.Add(li.Amount)
		totalUSD, _ = totalUSD.Add(li.AmountUSD)
	}
	return marketplace.Sale{
		Ref:       ref,
		Date:      generic.MustParseDate(date),
		Amount:    total,
		AmountUSD: totalUSD,
		Period:    period,
		Customer:  c,
		LineItems: items,
	}
}

func mustDerive(sales ...marketplace.Sale) []marketplace.License {
	licenses, err := marketplace.DeriveLicenses(sales)
	if err != nil {
		panic(err)
	}
	return licenses
}

// monthlyRenewals builds a new monthly sale followed by n-1 renewals, one
// per month starting at first.
func monthlyRenewals(refPrefix, licenseID, first string, n int, c marketplace.Customer, amountUSD string) []marketplace.Sale {
	start := generic.MustParseDate(first)
	sales := make([]marketplace.Sale, 0, n)
	for m := 0; m < n; m++ {
		s := start.AddMonths(m)
		v := &generic.DateRange{Start: s, End: s.AddMonths(1).AddDays(-1)}
		t := marketplace.LineItemRenew
		if m == 0 {
			t = marketplace.LineItemNew
		}
		sales = append(sales, sale(refPrefix+s.String(), s.String(), marketplace.PeriodMonthly, c, item(t, v, amountUSD, licenseID)))
	}
	return sales
}
