package marketplace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
)

func TestDeriveLicenses_SplitsLineItems(t *testing.T) {
	// GIVEN: One sale with three licenses on one line, 1.10 EUR / 1.00 USD
	s := sale("s1", "2021-06-10", marketplace.PeriodAnnual, customer(1, marketplace.CustomerOrganization),
		marketplace.LineItem{
			Type:       marketplace.LineItemNew,
			LicenseIDs: []string{"A", "B", "C"},
			Validity:   validity("2021-06-10", "2022-06-09"),
			Amount:     eur("1.10"),
			AmountUSD:  usd("1.00"),
		})

	// WHEN: Deriving licenses
	licenses, err := marketplace.DeriveLicenses([]marketplace.Sale{s})
	require.NoError(t, err)

	// THEN: One license per ID, the last absorbs the remainder
	require.Len(t, licenses, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{licenses[0].ID, licenses[1].ID, licenses[2].ID})
	assert.Equal(t, "0.36", licenses[0].Amount.Amount.String())
	assert.Equal(t, "0.33", licenses[1].AmountUSD.Amount.String())
	assert.Equal(t, "0.38", licenses[2].Amount.Amount.String())
	assert.Equal(t, "0.34", licenses[2].AmountUSD.Amount.String())

	for _, l := range licenses {
		assert.Equal(t, "s1", l.Sale.Ref)
		assert.True(t, l.IsNewLicense())
		assert.True(t, l.IsSubscriptionLicense())
		assert.True(t, l.IsPaidLicense())
		assert.Equal(t, marketplace.PeriodAnnual, l.Period())
		assert.Equal(t, marketplace.CustomerID(1), l.Customer().Code)
	}
}

func TestDeriveLicenses_ZeroSaleForcesZeroAmounts(t *testing.T) {
	// GIVEN: A sale with zero totals but a line item reporting 5 USD
	s := sale("free", "2021-01-01", marketplace.PeriodAnnual, customer(1, marketplace.CustomerIndividual),
		item(marketplace.LineItemNew, validity("2021-01-01", "2021-12-31"), "5.00", "L1"))
	s.Amount = eur("0")
	s.AmountUSD = usd("0")

	licenses := mustDerive(s)

	require.Len(t, licenses, 1)
	assert.True(t, licenses[0].Amount.IsZero())
	assert.True(t, licenses[0].AmountUSD.IsZero())
	assert.Equal(t, generic.EUR, licenses[0].Amount.Currency)
	assert.False(t, licenses[0].IsPaidLicense())
}

func TestDeriveLicenses_SortsByValidityPerpetualLast(t *testing.T) {
	sales := []marketplace.Sale{
		sale("perpetual", "2020-01-01", marketplace.PeriodPerpetual, customer(1, marketplace.CustomerIndividual),
			item(marketplace.LineItemNew, nil, "100", "P1")),
		sale("late", "2021-05-01", marketplace.PeriodMonthly, customer(2, marketplace.CustomerIndividual),
			item(marketplace.LineItemNew, validity("2021-05-01", "2021-05-31"), "10", "M2")),
		sale("early", "2021-01-01", marketplace.PeriodMonthly, customer(3, marketplace.CustomerIndividual),
			item(marketplace.LineItemNew, validity("2021-01-01", "2021-01-31"), "10", "M1")),
	}

	licenses := mustDerive(sales...)

	require.Len(t, licenses, 3)
	assert.Equal(t, []string{"M1", "M2", "P1"}, []string{licenses[0].ID, licenses[1].ID, licenses[2].ID})
	assert.False(t, licenses[2].IsSubscriptionLicense())
}

func TestDeriveLicenses_EmptyLicenseIDsFails(t *testing.T) {
	s := sale("broken", "2021-01-01", marketplace.PeriodAnnual, customer(1, marketplace.CustomerIndividual),
		item(marketplace.LineItemNew, validity("2021-01-01", "2021-12-31"), "5.00"))

	_, err := marketplace.DeriveLicenses([]marketplace.Sale{s})

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrNoLicenseIDs)
	var pre *generic.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Contains(t, pre.Ref, "broken")
	assert.True(t, generic.IsClientError(err))
}

func TestLicense_FreeDiscountIsNotPaid(t *testing.T) {
	li := withDiscounts(item(marketplace.LineItemNew, validity("2021-01-01", "2021-12-31"), "5.00", "L1"),
		marketplace.Discount{Description: "Open source", Percent: percent(100)})

	licenses := mustDerive(sale("oss", "2021-01-01", marketplace.PeriodAnnual, customer(1, marketplace.CustomerIndividual), li))

	require.Len(t, licenses, 1)
	assert.False(t, licenses[0].IsPaidLicense())
}

func TestLicensesByID(t *testing.T) {
	sales := monthlyRenewals("m-", "L1", "2021-01-01", 3, customer(1, marketplace.CustomerIndividual), "10")
	sales = append(sales, monthlyRenewals("o-", "L2", "2021-01-01", 2, customer(2, marketplace.CustomerIndividual), "10")...)

	licenses := mustDerive(sales...)

	assert.Len(t, marketplace.LicensesByID(licenses, "L1"), 3)
	assert.Len(t, marketplace.LicensesByID(licenses, "L2"), 2)
	assert.Empty(t, marketplace.LicensesByID(licenses, "missing"))
}
