package reports_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/marketplace-stats/currency"
	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
	"github.com/warp/marketplace-stats/reports"
)

func testPricing() *marketplace.Pricing {
	p := marketplace.NewPricing()
	p.Set(marketplace.PeriodMonthly, marketplace.CustomerIndividual, generic.NewMoney("10", generic.USD))
	return p
}

func testConverter() currency.Converter {
	rates := currency.NewStaticRates()
	rates.Set(generic.MustParseDate("2021-01-01"), generic.USD, generic.EUR, decimal.RequireFromString("0.8"))
	return currency.SourceConverter{Source: rates}
}

func marchSale() marketplace.Sale {
	v := generic.MustDateRange("2021-03-05", "2021-04-04")
	return marketplace.Sale{
		Ref:       "s1",
		Date:      generic.MustParseDate("2021-03-05"),
		Amount:    generic.NewMoney("9", generic.EUR),
		AmountUSD: generic.NewMoney("10", generic.USD),
		Period:    marketplace.PeriodMonthly,
		Customer:  marketplace.Customer{Code: 1, Country: "DE", Type: marketplace.CustomerIndividual},
		LineItems: []marketplace.LineItem{{
			Type:       marketplace.LineItemNew,
			LicenseIDs: []string{"L1"},
			Validity:   &v,
			Amount:     generic.NewMoney("9", generic.EUR),
			AmountUSD:  generic.NewMoney("10", generic.USD),
		}},
	}
}

func TestBuilder_Overview(t *testing.T) {
	// GIVEN: One monthly sale in March and a trial before it
	b := reports.NewBuilder(testPricing(), testConverter())
	b.MaxWorkers = 2

	req := reports.Request{
		DateRange: generic.MustDateRange("2021-01-01", "2021-03-31"),
		Currency:  generic.EUR,
		Today:     generic.MustParseDate("2021-12-01"),
		Sales:     []marketplace.Sale{marchSale()},
		Trials: []marketplace.Trial{{
			ReferenceID: "t1",
			Date:        generic.MustParseDate("2021-03-01"),
			Customer:    marketplace.Customer{Code: 1},
		}},
	}

	// WHEN: Building the overview
	overview, err := b.Build(context.Background(), req)
	require.NoError(t, err)

	// THEN: One slot per month and per year
	assert.Equal(t, generic.EUR, overview.Currency)
	assert.Equal(t, 1, overview.LicenseCount)
	require.Len(t, overview.MonthlyChurn, 3)
	require.Len(t, overview.MRR, 3)
	require.Len(t, overview.AnnualChurn, 1)
	require.Len(t, overview.ARR, 1)
	assert.Equal(t, "[2021-03-01, 2021-03-31]", overview.MRR[2].DateRange.String())
	assert.Equal(t, "[2021-01-01, 2021-03-31]", overview.ARR[0].DateRange.String())

	// AND: March MRR is 8.50 USD, 6.80 EUR
	march := overview.MRR[2]
	assert.Equal(t, "8.5", march.NetAmount.Amount.String())
	assert.Equal(t, generic.EUR, march.Display.Currency)
	assert.Equal(t, "6.8", march.Display.Amount.String())
	assert.True(t, overview.MRR[0].Display.IsZero())

	// AND: March churn sees the new monthly license
	assert.Equal(t, 1, overview.MonthlyChurn[2].MonthlyLicenses.ActiveCount)
	assert.Zero(t, overview.MonthlyChurn[2].MonthlyLicenses.ChurnedCount)

	assert.Equal(t, 1, overview.TrialConversion.ConvertedCount)
}

func TestBuilder_ConversionFailureFailsBuild(t *testing.T) {
	// GIVEN: A converter without any rate
	b := reports.NewBuilder(testPricing(), currency.SourceConverter{Source: currency.NewStaticRates()})

	_, err := b.Build(context.Background(), reports.Request{
		DateRange: generic.MonthRange(2021, 3),
		Currency:  generic.EUR,
		Sales:     []marketplace.Sale{marchSale()},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrRateNotFound)
}

func TestBuilder_InvalidSalesFailBuild(t *testing.T) {
	s := marchSale()
	s.LineItems[0].LicenseIDs = nil

	_, err := reports.NewBuilder(testPricing(), nil).Build(context.Background(), reports.Request{
		DateRange: generic.MonthRange(2021, 3),
		Sales:     []marketplace.Sale{s},
	})

	assert.ErrorIs(t, err, generic.ErrNoLicenseIDs)
	assert.True(t, generic.IsClientError(err))
}

func TestBuilder_RevenueWithoutConverterStaysInUSD(t *testing.T) {
	b := reports.NewBuilder(testPricing(), nil)

	rows, err := b.Revenue(context.Background(), marketplace.RevenueMonthly,
		generic.MustDateRange("2021-02-01", "2021-03-31"), []marketplace.Sale{marchSale()}, generic.EUR)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, generic.USD, rows[1].Display.Currency)
	assert.Equal(t, "8.5", rows[1].Display.Amount.String())
	assert.Equal(t, 1, rows[1].LicenseCount)
	assert.Zero(t, rows[0].LicenseCount)
}

func TestBuilder_AnnualRevenueRows(t *testing.T) {
	b := reports.NewBuilder(testPricing(), testConverter())

	rows, err := b.Revenue(context.Background(), marketplace.RevenueAnnual,
		generic.MustDateRange("2021-03-10", "2022-12-31"), []marketplace.Sale{marchSale()}, generic.EUR)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, marketplace.RevenueAnnual, rows[0].Kind)
	assert.Equal(t, "[2021-03-10, 2021-12-31]", rows[0].DateRange.String())
	assert.Equal(t, "[2022-01-01, 2022-12-31]", rows[1].DateRange.String())
	// The March license does not reach into 2022
	assert.Zero(t, rows[1].LicenseCount)
	assert.Equal(t, 1, rows[0].LicenseCount)
}
