package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
	"github.com/warp/marketplace-stats/marketplace/store"
)

func testSale(ref, date string) marketplace.Sale {
	return marketplace.Sale{
		Ref:       ref,
		Date:      generic.MustParseDate(date),
		Amount:    generic.NewMoney("10", generic.EUR),
		AmountUSD: generic.NewMoney("10", generic.USD),
		Period:    marketplace.PeriodMonthly,
		Customer:  marketplace.Customer{Code: 1, Country: "DE", Type: marketplace.CustomerIndividual},
	}
}

func refs(sales []marketplace.Sale) []string {
	out := make([]string, len(sales))
	for i, s := range sales {
		out[i] = s.Ref
	}
	return out
}

func TestMemory_SaveSalesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	n, err := m.SaveSales(ctx, []marketplace.Sale{testSale("b", "2021-02-01"), testSale("a", "2021-03-01")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same page again plus one new sale
	n, err = m.SaveSales(ctx, []marketplace.Sale{testSale("b", "2021-02-01"), testSale("c", "2021-02-01")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := m.Sales(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, refs(all), "ordered by date then ref")
}

func TestMemory_SalesInRange(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, err := m.SaveSales(ctx, []marketplace.Sale{
		testSale("jan", "2021-01-31"),
		testSale("feb", "2021-02-01"),
		testSale("feb-end", "2021-02-28"),
		testSale("mar", "2021-03-01"),
	})
	require.NoError(t, err)

	r := generic.MonthRange(2021, 2)
	sales, err := m.Sales(ctx, &r)
	require.NoError(t, err)
	assert.Equal(t, []string{"feb", "feb-end"}, refs(sales))
}

func TestMemory_Trials(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	trials := []marketplace.Trial{
		{ReferenceID: "t2", Date: generic.MustParseDate("2021-05-01")},
		{ReferenceID: "t1", Date: generic.MustParseDate("2021-01-01")},
	}
	n, err := m.SaveTrials(ctx, trials)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.SaveTrials(ctx, trials[:1])
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := m.Trials(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t1", all[0].ReferenceID)

	r := generic.YearRange(2021)
	r.End = generic.MustParseDate("2021-03-31")
	q1, err := m.Trials(ctx, &r)
	require.NoError(t, err)
	require.Len(t, q1, 1)
	assert.Equal(t, "t1", q1[0].ReferenceID)
}
