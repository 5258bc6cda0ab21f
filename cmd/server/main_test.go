package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
	"github.com/warp/marketplace-stats/marketplace/store"
)

func writeJSONFile(t *testing.T, name string, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func importSales(n int) []marketplace.Sale {
	sales := make([]marketplace.Sale, n)
	start := generic.MustParseDate("2021-01-01")
	for i := range sales {
		d := start.AddDays(i)
		v := generic.DateRange{Start: d, End: d.AddMonths(1).AddDays(-1)}
		sales[i] = marketplace.Sale{
			Ref:       "s-" + d.String(),
			Date:      d,
			Amount:    generic.NewMoney("9", generic.EUR),
			AmountUSD: generic.NewMoney("10", generic.USD),
			Period:    marketplace.PeriodMonthly,
			Customer:  marketplace.Customer{Code: marketplace.CustomerID(i + 1), Type: marketplace.CustomerIndividual},
			LineItems: []marketplace.LineItem{{
				Type:       marketplace.LineItemNew,
				LicenseIDs: []string{"L-" + d.String()},
				Validity:   &v,
				Amount:     generic.NewMoney("9", generic.EUR),
				AmountUSD:  generic.NewMoney("10", generic.USD),
			}},
		}
	}
	return sales
}

func TestRunImport_Batches(t *testing.T) {
	// GIVEN: More sales than one batch and a trials file
	sales := importSales(importBatchSize + 20)
	salesPath := writeJSONFile(t, "sales.json", sales)
	trialsPath := writeJSONFile(t, "trials.json", []marketplace.Trial{
		{ReferenceID: "t1", Date: generic.MustParseDate("2021-01-01"), Customer: marketplace.Customer{Code: 1}},
	})

	target := store.NewMemory()
	ctx := context.Background()

	// WHEN: Importing into an empty store
	require.NoError(t, runImport(ctx, target, salesPath, trialsPath))

	// THEN: Every sale and trial is stored
	stored, err := target.Sales(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, stored, len(sales))
	trials, err := target.Trials(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, trials, 1)

	// AND: A second import is a no-op
	require.NoError(t, runImport(ctx, target, salesPath, ""))
	stored, err = target.Sales(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, stored, len(sales))
}

func TestRunImport_RejectsInvalidSales(t *testing.T) {
	sales := importSales(2)
	sales[1].LineItems[0].LicenseIDs = nil
	path := writeJSONFile(t, "sales.json", sales)

	target := store.NewMemory()
	err := runImport(context.Background(), target, path, "")

	assert.ErrorIs(t, err, generic.ErrNoLicenseIDs)
	stored, _ := target.Sales(context.Background(), nil)
	assert.Empty(t, stored, "nothing is written when validation fails")
}

func TestRunImport_MissingFile(t *testing.T) {
	err := runImport(context.Background(), store.NewMemory(), filepath.Join(t.TempDir(), "none.json"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
