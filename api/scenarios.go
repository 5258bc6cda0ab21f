/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built datasets that populate the database with realistic
	marketplace records for testing and demos. Each scenario inserts sales,
	trials and exchange rates that demonstrate specific features.

AVAILABLE SCENARIOS:

	annual-continuity: Organization renewing annually with continuity discounts
	monthly-churn:     Monthly subscribers, two of which stop renewing
	reseller-bundle:   Reseller sale split across licenses, trial conversion

HOW SCENARIOS WORK:
 1. Build the dataset (sales, trials, USD rates)
 2. Save sales and trials (idempotent on reference)
 3. Save exchange rates
 4. Drop cached conversions and reports

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "monthly-churn"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create dataset function: xxxScenario() scenarioData
 3. Add case to scenarioByID

NOTE:

	The store is append-only, so scenarios add to existing data. Loading a
	scenario twice inserts nothing the second time.

SEE ALSO:
  - handlers.go: Handler and store wiring
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "annual-continuity",
		Name:        "Annual Continuity",
		Description: "Organization with two annual licenses renewing into the second and third year tiers",
	},
	{
		ID:          "monthly-churn",
		Name:        "Monthly Churn",
		Description: "Five monthly subscribers, two stop renewing after March",
	},
	{
		ID:          "reseller-bundle",
		Name:        "Reseller Bundle",
		Description: "Reseller sale split across three licenses, trials with one conversion",
	},
}

type demoRate struct {
	date generic.Date
	from generic.Currency
	to   generic.Currency
	rate decimal.Decimal
}

type scenarioData struct {
	sales  []marketplace.Sale
	trials []marketplace.Trial
	rates  []demoRate
}

func scenarioByID(id string) (scenarioData, bool) {
	switch id {
	case "annual-continuity":
		return annualContinuityScenario(), true
	case "monthly-churn":
		return monthlyChurnScenario(), true
	case "reseller-bundle":
		return resellerBundleScenario(), true
	default:
		return scenarioData{}, false
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	data, ok := scenarioByID(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	resp, err := h.loadScenario(r.Context(), req.ScenarioID, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadScenario(ctx context.Context, id string, data scenarioData) (LoadScenarioResponse, error) {
	sales, err := h.Store.SaveSales(ctx, data.sales)
	if err != nil {
		return LoadScenarioResponse{}, fmt.Errorf("save sales: %w", err)
	}
	trials, err := h.Store.SaveTrials(ctx, data.trials)
	if err != nil {
		return LoadScenarioResponse{}, fmt.Errorf("save trials: %w", err)
	}
	for _, rate := range data.rates {
		if err := h.Store.PutRate(ctx, rate.date, rate.from, rate.to, rate.rate); err != nil {
			return LoadScenarioResponse{}, fmt.Errorf("save rate: %w", err)
		}
	}
	h.Converter.Purge()
	h.InvalidateReports()

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.logger.Info("scenario loaded", "scenario", id, "sales", sales, "trials", trials)
	return LoadScenarioResponse{Scenario: id, Sales: sales, Trials: trials, Rates: len(data.rates)}, nil
}

// =============================================================================
// SCENARIO DATASETS
// =============================================================================

// usdRates are the USD→EUR rates every scenario ships with.
func usdRates() []demoRate {
	return []demoRate{
		{generic.MustParseDate("2019-01-01"), generic.USD, generic.EUR, decimal.RequireFromString("0.89")},
		{generic.MustParseDate("2020-01-01"), generic.USD, generic.EUR, decimal.RequireFromString("0.92")},
		{generic.MustParseDate("2021-01-01"), generic.USD, generic.EUR, decimal.RequireFromString("0.82")},
		{generic.MustParseDate("2022-01-01"), generic.USD, generic.EUR, decimal.RequireFromString("0.88")},
	}
}

func annualContinuityScenario() scenarioData {
	acme := marketplace.Customer{Code: 1001, Name: "Acme GmbH", Country: "DE", Type: marketplace.CustomerOrganization}

	year := func(start string) *generic.DateRange {
		s := generic.MustParseDate(start)
		r := generic.DateRange{Start: s, End: s.AddYears(1).AddDays(-1)}
		return &r
	}

	return scenarioData{
		sales: []marketplace.Sale{
			demoSale("acme-2019", "2019-03-01", marketplace.PeriodAnnual, acme, "900.00", "1000.00",
				demoLine(marketplace.LineItemNew, year("2019-03-01"), "900.00", "1000.00", nil, "L-ACME-1", "L-ACME-2")),
			demoSale("acme-2020", "2020-03-01", marketplace.PeriodAnnual, acme, "736.00", "800.00",
				demoLine(marketplace.LineItemRenew, year("2020-03-01"), "736.00", "800.00",
					[]marketplace.Discount{{Description: "Continuity discount, second year", Percent: ptr(20.0)}},
					"L-ACME-1", "L-ACME-2")),
			demoSale("acme-2021", "2021-03-01", marketplace.PeriodAnnual, acme, "492.00", "600.00",
				demoLine(marketplace.LineItemRenew, year("2021-03-01"), "492.00", "600.00",
					[]marketplace.Discount{{Description: "Continuity discount, third year", Percent: ptr(40.0)}},
					"L-ACME-1", "L-ACME-2")),
		},
		rates: usdRates(),
	}
}

func monthlyChurnScenario() scenarioData {
	var data scenarioData
	first := generic.MustParseDate("2021-01-05")

	// Customers 2004 and 2005 stop after three months.
	months := map[marketplace.CustomerID]int{2001: 12, 2002: 12, 2003: 12, 2004: 3, 2005: 3}
	for code := marketplace.CustomerID(2001); code <= 2005; code++ {
		customer := marketplace.Customer{Code: code, Country: "US", Type: marketplace.CustomerIndividual}
		licenseID := fmt.Sprintf("L-M-%d", code)
		for m := 0; m < months[code]; m++ {
			start := first.AddMonths(m)
			validity := generic.DateRange{Start: start, End: start.AddMonths(1).AddDays(-1)}
			itemType := marketplace.LineItemRenew
			if m == 0 {
				itemType = marketplace.LineItemNew
			}
			ref := fmt.Sprintf("m-%d-%02d", code, m+1)
			data.sales = append(data.sales, demoSale(ref, start.String(), marketplace.PeriodMonthly, customer, "8.50", "10.00",
				demoLine(itemType, &validity, "8.50", "10.00", nil, licenseID)))
		}
	}
	data.rates = usdRates()
	return data
}

func resellerBundleScenario() scenarioData {
	globex := marketplace.Customer{Code: 3001, Name: "Globex", Country: "FR", Type: marketplace.CustomerOrganization}
	hooli := marketplace.Customer{Code: 3002, Name: "Hooli", Country: "US", Type: marketplace.CustomerOrganization}
	reseller := &marketplace.Reseller{Code: 77, Name: "SoftShop", Country: "FR", Type: marketplace.CustomerOrganization}

	validity := generic.DateRange{Start: generic.MustParseDate("2021-06-10"), End: generic.MustParseDate("2022-06-09")}

	bundle := demoSale("globex-2021", "2021-06-10", marketplace.PeriodAnnual, globex, "1.10", "1.00",
		demoLine(marketplace.LineItemNew, &validity, "1.10", "1.00",
			[]marketplace.Discount{{Description: "Reseller discount for 3-year subscriptions", Percent: ptr(10.0)}},
			"L-GLX-1", "L-GLX-2", "L-GLX-3"))
	bundle.Reseller = reseller

	free := demoSale("hooli-2021", "2021-06-20", marketplace.PeriodAnnual, hooli, "0.00", "0.00",
		demoLine(marketplace.LineItemNew, &validity, "0.00", "0.00",
			[]marketplace.Discount{{Description: "Open source license", Percent: ptr(100.0)}},
			"L-HOO-1"))

	trial := func(ref, date string, c marketplace.Customer) marketplace.Trial {
		return marketplace.Trial{ReferenceID: ref, Date: generic.MustParseDate(date), Customer: c}
	}

	return scenarioData{
		sales: []marketplace.Sale{bundle, free},
		trials: []marketplace.Trial{
			trial("t-3001", "2021-05-01", globex),
			trial("t-3002", "2021-05-15", hooli),
			trial("t-3003", "2021-05-20", marketplace.Customer{Code: 3003, Country: "DE", Type: marketplace.CustomerIndividual}),
			trial("t-3004", "2021-05-25", marketplace.Customer{Code: 3004, Country: "JP", Type: marketplace.CustomerIndividual}),
		},
		rates: usdRates(),
	}
}

func demoSale(ref, date string, period marketplace.SubscriptionPeriod, customer marketplace.Customer, eur, usd string, items ...marketplace.LineItem) marketplace.Sale {
	return marketplace.Sale{
		Ref:       ref,
		Date:      generic.MustParseDate(date),
		Amount:    generic.NewMoney(eur, generic.EUR),
		AmountUSD: generic.NewMoney(usd, generic.USD),
		Period:    period,
		Customer:  customer,
		LineItems: items,
	}
}

func demoLine(t marketplace.LineItemType, validity *generic.DateRange, eur, usd string, discounts []marketplace.Discount, ids ...string) marketplace.LineItem {
	return marketplace.LineItem{
		Type:       t,
		LicenseIDs: ids,
		Validity:   validity,
		Amount:     generic.NewMoney(eur, generic.EUR),
		AmountUSD:  generic.NewMoney(usd, generic.USD),
		Discounts:  discounts,
	}
}

func ptr[T any](v T) *T {
	return &v
}
