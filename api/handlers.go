/*
handlers.go - HTTP API handlers for the marketplace analytics

PURPOSE:
  Exposes ingestion and the analytics engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Ingestion:
    POST   /api/sales                  Ingest sales (idempotent on ref)
    GET    /api/sales                  List sales in a date range
    POST   /api/trials                 Ingest trials
    GET    /api/trials                 List trials in a date range

  Licenses:
    GET    /api/licenses               Derived licenses
    GET    /api/continuity/{licenseID} Continuity tier of the next renewal

  Reports:
    GET    /api/churn                  Customer or license churn of a period
    GET    /api/revenue                MRR per month or ARR per year
    GET    /api/overview               Combined report (cached)

  Rates:
    POST   /api/rates                  Record an exchange rate

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario
    GET    /api/scenarios/current      Last loaded scenario

  Operational:
    GET    /healthz                    Liveness
    GET    /metrics                    Prometheus metrics

QUERY PARAMETERS:
  start, end   YYYY-MM-DD, default: start of the current year to today
  currency     Display currency, default: configured display currency
  period       annual | monthly (churn)
  by           customer | license (churn)
  kind         monthly | annual (revenue)
  at, today    YYYY-MM-DD evaluation date

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed records
  - 404: Unknown license, missing price or exchange rate
  - 500: Internal errors

CACHING:
  Overviews are cached per (range, currency, today) for the configured
  report TTL. Any ingestion or rate change flushes the cache.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/warp/marketplace-stats/currency"
	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
	"github.com/warp/marketplace-stats/reports"
	"github.com/warp/marketplace-stats/store/sqlite"
)

const defaultReportCacheTTL = 10 * time.Minute

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures a Handler. Zero values select defaults.
type Options struct {
	Pricing         *marketplace.Pricing
	DisplayCurrency generic.Currency
	RateCache       currency.CacheConfig
	ReportCacheTTL  time.Duration
	Registry        *prometheus.Registry
	Today           func() generic.Date
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store           *sqlite.Store
	Converter       *currency.CachedConverter
	Builder         *reports.Builder
	Registry        *prometheus.Registry
	DisplayCurrency generic.Currency

	reports *cache.Cache
	today   func() generic.Date
	metrics *httpMetrics
	logger  *slog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, opts Options) (*Handler, error) {
	if opts.Pricing == nil {
		opts.Pricing = marketplace.NewPricing()
	}
	if opts.DisplayCurrency == "" {
		opts.DisplayCurrency = generic.USD
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = defaultReportCacheTTL
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Today == nil {
		opts.Today = generic.Today
	}

	currencyMetrics, err := currency.NewMetrics("", opts.Registry)
	if err != nil {
		return nil, err
	}
	httpMetrics, err := newHTTPMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}

	converter := currency.NewCachedConverter(store, opts.RateCache, currencyMetrics)
	return &Handler{
		Store:           store,
		Converter:       converter,
		Builder:         reports.NewBuilder(opts.Pricing, converter),
		Registry:        opts.Registry,
		DisplayCurrency: opts.DisplayCurrency,
		reports:         cache.New(opts.ReportCacheTTL, 2*opts.ReportCacheTTL),
		today:           opts.Today,
		metrics:         httpMetrics,
		logger:          slog.Default().With("component", "api"),
	}, nil
}

// =============================================================================
// SALES & TRIALS HANDLERS
// =============================================================================

// IngestSales stores posted sales. A malformed sale rejects the whole batch.
func (h *Handler) IngestSales(w http.ResponseWriter, r *http.Request) {
	var sales []marketplace.Sale
	if err := json.NewDecoder(r.Body).Decode(&sales); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// Reject records the analytics could not process before storing them.
	if _, err := marketplace.DeriveLicenses(sales); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sales", err)
		return
	}
	for _, s := range sales {
		if s.Ref == "" {
			writeError(w, http.StatusBadRequest, "Invalid sales", errors.New("sale without ref"))
			return
		}
	}

	inserted, err := h.Store.SaveSales(r.Context(), sales)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save sales", err)
		return
	}
	if inserted > 0 {
		h.InvalidateReports()
	}

	h.logger.Info("sales ingested", "received", len(sales), "inserted", inserted)
	writeJSON(w, http.StatusOK, IngestResponse{Received: len(sales), Inserted: inserted})
}

// ListSales returns the sales dated within the requested range.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	dateRange, err := h.dateRangeParam(r)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}

	sales, err := h.Store.Sales(r.Context(), &dateRange)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales", err)
		return
	}
	if sales == nil {
		sales = []marketplace.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func (h *Handler) IngestTrials(w http.ResponseWriter, r *http.Request) {
	var trials []marketplace.Trial
	if err := json.NewDecoder(r.Body).Decode(&trials); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	for _, t := range trials {
		if t.ReferenceID == "" {
			writeError(w, http.StatusBadRequest, "Invalid trials", errors.New("trial without referenceId"))
			return
		}
	}

	inserted, err := h.Store.SaveTrials(r.Context(), trials)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save trials", err)
		return
	}
	if inserted > 0 {
		h.InvalidateReports()
	}
	writeJSON(w, http.StatusOK, IngestResponse{Received: len(trials), Inserted: inserted})
}

func (h *Handler) ListTrials(w http.ResponseWriter, r *http.Request) {
	dateRange, err := h.dateRangeParam(r)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}

	trials, err := h.Store.Trials(r.Context(), &dateRange)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list trials", err)
		return
	}
	if trials == nil {
		trials = []marketplace.Trial{}
	}
	writeJSON(w, http.StatusOK, trials)
}

// =============================================================================
// LICENSE HANDLERS
// =============================================================================

// ListLicenses derives licenses from all stored sales. The optional id
// parameter restricts the result to one license's history.
func (h *Handler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	licenses, err := h.licenses(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to derive licenses", err)
		return
	}
	if id := r.URL.Query().Get("id"); id != "" {
		licenses = marketplace.LicensesByID(licenses, id)
	}

	dtos := make([]LicenseDTO, len(licenses))
	for i, l := range licenses {
		dtos[i] = toLicenseDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetContinuity returns the continuity tier a renewal of the license
// starting at the "at" date would receive.
func (h *Handler) GetContinuity(w http.ResponseWriter, r *http.Request) {
	licenseID := chi.URLParam(r, "licenseID")

	at, err := h.dateParam(r, "at")
	if err != nil {
		writeDomainError(w, "Invalid date", err)
		return
	}

	licenses, err := h.licenses(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to derive licenses", err)
		return
	}
	if len(marketplace.LicensesByID(licenses, licenseID)) == 0 {
		writeError(w, http.StatusNotFound, "License not found", nil)
		return
	}

	tracker := marketplace.NewContinuityTracker()
	for _, l := range licenses {
		tracker.Process(l)
	}
	discount := tracker.NextContinuity(licenseID, at)

	writeJSON(w, http.StatusOK, ContinuityDTO{
		LicenseID: licenseID,
		At:        at,
		Discount:  discount,
		Percent:   discount.Percent().String(),
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetChurn answers one churn question for the requested period.
func (h *Handler) GetChurn(w http.ResponseWriter, r *http.Request) {
	dateRange, err := h.dateRangeParam(r)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}
	today, err := h.dateParam(r, "today")
	if err != nil {
		writeDomainError(w, "Invalid date", err)
		return
	}

	var subscription marketplace.SubscriptionPeriod
	switch strings.ToLower(r.URL.Query().Get("period")) {
	case "", "annual":
		subscription = marketplace.PeriodAnnual
	case "monthly":
		subscription = marketplace.PeriodMonthly
	default:
		writeError(w, http.StatusBadRequest, "period must be annual or monthly", nil)
		return
	}

	licenses, err := h.licenses(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to derive licenses", err)
		return
	}

	resp := ChurnResponse{Period: dateRange, Subscription: subscription}
	switch by := strings.ToLower(r.URL.Query().Get("by")); by {
	case "", "customer":
		churn := marketplace.NewCustomerChurn(dateRange, subscription, today)
		for _, l := range licenses {
			churn.Process(l)
		}
		resp.By = "customer"
		resp.Result = churn.Result()
		resp.Churned = make([]string, 0)
		for _, id := range churn.Churned() {
			resp.Churned = append(resp.Churned, fmt.Sprint(int(id)))
		}
	case "license":
		churn := marketplace.NewLicenseChurn(dateRange, subscription, today)
		for _, l := range licenses {
			churn.Process(l)
		}
		resp.By = "license"
		resp.Result = churn.Result()
		resp.Churned = append(make([]string, 0), churn.Churned()...)
	default:
		writeError(w, http.StatusBadRequest, "by must be customer or license", nil)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRevenue returns MRR per month or ARR per year of the requested range.
func (h *Handler) GetRevenue(w http.ResponseWriter, r *http.Request) {
	dateRange, err := h.dateRangeParam(r)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}
	target, err := h.currencyParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid currency", err)
		return
	}

	var kind marketplace.RevenueKind
	switch strings.ToLower(r.URL.Query().Get("kind")) {
	case "", "monthly", "mrr":
		kind = marketplace.RevenueMonthly
	case "annual", "arr":
		kind = marketplace.RevenueAnnual
	default:
		writeError(w, http.StatusBadRequest, "kind must be monthly or annual", nil)
		return
	}

	sales, err := h.Store.Sales(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load sales", err)
		return
	}

	rows, err := h.Builder.Revenue(r.Context(), kind, dateRange, sales, target)
	if err != nil {
		writeDomainError(w, "Failed to compute revenue", err)
		return
	}
	writeJSON(w, http.StatusOK, RevenueResponse{Kind: kind, DateRange: dateRange, Currency: target, Rows: rows})
}

// GetOverview returns the combined report, served from the report cache
// when possible.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	dateRange, err := h.dateRangeParam(r)
	if err != nil {
		writeDomainError(w, "Invalid date range", err)
		return
	}
	target, err := h.currencyParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid currency", err)
		return
	}

	overview, err := h.Overview(r.Context(), dateRange, target)
	if err != nil {
		writeDomainError(w, "Failed to build overview", err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// Overview returns the cached overview or builds and caches it.
func (h *Handler) Overview(ctx context.Context, dateRange generic.DateRange, target generic.Currency) (*reports.Overview, error) {
	today := h.today()
	if cached, ok := h.reports.Get(overviewKey(dateRange, target, today)); ok {
		return cached.(*reports.Overview), nil
	}
	return h.buildOverview(ctx, dateRange, target, today)
}

// RefreshOverview builds the overview and replaces the cached copy.
func (h *Handler) RefreshOverview(ctx context.Context, dateRange generic.DateRange, target generic.Currency) (*reports.Overview, error) {
	return h.buildOverview(ctx, dateRange, target, h.today())
}

func (h *Handler) buildOverview(ctx context.Context, dateRange generic.DateRange, target generic.Currency, today generic.Date) (*reports.Overview, error) {
	sales, err := h.Store.Sales(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	trials, err := h.Store.Trials(ctx, &dateRange)
	if err != nil {
		return nil, fmt.Errorf("load trials: %w", err)
	}

	overview, err := h.Builder.Build(ctx, reports.Request{
		DateRange: dateRange,
		Currency:  target,
		Today:     today,
		Sales:     sales,
		Trials:    trials,
	})
	if err != nil {
		return nil, err
	}
	h.reports.SetDefault(overviewKey(dateRange, target, today), overview)
	return overview, nil
}

func overviewKey(dateRange generic.DateRange, target generic.Currency, today generic.Date) string {
	return fmt.Sprintf("overview|%s|%s|%s", dateRange, target, today)
}

// InvalidateReports drops every cached overview.
func (h *Handler) InvalidateReports() {
	h.reports.Flush()
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

// PutRate records an exchange rate and drops cached conversions.
func (h *Handler) PutRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	from, err := parseCurrency(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid currency", err)
		return
	}
	to, err := parseCurrency(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid currency", err)
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil || !rate.IsPositive() {
		writeError(w, http.StatusBadRequest, "Rate must be a positive decimal", err)
		return
	}

	if err := h.Store.PutRate(r.Context(), date, from, to, rate); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rate", err)
		return
	}
	h.Converter.Purge()
	h.InvalidateReports()

	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.CountSales(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sales: n})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) licenses(ctx context.Context) ([]marketplace.License, error) {
	sales, err := h.Store.Sales(ctx, nil)
	if err != nil {
		return nil, err
	}
	return marketplace.DeriveLicenses(sales)
}

// dateRangeParam reads start and end, defaulting to the current year so far.
func (h *Handler) dateRangeParam(r *http.Request) (generic.DateRange, error) {
	today := h.today()
	start := generic.StartOfYear(today.Year())
	end := today

	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		d, err := generic.ParseDate(v)
		if err != nil {
			return generic.DateRange{}, err
		}
		start = d
	}
	if v := q.Get("end"); v != "" {
		d, err := generic.ParseDate(v)
		if err != nil {
			return generic.DateRange{}, err
		}
		end = d
	}
	return generic.NewDateRange(start, end)
}

// dateParam reads an optional date, defaulting to today.
func (h *Handler) dateParam(r *http.Request, name string) (generic.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return h.today(), nil
	}
	return generic.ParseDate(v)
}

func (h *Handler) currencyParam(r *http.Request) (generic.Currency, error) {
	v := r.URL.Query().Get("currency")
	if v == "" {
		return h.DisplayCurrency, nil
	}
	return parseCurrency(v)
}

func parseCurrency(v string) (generic.Currency, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) != 3 {
		return "", fmt.Errorf("%q is not an ISO currency code", v)
	}
	for _, c := range v {
		if c < 'A' || c > 'Z' {
			return "", fmt.Errorf("%q is not an ISO currency code", v)
		}
	}
	return generic.Currency(v), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's classification.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case generic.IsClientError(err):
		status = http.StatusBadRequest
	case generic.IsNotFound(err):
		status = http.StatusNotFound
	}
	writeError(w, status, message, err)
}
