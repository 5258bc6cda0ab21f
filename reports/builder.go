/*
Package reports assembles the marketplace overview from derived licenses.

PURPOSE:
  One overview answers many independent questions over the same license
  stream: customer and license churn for every month and year, MRR for
  every month, ARR for every year, and trial conversion. Each question owns
  its trackers, so the sections are computed concurrently and joined before
  the overview is combined.

FLOW:
  sales ──DeriveLicenses──▶ licenses ─┬─▶ churn section   (per month/year)
                                      ├─▶ revenue section (per month/year)
                                      └─▶ trial section

CURRENCY:
  Revenue is projected in USD and converted to the display currency at the
  end of each period. A failed conversion fails the build; sections already
  computed are discarded with it.

SEE ALSO:
  - marketplace/churn.go: Churn questions
  - marketplace/revenue.go: Recurring revenue tracker
*/
package reports

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/warp/marketplace-stats/currency"
	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
)

// =============================================================================
// OVERVIEW TYPES
// =============================================================================

// ChurnRow is the churn of one period for each churn question.
type ChurnRow struct {
	Period           generic.DateRange   `json:"period"`
	AnnualCustomers  generic.ChurnResult `json:"annualCustomers"`
	AnnualLicenses   generic.ChurnResult `json:"annualLicenses"`
	MonthlyCustomers generic.ChurnResult `json:"monthlyCustomers"`
	MonthlyLicenses  generic.ChurnResult `json:"monthlyLicenses"`
}

// RevenueRow is the projected revenue of one period in the display currency.
type RevenueRow struct {
	marketplace.RecurringRevenue
	Display generic.Money `json:"display"`
}

// Overview is the combined report for a date range.
type Overview struct {
	DateRange       generic.DateRange           `json:"dateRange"`
	Currency        generic.Currency            `json:"currency"`
	LicenseCount    int                         `json:"licenseCount"`
	MonthlyChurn    []ChurnRow                  `json:"monthlyChurn"`
	AnnualChurn     []ChurnRow                  `json:"annualChurn"`
	MRR             []RevenueRow                `json:"mrr"`
	ARR             []RevenueRow                `json:"arr"`
	TrialConversion marketplace.TrialConversion `json:"trialConversion"`
}

// Request selects what to build.
type Request struct {
	DateRange generic.DateRange
	Currency  generic.Currency // defaults to USD
	Today     generic.Date     // defaults to generic.Today()
	Sales     []marketplace.Sale
	Trials    []marketplace.Trial
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder computes overviews. It holds no per-build state and is safe for
// concurrent use.
type Builder struct {
	Pricing    *marketplace.Pricing
	Converter  currency.Converter
	MaxWorkers int // 0 means unlimited
	Logger     *slog.Logger
}

func NewBuilder(pricing *marketplace.Pricing, converter currency.Converter) *Builder {
	return &Builder{
		Pricing:   pricing,
		Converter: converter,
		Logger:    slog.Default().With("component", "reports"),
	}
}

// Build derives licenses from the request's sales and computes every
// section of the overview.
func (b *Builder) Build(ctx context.Context, req Request) (*Overview, error) {
	licenses, err := marketplace.DeriveLicenses(req.Sales)
	if err != nil {
		return nil, fmt.Errorf("derive licenses: %w", err)
	}

	target := req.Currency
	if target == "" || b.Converter == nil {
		target = generic.USD
	}
	today := req.Today
	if today.IsZero() {
		today = generic.Today()
	}

	overview := &Overview{
		DateRange:    req.DateRange,
		Currency:     target,
		LicenseCount: len(licenses),
	}

	months := req.DateRange.Months()
	years := req.DateRange.Years()
	overview.MonthlyChurn = make([]ChurnRow, len(months))
	overview.AnnualChurn = make([]ChurnRow, len(years))
	overview.MRR = make([]RevenueRow, len(months))
	overview.ARR = make([]RevenueRow, len(years))

	g, ctx := errgroup.WithContext(ctx)
	if b.MaxWorkers > 0 {
		g.SetLimit(b.MaxWorkers)
	}

	// Each goroutine writes only its own slot.
	for i, period := range months {
		i, period := i, period
		g.Go(func() error {
			overview.MonthlyChurn[i] = churnRow(period, licenses, today)
			return nil
		})
		g.Go(func() error {
			row, err := b.revenueRow(ctx, marketplace.NewMonthlyRevenueTracker(period, b.Pricing), licenses, target)
			if err != nil {
				return err
			}
			overview.MRR[i] = row
			return nil
		})
	}
	for i, period := range years {
		i, period := i, period
		g.Go(func() error {
			overview.AnnualChurn[i] = churnRow(period, licenses, today)
			return nil
		})
		g.Go(func() error {
			row, err := b.revenueRow(ctx, marketplace.NewAnnualRevenueTracker(period, b.Pricing), licenses, target)
			if err != nil {
				return err
			}
			overview.ARR[i] = row
			return nil
		})
	}
	g.Go(func() error {
		overview.TrialConversion = marketplace.ComputeTrialConversion(req.Trials, req.Sales)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.logger().Debug("overview built",
		"range", req.DateRange.String(),
		"licenses", len(licenses),
		"months", len(months),
		"years", len(years))
	return overview, nil
}

// Revenue computes one revenue row per calendar month (RevenueMonthly) or
// year (RevenueAnnual) of r.
func (b *Builder) Revenue(ctx context.Context, kind marketplace.RevenueKind, r generic.DateRange, sales []marketplace.Sale, target generic.Currency) ([]RevenueRow, error) {
	licenses, err := marketplace.DeriveLicenses(sales)
	if err != nil {
		return nil, fmt.Errorf("derive licenses: %w", err)
	}
	if target == "" || b.Converter == nil {
		target = generic.USD
	}

	periods := r.Months()
	newTracker := marketplace.NewMonthlyRevenueTracker
	if kind == marketplace.RevenueAnnual {
		periods = r.Years()
		newTracker = marketplace.NewAnnualRevenueTracker
	}

	rows := make([]RevenueRow, len(periods))
	g, ctx := errgroup.WithContext(ctx)
	if b.MaxWorkers > 0 {
		g.SetLimit(b.MaxWorkers)
	}
	for i, period := range periods {
		i, period := i, period
		g.Go(func() error {
			row, err := b.revenueRow(ctx, newTracker(period, b.Pricing), licenses, target)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func churnRow(period generic.DateRange, licenses []marketplace.License, today generic.Date) ChurnRow {
	annualCustomers := marketplace.NewCustomerChurn(period, marketplace.PeriodAnnual, today)
	annualLicenses := marketplace.NewLicenseChurn(period, marketplace.PeriodAnnual, today)
	monthlyCustomers := marketplace.NewCustomerChurn(period, marketplace.PeriodMonthly, today)
	monthlyLicenses := marketplace.NewLicenseChurn(period, marketplace.PeriodMonthly, today)

	for _, l := range licenses {
		annualCustomers.Process(l)
		annualLicenses.Process(l)
		monthlyCustomers.Process(l)
		monthlyLicenses.Process(l)
	}

	return ChurnRow{
		Period:           period,
		AnnualCustomers:  annualCustomers.Result(),
		AnnualLicenses:   annualLicenses.Result(),
		MonthlyCustomers: monthlyCustomers.Result(),
		MonthlyLicenses:  monthlyLicenses.Result(),
	}
}

func (b *Builder) revenueRow(ctx context.Context, tracker *marketplace.RecurringRevenueTracker, licenses []marketplace.License, target generic.Currency) (RevenueRow, error) {
	for _, l := range licenses {
		tracker.ProcessLicenseSale(l)
	}
	revenue, err := tracker.Result()
	if err != nil {
		return RevenueRow{}, fmt.Errorf("%s revenue %s: %w", tracker.Kind(), tracker.DateRange(), err)
	}

	display := revenue.NetAmount
	if b.Converter != nil {
		converted, err := b.Converter.Convert(ctx, revenue.DateRange.End, revenue.NetAmount, target)
		if err != nil {
			return RevenueRow{}, fmt.Errorf("%s revenue %s: %w", revenue.Kind, revenue.DateRange, err)
		}
		display = converted.Round(2)
	}
	return RevenueRow{RecurringRevenue: revenue, Display: display}, nil
}
