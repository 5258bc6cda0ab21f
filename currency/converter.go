// Package currency converts amounts between currencies using historical
// exchange rates.
//
// Analytics code depends only on the Converter interface. Rates come from a
// RateSource (SQLite table, static table, or a remote service) and are
// memoized by CachedConverter.
package currency

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/marketplace-stats/generic"
)

// Converter converts an amount into target currency at the rate of date.
type Converter interface {
	Convert(ctx context.Context, date generic.Date, amount generic.Money, target generic.Currency) (generic.Money, error)
}

// RateSource resolves the rate to multiply a from-amount with to get a
// to-amount on date. It returns generic.ErrRateNotFound when it has none.
type RateSource interface {
	Rate(ctx context.Context, date generic.Date, from, to generic.Currency) (decimal.Decimal, error)
}

// =============================================================================
// STATIC RATES - In-memory rate table
// =============================================================================

type pair struct {
	From generic.Currency
	To   generic.Currency
}

type datedRate struct {
	Date generic.Date
	Rate decimal.Decimal
}

// StaticRates is a fixed rate table. A lookup uses the most recent rate on
// or before the requested date, and falls back to the inverse pair.
type StaticRates struct {
	mu    sync.RWMutex
	rates map[pair][]datedRate // ordered by date
}

var _ RateSource = (*StaticRates)(nil)

func NewStaticRates() *StaticRates {
	return &StaticRates{rates: make(map[pair][]datedRate)}
}

// Set records the rate from→to effective on date.
func (s *StaticRates) Set(date generic.Date, from, to generic.Currency, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{From: from, To: to}
	entries := s.rates[k]
	i := sort.Search(len(entries), func(i int) bool { return !entries[i].Date.Before(date) })
	if i < len(entries) && entries[i].Date.Equal(date) {
		entries[i].Rate = rate
		return
	}
	entries = append(entries, datedRate{})
	copy(entries[i+1:], entries[i:])
	entries[i] = datedRate{Date: date, Rate: rate}
	s.rates[k] = entries
}

func (s *StaticRates) Rate(_ context.Context, date generic.Date, from, to generic.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if rate, ok := s.lookup(pair{From: from, To: to}, date); ok {
		return rate, nil
	}
	if rate, ok := s.lookup(pair{From: to, To: from}, date); ok && !rate.IsZero() {
		return decimal.NewFromInt(1).DivRound(rate, 10), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s→%s on %s", generic.ErrRateNotFound, from, to, date)
}

func (s *StaticRates) lookup(k pair, date generic.Date) (decimal.Decimal, bool) {
	entries := s.rates[k]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Date.After(date) })
	if i == 0 {
		return decimal.Zero, false
	}
	return entries[i-1].Rate, true
}

// =============================================================================
// DIRECT CONVERTER - Uncached conversion
// =============================================================================

// SourceConverter converts with rates read straight from a RateSource.
type SourceConverter struct {
	Source RateSource
}

func (c SourceConverter) Convert(ctx context.Context, date generic.Date, amount generic.Money, target generic.Currency) (generic.Money, error) {
	if amount.Currency == target {
		return amount, nil
	}
	rate, err := c.Source.Rate(ctx, date, amount.Currency, target)
	if err != nil {
		return generic.Money{}, err
	}
	return apply(amount, rate, target), nil
}

func apply(amount generic.Money, rate decimal.Decimal, target generic.Currency) generic.Money {
	return generic.Money{Amount: amount.Amount.Mul(rate), Currency: target}
}
