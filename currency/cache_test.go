package currency_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/marketplace-stats/currency"
	"github.com/warp/marketplace-stats/generic"
)

// countingSource counts calls to the wrapped source.
type countingSource struct {
	calls  atomic.Int32
	source currency.RateSource
	err    error
}

func (s *countingSource) Rate(ctx context.Context, date generic.Date, from, to generic.Currency) (decimal.Decimal, error) {
	s.calls.Add(1)
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.source.Rate(ctx, date, from, to)
}

func lookups(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "test_currency_rate_lookups_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" {
					out[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	return out
}

func TestCachedConverter_CachesRates(t *testing.T) {
	// GIVEN: A cached converter with metrics on a fresh registry
	reg := prometheus.NewRegistry()
	metrics, err := currency.NewMetrics("test", reg)
	require.NoError(t, err)

	source := &countingSource{source: testRates()}
	conv := currency.NewCachedConverter(source, currency.CacheConfig{}, metrics)
	ctx := context.Background()

	// WHEN: Converting twice on the same date
	for i := 0; i < 2; i++ {
		got, err := conv.Convert(ctx, d("2021-06-01"), generic.NewMoney("10", generic.USD), generic.EUR)
		require.NoError(t, err)
		assert.True(t, got.Equal(generic.NewMoney("8", generic.EUR)))
	}

	// THEN: The source is read once
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, 1, conv.Len())
	counts := lookups(t, reg)
	assert.Equal(t, 1.0, counts["miss"])
	assert.Equal(t, 1.0, counts["hit"])

	conv.Purge()
	assert.Zero(t, conv.Len())
}

func TestCachedConverter_ConcurrentLookupsShareOneCall(t *testing.T) {
	source := &countingSource{source: testRates()}
	conv := currency.NewCachedConverter(source, currency.DefaultCacheConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rate, err := conv.Rate(context.Background(), d("2022-03-01"), generic.USD, generic.EUR)
			assert.NoError(t, err)
			assert.Equal(t, "0.9", rate.String())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), source.calls.Load())
}

func TestCachedConverter_ErrorsAreNotCached(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := currency.NewMetrics("test", reg)
	require.NoError(t, err)

	source := &countingSource{err: generic.ErrRateNotFound}
	conv := currency.NewCachedConverter(source, currency.DefaultCacheConfig(), metrics)

	for i := 0; i < 2; i++ {
		_, err := conv.Convert(context.Background(), d("2021-06-01"), generic.NewMoney("10", generic.USD), generic.EUR)
		require.Error(t, err)
		assert.ErrorIs(t, err, generic.ErrRateNotFound)

		var rateErr *generic.RateError
		require.True(t, errors.As(err, &rateErr))
		assert.Equal(t, generic.USD, rateErr.From)
		assert.Equal(t, generic.EUR, rateErr.To)
	}

	assert.Equal(t, int32(2), source.calls.Load())
	assert.Zero(t, conv.Len())
	assert.Equal(t, 2.0, lookups(t, reg)["error"])
}

func TestNewMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := currency.NewMetrics("test", reg)
	require.NoError(t, err)
	second, err := currency.NewMetrics("test", reg)
	require.NoError(t, err, "an existing collector is reused")

	conv := currency.NewCachedConverter(&countingSource{source: testRates()}, currency.DefaultCacheConfig(), second)
	_, err = conv.Rate(context.Background(), d("2021-06-01"), generic.USD, generic.EUR)
	require.NoError(t, err)

	assert.NotNil(t, first)
	assert.Equal(t, 1.0, lookups(t, reg)["miss"])
}

// blockingSource holds every lookup until release is closed and fails with
// the context error of the lookup if it was cancelled meanwhile.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSource) Rate(ctx context.Context, date generic.Date, from, to generic.Currency) (decimal.Decimal, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return decimal.RequireFromString("0.8"), nil
}

func TestCachedConverter_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	// GIVEN: A lookup in flight for a caller that goes away
	metrics, err := currency.NewMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)
	source := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	conv := currency.NewCachedConverter(source, currency.CacheConfig{}, metrics)

	first, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		rate decimal.Decimal
		err  error
	}
	firstDone := make(chan result, 1)
	go func() {
		rate, err := conv.Rate(first, d("2021-06-01"), generic.USD, generic.EUR)
		firstDone <- result{rate, err}
	}()
	<-source.entered

	secondDone := make(chan result, 1)
	go func() {
		rate, err := conv.Rate(context.Background(), d("2021-06-01"), generic.USD, generic.EUR)
		secondDone <- result{rate, err}
	}()
	time.Sleep(20 * time.Millisecond)

	// WHEN: The first caller is cancelled before the source answers
	cancel()
	close(source.release)

	// THEN: Both callers get the rate
	for _, done := range []chan result{firstDone, secondDone} {
		r := <-done
		require.NoError(t, r.err)
		assert.Equal(t, "0.8", r.rate.String())
	}
}
