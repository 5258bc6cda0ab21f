package currency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/warp/marketplace-stats/generic"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 7 * 24 * time.Hour
)

// CacheConfig configures the exchange rate cache.
type CacheConfig struct {
	// Size is the maximum number of cached (date, from, to) rates.
	Size int
	// TTL is how long a cached rate remains valid.
	TTL time.Duration
}

// DefaultCacheConfig returns a week-long cache of 4096 rates.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Size: defaultCacheSize, TTL: defaultCacheTTL}
}

type rateKey struct {
	Date generic.Date
	From generic.Currency
	To   generic.Currency
}

func (k rateKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Date, k.From, k.To)
}

// CachedConverter memoizes rates from a RateSource. Concurrent lookups of
// the same key share one source call. Failed lookups are not cached.
// It is safe for concurrent use.
type CachedConverter struct {
	source  RateSource
	cache   *expirable.LRU[rateKey, decimal.Decimal]
	group   singleflight.Group
	metrics *Metrics
	logger  *slog.Logger
}

var _ Converter = (*CachedConverter)(nil)

// NewCachedConverter wraps source with a bounded TTL cache. Zero config
// values fall back to DefaultCacheConfig. metrics may be nil.
func NewCachedConverter(source RateSource, config CacheConfig, metrics *Metrics) *CachedConverter {
	defaults := DefaultCacheConfig()
	if config.Size <= 0 {
		config.Size = defaults.Size
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	return &CachedConverter{
		source:  source,
		cache:   expirable.NewLRU[rateKey, decimal.Decimal](config.Size, nil, config.TTL),
		metrics: metrics,
		logger:  slog.Default().With("component", "currency"),
	}
}

func (c *CachedConverter) Convert(ctx context.Context, date generic.Date, amount generic.Money, target generic.Currency) (generic.Money, error) {
	if amount.Currency == target {
		return amount, nil
	}
	rate, err := c.Rate(ctx, date, amount.Currency, target)
	if err != nil {
		return generic.Money{}, err
	}
	return apply(amount, rate, target), nil
}

// Rate returns the cached rate or loads it from the source.
func (c *CachedConverter) Rate(ctx context.Context, date generic.Date, from, to generic.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := rateKey{Date: date, From: from, To: to}
	if rate, ok := c.cache.Get(key); ok {
		c.metrics.observe(lookupHit)
		return rate, nil
	}

	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		if rate, ok := c.cache.Get(key); ok {
			return rate, nil
		}
		// The flight outlives any single caller sharing it.
		rate, err := c.source.Rate(context.WithoutCancel(ctx), date, from, to)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, rate)
		return rate, nil
	})
	if err != nil {
		c.metrics.observe(lookupError)
		c.logger.Warn("exchange rate lookup failed", "date", date.String(), "from", from, "to", to, "error", err)
		return decimal.Zero, &generic.RateError{Date: date, From: from, To: to, Err: err}
	}

	if shared {
		c.metrics.observe(lookupShared)
	} else {
		c.metrics.observe(lookupMiss)
	}
	return v.(decimal.Decimal), nil
}

// Len returns the number of cached rates.
func (c *CachedConverter) Len() int {
	return c.cache.Len()
}

// Purge drops every cached rate.
func (c *CachedConverter) Purge() {
	c.cache.Purge()
}

// =============================================================================
// METRICS
// =============================================================================

const (
	lookupHit    = "hit"
	lookupMiss   = "miss"
	lookupShared = "shared"
	lookupError  = "error"
)

// Metrics exports exchange rate cache counters to Prometheus.
type Metrics struct {
	lookups *prometheus.CounterVec
}

// NewMetrics registers the cache counters with reg, or the default
// registerer when reg is nil.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "marketplace_stats"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "currency",
		Name:      "rate_lookups_total",
		Help:      "Exchange rate lookups by cache result.",
	}, []string{"result"})

	if err := reg.Register(lookups); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register currency metric: %w", err)
		}
		lookups = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &Metrics{lookups: lookups}, nil
}

func (m *Metrics) observe(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}
