// Package config loads the application configuration from an optional
// YAML file, an optional .env file and MSTATS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
)

// EnvPrefix prefixes every environment override, e.g. MSTATS_SERVER_PORT.
const EnvPrefix = "MSTATS"

type AppConfig struct {
	Port            int
	DatabasePath    string
	LogLevel        string
	LogFormat       string
	DisplayCurrency generic.Currency

	RateCacheTTL  time.Duration
	RateCacheSize int

	ReportCacheTTL        time.Duration
	ReportRefreshInterval time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int

	Pricing *marketplace.Pricing
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "marketplace.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("currency.display", "USD")
	v.SetDefault("currency.cache_ttl", "168h")
	v.SetDefault("currency.cache_size", 4096)
	v.SetDefault("report.cache_ttl", "10m")
	v.SetDefault("report.refresh_interval", "1h")
	v.SetDefault("api.rate_limit_per_minute", 120)
	v.SetDefault("api.rate_limit_burst", 20)
}

// Load reads configuration. path may be empty, in which case only .env,
// the environment and defaults are used.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:               v.GetInt("server.port"),
		DatabasePath:       v.GetString("database.path"),
		LogLevel:           v.GetString("log.level"),
		LogFormat:          v.GetString("log.format"),
		DisplayCurrency:    generic.Currency(strings.ToUpper(v.GetString("currency.display"))),
		RateCacheSize:      v.GetInt("currency.cache_size"),
		RateLimitPerMinute: v.GetInt("api.rate_limit_per_minute"),
		RateLimitBurst:     v.GetInt("api.rate_limit_burst"),
	}

	var errs []error
	cfg.RateCacheTTL = duration(v, "currency.cache_ttl", &errs)
	cfg.ReportCacheTTL = duration(v, "report.cache_ttl", &errs)
	cfg.ReportRefreshInterval = duration(v, "report.refresh_interval", &errs)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", cfg.Port))
	}
	if len(cfg.DisplayCurrency) != 3 {
		errs = append(errs, fmt.Errorf("currency.display: %q is not an ISO currency code", cfg.DisplayCurrency))
	}
	if cfg.RateLimitPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit_per_minute: must be positive"))
	}

	pricing, err := loadPricing(v)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Pricing = pricing

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func duration(v *viper.Viper, key string, errs *[]error) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
	}
	return d
}

var pricingKeys = []struct {
	key      string
	period   marketplace.SubscriptionPeriod
	customer marketplace.CustomerType
}{
	{"pricing.monthly.individual", marketplace.PeriodMonthly, marketplace.CustomerIndividual},
	{"pricing.monthly.organization", marketplace.PeriodMonthly, marketplace.CustomerOrganization},
	{"pricing.annual.individual", marketplace.PeriodAnnual, marketplace.CustomerIndividual},
	{"pricing.annual.organization", marketplace.PeriodAnnual, marketplace.CustomerOrganization},
}

// loadPricing reads USD list prices. Unset prices stay unknown.
func loadPricing(v *viper.Viper) (*marketplace.Pricing, error) {
	pricing := marketplace.NewPricing()
	for _, k := range pricingKeys {
		raw := v.GetString(k.key)
		if raw == "" {
			continue
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k.key, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("%s: %w", k.key, generic.ErrNegativeAmount)
		}
		pricing.Set(k.period, k.customer, generic.Money{Amount: amount, Currency: generic.USD})
	}
	return pricing, nil
}
