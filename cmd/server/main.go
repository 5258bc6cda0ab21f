/*
main.go - Application entry point

PURPOSE:
  Starts the marketplace analytics server and imports exported marketplace
  records. Handles configuration, dependency injection, and graceful
  shutdown.

COMMANDS:
  serve    Run the HTTP API and the background report refresher
  import   Load sales (and optionally trials) from JSON files

STARTUP SEQUENCE (serve):
  1. Load configuration (file, .env, MSTATS_* environment)
  2. Initialize logger
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server and refresher with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the report refresher
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  marketplace-stats serve --config ./config.yaml

  # Run with in-memory database
  MSTATS_DATABASE_PATH=":memory:" marketplace-stats serve

  # Import an export
  marketplace-stats import --sales sales.json --trials trials.json

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/warp/marketplace-stats/api"
	"github.com/warp/marketplace-stats/config"
	"github.com/warp/marketplace-stats/currency"
	"github.com/warp/marketplace-stats/logger"
	"github.com/warp/marketplace-stats/marketplace"
	"github.com/warp/marketplace-stats/marketplace/store"
	"github.com/warp/marketplace-stats/store/sqlite"
)

const importBatchSize = 100

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "marketplace-stats",
		Short:         "Sales, churn and recurring revenue analytics for marketplace plugins",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(&configPath), newImportCmd(&configPath))
	return root
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel, cfg.LogFormat)
			return serve(cfg)
		},
	}
}

func serve(cfg *config.AppConfig) error {
	// Initialize store
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize handler
	handler, err := api.NewHandler(db, api.Options{
		Pricing:         cfg.Pricing,
		DisplayCurrency: cfg.DisplayCurrency,
		RateCache:       currency.CacheConfig{Size: cfg.RateCacheSize, TTL: cfg.RateCacheTTL},
		ReportCacheTTL:  cfg.ReportCacheTTL,
		Registry:        registry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize handler: %w", err)
	}

	routerOpts := api.DefaultRouterOptions()
	routerOpts.RateLimitPerMinute = cfg.RateLimitPerMinute
	routerOpts.RateLimitBurst = cfg.RateLimitBurst
	router := api.NewRouter(handler, routerOpts)

	refresher := api.NewReportRefresher(handler)
	refresher.Interval = cfg.ReportRefreshInterval
	refresher.Start()
	defer refresher.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr, "database", cfg.DatabasePath, "currency", cfg.DisplayCurrency)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// =============================================================================
// IMPORT
// =============================================================================

func newImportCmd(configPath *string) *cobra.Command {
	var salesPath, trialsPath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import sales and trials from JSON exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel, cfg.LogFormat)

			var target marketplace.SaleStore
			if dryRun {
				target = store.NewMemory()
			} else {
				db, err := sqlite.New(cfg.DatabasePath)
				if err != nil {
					return fmt.Errorf("failed to initialize database: %w", err)
				}
				defer db.Close()
				target = db
			}
			return runImport(cmd.Context(), target, salesPath, trialsPath)
		},
	}
	cmd.Flags().StringVar(&salesPath, "sales", "", "JSON file with an array of sales")
	cmd.Flags().StringVar(&trialsPath, "trials", "", "JSON file with an array of trials")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and count without writing to the database")
	cmd.MarkFlagRequired("sales")
	return cmd
}

func runImport(ctx context.Context, target marketplace.SaleStore, salesPath, trialsPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var sales []marketplace.Sale
	if err := readJSON(salesPath, &sales); err != nil {
		return err
	}
	licenses, err := marketplace.DeriveLicenses(sales)
	if err != nil {
		return fmt.Errorf("invalid sales in %s: %w", salesPath, err)
	}

	bar := progressbar.Default(int64(len(sales)), "importing sales")
	inserted := 0
	for start := 0; start < len(sales); start += importBatchSize {
		end := min(start+importBatchSize, len(sales))
		n, err := target.SaveSales(ctx, sales[start:end])
		if err != nil {
			return fmt.Errorf("save sales: %w", err)
		}
		inserted += n
		bar.Add(end - start)
	}
	bar.Finish()

	trialsInserted := 0
	if trialsPath != "" {
		var trials []marketplace.Trial
		if err := readJSON(trialsPath, &trials); err != nil {
			return err
		}
		if trialsInserted, err = target.SaveTrials(ctx, trials); err != nil {
			return fmt.Errorf("save trials: %w", err)
		}
	}

	slog.Info("import finished",
		"sales", len(sales),
		"salesInserted", inserted,
		"licenses", len(licenses),
		"trialsInserted", trialsInserted)
	return nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
