/*
scheduler.go - Background report refresher

PURPOSE:
  Periodically rebuilds the default overview (current year so far, display
  currency) so the first dashboard request after an ingestion or a cache
  expiry does not pay for the full build.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Each run rebuilds and replaces the cached overview
  - A failed build is logged and retried on the next tick

CONFIGURATION:
  - Interval: How often to rebuild (default: 1 hour)
  - Enabled: Whether the refresher is active (default: true)

USAGE:
  refresher := NewReportRefresher(handler)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - handlers.go: Overview and the report cache
  - reports/builder.go: Builder
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/marketplace-stats/generic"
)

// ReportRefresher keeps the default overview warm.
type ReportRefresher struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool
	Timeout  time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastRun   time.Time
	lastError error
}

// NewReportRefresher creates a new refresher.
func NewReportRefresher(handler *Handler) *ReportRefresher {
	return &ReportRefresher{
		Handler:  handler,
		Interval: 1 * time.Hour,
		Enabled:  true,
		Timeout:  2 * time.Minute,
		stop:     make(chan struct{}),
	}
}

// Start begins the refresher.
func (rr *ReportRefresher) Start() {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if !rr.Enabled || rr.Interval <= 0 {
		slog.Info("report refresher disabled")
		return
	}

	rr.ticker = time.NewTicker(rr.Interval)
	rr.wg.Add(1)

	go rr.run(rr.ticker)

	slog.Info("report refresher started", "interval", rr.Interval)
}

// Stop stops the refresher and waits for a running refresh to finish.
func (rr *ReportRefresher) Stop() {
	rr.mu.Lock()
	ticker := rr.ticker
	rr.ticker = nil
	rr.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(rr.stop)
	rr.wg.Wait()
	slog.Info("report refresher stopped")
}

func (rr *ReportRefresher) run(ticker *time.Ticker) {
	defer rr.wg.Done()

	// Run immediately on start
	rr.RunNow()

	for {
		select {
		case <-ticker.C:
			rr.RunNow()
		case <-rr.stop:
			return
		}
	}
}

// RunNow rebuilds the default overview and returns the build error.
func (rr *ReportRefresher) RunNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), rr.Timeout)
	defer cancel()

	h := rr.Handler
	today := h.today()
	dateRange := generic.DateRange{Start: generic.StartOfYear(today.Year()), End: today}

	started := time.Now()
	_, err := h.RefreshOverview(ctx, dateRange, h.DisplayCurrency)

	rr.mu.Lock()
	rr.lastRun = started
	rr.lastError = err
	rr.mu.Unlock()

	if err != nil {
		slog.Warn("report refresh failed", "range", dateRange.String(), "error", err)
		return err
	}
	slog.Debug("report refreshed", "range", dateRange.String(), "took", time.Since(started))
	return nil
}

// LastRun returns when the last refresh started and how it ended.
func (rr *ReportRefresher) LastRun() (time.Time, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.lastRun, rr.lastError
}

// NextRunTime returns when the next scheduled refresh will occur.
func (rr *ReportRefresher) NextRunTime() time.Time {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.lastRun.IsZero() {
		return time.Now()
	}
	return rr.lastRun.Add(rr.Interval)
}
