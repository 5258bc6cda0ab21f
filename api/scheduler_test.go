package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/marketplace-stats/api"
	"github.com/warp/marketplace-stats/generic"
)

func TestReportRefresher_RunNow(t *testing.T) {
	h, router := newTestRouter(t)
	loadScenario(t, router, "monthly-churn")

	rr := api.NewReportRefresher(h)
	require.NoError(t, rr.RunNow())

	lastRun, err := rr.LastRun()
	assert.NoError(t, err)
	assert.False(t, lastRun.IsZero())
	assert.Equal(t, lastRun.Add(time.Hour), rr.NextRunTime())

	// The refreshed overview is what the default dashboard query gets
	refreshed, err := h.Overview(context.Background(), generic.YearRange(2021), h.DisplayCurrency)
	require.NoError(t, err)
	again, err := h.Overview(context.Background(), generic.YearRange(2021), h.DisplayCurrency)
	require.NoError(t, err)
	assert.Same(t, refreshed, again)
	assert.Equal(t, 42, refreshed.LicenseCount)
}

func TestReportRefresher_StartStop(t *testing.T) {
	h := newTestHandler(t)

	rr := api.NewReportRefresher(h)
	rr.Interval = 10 * time.Millisecond
	rr.Start()

	assert.Eventually(t, func() bool {
		lastRun, _ := rr.LastRun()
		return !lastRun.IsZero()
	}, time.Second, 5*time.Millisecond)

	rr.Stop()
	// Stopping twice is a no-op
	rr.Stop()
}

func TestReportRefresher_Disabled(t *testing.T) {
	rr := api.NewReportRefresher(newTestHandler(t))
	rr.Enabled = false
	rr.Start()
	rr.Stop()

	lastRun, _ := rr.LastRun()
	assert.True(t, lastRun.IsZero())
}
