package marketplace

import "github.com/warp/marketplace-stats/generic"

// =============================================================================
// CHURN QUESTIONS - Customer and license churn for a reporting period
// =============================================================================

// ChurnMarkers returns the marker dates for period: the day before it
// starts, and its last day capped at today.
func ChurnMarkers(period generic.DateRange, today generic.Date) (previous, current generic.Date) {
	return period.Start.AddDays(-1), generic.MinDate(period.End, today)
}

// CustomerChurn tracks churn of customers holding paid subscriptions of the
// given period.
type CustomerChurn struct {
	subscription SubscriptionPeriod
	processor    *generic.ChurnProcessor[CustomerID]
}

func NewCustomerChurn(period generic.DateRange, subscription SubscriptionPeriod, today generic.Date) *CustomerChurn {
	previous, current := ChurnMarkers(period, today)
	return &CustomerChurn{
		subscription: subscription,
		processor:    generic.NewChurnProcessor[CustomerID](previous, current),
	}
}

// Process feeds one license. Perpetual licenses are ignored.
func (c *CustomerChurn) Process(l License) {
	if !l.IsSubscriptionLicense() {
		return
	}
	c.processor.ProcessValue(l.Customer().Code, *l.Validity, isAcceptedChurnLicense(l, c.subscription), l.IsRenewalLicense())
}

func (c *CustomerChurn) Result() generic.ChurnResult { return c.processor.Result() }
func (c *CustomerChurn) Churned() []CustomerID       { return c.processor.Churned() }

// LicenseChurn tracks churn of paid subscription licenses of the given
// period.
type LicenseChurn struct {
	subscription SubscriptionPeriod
	processor    *generic.ChurnProcessor[string]
}

func NewLicenseChurn(period generic.DateRange, subscription SubscriptionPeriod, today generic.Date) *LicenseChurn {
	previous, current := ChurnMarkers(period, today)
	return &LicenseChurn{
		subscription: subscription,
		processor:    generic.NewChurnProcessor[string](previous, current),
	}
}

// Process feeds one license. Perpetual licenses are ignored.
func (c *LicenseChurn) Process(l License) {
	if !l.IsSubscriptionLicense() {
		return
	}
	c.processor.ProcessValue(l.ID, *l.Validity, isAcceptedChurnLicense(l, c.subscription), l.IsRenewalLicense())
}

func (c *LicenseChurn) Result() generic.ChurnResult { return c.processor.Result() }
func (c *LicenseChurn) Churned() []string           { return c.processor.Churned() }

func isAcceptedChurnLicense(l License, subscription SubscriptionPeriod) bool {
	return l.IsPaidLicense() && l.Period() == subscription
}
