// Package marketplace implements the marketplace-specific analytics: license
// derivation, continuity discounts, recurring revenue, platform fees and the
// churn questions asked of marketplace sales.
// It uses the generic engine with marketplace records and rules.
package marketplace

import "github.com/warp/marketplace-stats/generic"

// =============================================================================
// ENUMERATIONS
// =============================================================================

// SubscriptionPeriod is the billing period of a sale.
type SubscriptionPeriod string

const (
	PeriodUnknown   SubscriptionPeriod = ""
	PeriodMonthly   SubscriptionPeriod = "Monthly"
	PeriodAnnual    SubscriptionPeriod = "Annual"
	PeriodPerpetual SubscriptionPeriod = "Perpetual"
)

// LineItemType distinguishes first purchases from renewals.
type LineItemType string

const (
	LineItemNew   LineItemType = "NEW"
	LineItemRenew LineItemType = "RENEW"
)

type CustomerType string

const (
	CustomerIndividual   CustomerType = "Individual"
	CustomerOrganization CustomerType = "Organization"
)

// =============================================================================
// PARTIES
// =============================================================================

// CustomerID is the marketplace's integer customer code.
type CustomerID int

type Customer struct {
	Code    CustomerID   `json:"code"`
	Name    string       `json:"name,omitempty"`
	Country string       `json:"country"`
	Type    CustomerType `json:"type"`
}

type Reseller struct {
	Code    int          `json:"code"`
	Name    string       `json:"name"`
	Country string       `json:"country"`
	Type    CustomerType `json:"type"`
}

// =============================================================================
// SALES
// =============================================================================

// Sale is one purchase transaction. Sales are immutable once ingested.
type Sale struct {
	Ref       string             `json:"ref"`
	Date      generic.Date       `json:"date"`
	Amount    generic.Money      `json:"amount"`
	AmountUSD generic.Money      `json:"amountUSD"`
	Period    SubscriptionPeriod `json:"period"`
	Customer  Customer           `json:"customer"`
	Reseller  *Reseller          `json:"reseller,omitempty"`
	LineItems []LineItem         `json:"lineItems"`
}

// Discount is one itemized discount on a line item, as free text.
type Discount struct {
	Description string   `json:"description"`
	Percent     *float64 `json:"percent,omitempty"`
}

// LineItem is one line of a sale. A line referencing several licenses has
// its amount split across them.
type LineItem struct {
	Type       LineItemType       `json:"type"`
	LicenseIDs []string           `json:"licenseIds"`
	Validity   *generic.DateRange `json:"subscriptionDates,omitempty"`
	Amount     generic.Money      `json:"amount"`
	AmountUSD  generic.Money      `json:"amountUSD"`
	Discounts  []Discount         `json:"discountDescriptions,omitempty"`
}

// Trial is a trial signup.
type Trial struct {
	ReferenceID string       `json:"referenceId"`
	Date        generic.Date `json:"date"`
	Customer    Customer     `json:"customer"`
}
