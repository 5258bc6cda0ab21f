/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Sales and trials are
  accepted in their marketplace form; report responses wrap the domain
  results with the query that produced them.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Ingestion:
    IngestResponse

  Licenses:
    LicenseDTO

  Reports:
    ChurnResponse, ContinuityDTO, RevenueResponse

  Rates:
    RateRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - marketplace/types.go: Sale, Trial
*/
package api

import (
	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
	"github.com/warp/marketplace-stats/reports"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// IngestResponse reports how many posted records were new.
type IngestResponse struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
}

// LicenseDTO is a derived license with the sale it came from.
type LicenseDTO struct {
	ID           string                         `json:"id"`
	SaleRef      string                         `json:"sale_ref"`
	SaleDate     generic.Date                   `json:"sale_date"`
	Type         marketplace.LineItemType       `json:"type"`
	Period       marketplace.SubscriptionPeriod `json:"period"`
	CustomerCode marketplace.CustomerID         `json:"customer_code"`
	Validity     *generic.DateRange             `json:"validity,omitempty"`
	Amount       generic.Money                  `json:"amount"`
	AmountUSD    generic.Money                  `json:"amount_usd"`
	Paid         bool                           `json:"paid"`
}

func toLicenseDTO(l marketplace.License) LicenseDTO {
	return LicenseDTO{
		ID:           l.ID,
		SaleRef:      l.Sale.Ref,
		SaleDate:     l.Sale.Date,
		Type:         l.LineItem.Type,
		Period:       l.Period(),
		CustomerCode: l.Customer().Code,
		Validity:     l.Validity,
		Amount:       l.Amount,
		AmountUSD:    l.AmountUSD,
		Paid:         l.IsPaidLicense(),
	}
}

// ChurnResponse is the churn of one period for one question.
type ChurnResponse struct {
	Period       generic.DateRange              `json:"period"`
	Subscription marketplace.SubscriptionPeriod `json:"subscription"`
	By           string                         `json:"by"`
	Result       generic.ChurnResult            `json:"result"`
	Churned      []string                       `json:"churned"`
}

// ContinuityDTO is the continuity tier the next renewal of a license gets.
type ContinuityDTO struct {
	LicenseID string                         `json:"license_id"`
	At        generic.Date                   `json:"at"`
	Discount  marketplace.ContinuityDiscount `json:"discount"`
	Percent   string                         `json:"percent"`
}

// RevenueResponse lists projected revenue per month or year.
type RevenueResponse struct {
	Kind      marketplace.RevenueKind `json:"kind"`
	DateRange generic.DateRange       `json:"date_range"`
	Currency  generic.Currency        `json:"currency"`
	Rows      []reports.RevenueRow    `json:"rows"`
}

// RateRequest records an exchange rate: amount_to = amount_from * rate.
type RateRequest struct {
	Date string `json:"date"`
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
}

// ScenarioDTO describes a demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a demo dataset.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse reports what a scenario load inserted.
type LoadScenarioResponse struct {
	Scenario string `json:"scenario"`
	Sales    int    `json:"sales"`
	Trials   int    `json:"trials"`
	Rates    int    `json:"rates"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Sales  int    `json:"sales"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
