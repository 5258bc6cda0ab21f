package marketplace

import (
	"fmt"
	"sort"

	"github.com/warp/marketplace-stats/generic"
)

// =============================================================================
// LICENSE - Per-license view of a sale line item
// =============================================================================

// License is one license ID of one line item of one sale. Renewals produce
// further Licenses with the same ID.
type License struct {
	ID        string             `json:"id"`
	Validity  *generic.DateRange `json:"validity,omitempty"` // nil for perpetual licenses
	Amount    generic.Money      `json:"amount"`
	AmountUSD generic.Money      `json:"amountUSD"`
	Sale      *Sale              `json:"-"`
	LineItem  *LineItem          `json:"-"`
}

func (l License) IsNewLicense() bool          { return l.LineItem.Type == LineItemNew }
func (l License) IsRenewalLicense() bool      { return l.LineItem.Type == LineItemRenew }
func (l License) IsSubscriptionLicense() bool { return l.Validity != nil }

// IsPaidLicense returns true for licenses that generated revenue: a nonzero
// USD amount and no 100% discount.
func (l License) IsPaidLicense() bool {
	if l.AmountUSD.IsZero() {
		return false
	}
	for _, d := range l.LineItem.Discounts {
		if d.IsFree() {
			return false
		}
	}
	return true
}

func (l License) Customer() Customer         { return l.Sale.Customer }
func (l License) Period() SubscriptionPeriod { return l.Sale.Period }

// =============================================================================
// DERIVATION
// =============================================================================

// DeriveLicenses expands sales into one License per (sale, line item,
// license ID). Line item amounts are split across the line's license IDs.
// A zero sale total forces the derived amounts to zero. The result is
// ordered by validity, perpetual licenses last.
//
// Licenses point into sales, which must not be modified afterwards. A line
// item without license IDs is a malformed record and fails the whole
// derivation.
func DeriveLicenses(sales []Sale) ([]License, error) {
	var licenses []License
	for si := range sales {
		sale := &sales[si]
		for li := range sale.LineItems {
			item := &sale.LineItems[li]
			if len(item.LicenseIDs) == 0 {
				return nil, &generic.PreconditionError{
					Ref:    fmt.Sprintf("sale %s line %d", sale.Ref, li),
					Reason: generic.ErrNoLicenseIDs,
				}
			}

			generic.SplitAmounts(item.Amount, item.AmountUSD, item.LicenseIDs,
				func(id string, amount, amountUSD generic.Money) {
					if sale.Amount.IsZero() {
						amount = amount.Zero()
					}
					if sale.AmountUSD.IsZero() {
						amountUSD = amountUSD.Zero()
					}
					licenses = append(licenses, License{
						ID:        id,
						Validity:  item.Validity,
						Amount:    amount,
						AmountUSD: amountUSD,
						Sale:      sale,
						LineItem:  item,
					})
				})
		}
	}

	SortLicenses(licenses)
	return licenses, nil
}

// SortLicenses orders licenses by validity, perpetual licenses last.
// The sort is stable so equal validities keep their sale order.
func SortLicenses(licenses []License) {
	sort.SliceStable(licenses, func(i, j int) bool {
		return compareValidity(licenses[i].Validity, licenses[j].Validity) < 0
	})
}

func compareValidity(a, b *generic.DateRange) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// LicensesByID filters licenses down to one license ID.
func LicensesByID(licenses []License, id string) []License {
	var out []License
	for _, l := range licenses {
		if l.ID == id {
			out = append(out, l)
		}
	}
	return out
}
