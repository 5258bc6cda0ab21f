package marketplace

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONTINUITY DISCOUNT - Tenure-based renewal discount tiers
// =============================================================================

// ContinuityDiscount is the renewal discount tier of a subscription lineage.
type ContinuityDiscount int

const (
	ContinuityNone ContinuityDiscount = iota
	ContinuityFirstYear
	ContinuitySecondYear
	ContinuityThirdYear
)

// Percent returns the discount granted by the tier.
func (c ContinuityDiscount) Percent() decimal.Decimal {
	switch c {
	case ContinuitySecondYear:
		return decimal.NewFromInt(20)
	case ContinuityThirdYear:
		return decimal.NewFromInt(40)
	default:
		return decimal.Zero
	}
}

// Factor returns the price multiplier of the tier, e.g. 0.8 for 20%.
func (c ContinuityDiscount) Factor() decimal.Decimal {
	return percentFactor(c.Percent())
}

func (c ContinuityDiscount) String() string {
	switch c {
	case ContinuityFirstYear:
		return "FirstYear"
	case ContinuitySecondYear:
		return "SecondYear"
	case ContinuityThirdYear:
		return "ThirdYear"
	default:
		return "None"
	}
}

func (c ContinuityDiscount) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ContinuityDiscount) UnmarshalText(b []byte) error {
	for _, tier := range []ContinuityDiscount{ContinuityNone, ContinuityFirstYear, ContinuitySecondYear, ContinuityThirdYear} {
		if string(b) == tier.String() {
			*c = tier
			return nil
		}
	}
	return fmt.Errorf("unknown continuity discount %q", b)
}

// =============================================================================
// DISCOUNT CLASSIFICATION
// =============================================================================

// DiscountKind classifies a line item discount.
type DiscountKind string

const (
	DiscountContinuity DiscountKind = "continuity"
	DiscountReseller   DiscountKind = "reseller"
	DiscountOther      DiscountKind = "other"
)

// The marketplace only reports discounts as free text. These markers are the
// single place the text is interpreted.
const (
	continuityMarker = "continuity discount"
	resellerMarker   = "reseller discount"
)

// ClassifyDiscount maps a discount description to its kind by substring.
// Matching is case-insensitive. "Reseller discount for 3rd-party plugins"
// and a bare "Reseller discount" both classify as reseller.
func ClassifyDiscount(description string) DiscountKind {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, continuityMarker):
		return DiscountContinuity
	case strings.Contains(lower, resellerMarker):
		return DiscountReseller
	default:
		return DiscountOther
	}
}

func (d Discount) Kind() DiscountKind {
	return ClassifyDiscount(d.Description)
}

// PercentValue returns the discount percentage, 0 when unknown.
func (d Discount) PercentValue() decimal.Decimal {
	if d.Percent == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*d.Percent)
}

// IsFree returns true for a 100% discount.
func (d Discount) IsFree() bool {
	return d.PercentValue().Equal(decimal.NewFromInt(100))
}

// OtherDiscountsFactor multiplies (1 - percent/100) over all discounts that
// are not continuity discounts.
func OtherDiscountsFactor(discounts []Discount) decimal.Decimal {
	factor := decimal.NewFromInt(1)
	for _, d := range discounts {
		if d.Kind() == DiscountContinuity {
			continue
		}
		factor = factor.Mul(percentFactor(d.PercentValue()))
	}
	return factor
}

func percentFactor(percent decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(percent.Div(decimal.NewFromInt(100)))
}
