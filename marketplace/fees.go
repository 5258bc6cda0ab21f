package marketplace

import (
	"github.com/shopspring/decimal"
	"github.com/warp/marketplace-stats/generic"
)

// =============================================================================
// PLATFORM FEE
// =============================================================================

// FeeChangeDate is the first day the 15% marketplace fee applies.
var FeeChangeDate = generic.NewDate(2020, 7, 1)

var (
	feeFactorBefore = decimal.RequireFromString("0.05")
	feeFactorAfter  = decimal.RequireFromString("0.15")
)

// FeeFactor returns the fraction of a sale kept by the marketplace on date.
func FeeFactor(date generic.Date) decimal.Decimal {
	if date.Before(FeeChangeDate) {
		return feeFactorBefore
	}
	return feeFactorAfter
}

// FeeAmount returns the marketplace fee for amount on date.
func FeeAmount(date generic.Date, amount generic.Money) generic.Money {
	return amount.Mul(FeeFactor(date))
}

// PaidAmount returns amount minus the marketplace fee, the part paid out to
// the vendor. PaidAmount + FeeAmount == amount.
func PaidAmount(date generic.Date, amount generic.Money) generic.Money {
	return amount.WithAmount(amount.Amount.Sub(FeeAmount(date, amount).Amount))
}
