package marketplace

// =============================================================================
// TRIAL CONVERSION
// =============================================================================

// TrialConversion summarizes how many trial customers went on to buy.
type TrialConversion struct {
	Trials         int     `json:"trials"`
	Customers      int     `json:"customers"`
	ConvertedCount int     `json:"convertedCount"`
	ConversionRate float64 `json:"conversionRate"`
}

// ComputeTrialConversion counts a trial customer as converted when they made
// a paid sale on or after their earliest trial. The rate is relative to
// distinct trial customers and is 0 without trials.
func ComputeTrialConversion(trials []Trial, sales []Sale) TrialConversion {
	firstTrial := make(map[CustomerID]Trial)
	for _, t := range trials {
		if first, ok := firstTrial[t.Customer.Code]; !ok || t.Date.Before(first.Date) {
			firstTrial[t.Customer.Code] = t
		}
	}

	converted := make(map[CustomerID]struct{})
	for _, s := range sales {
		trial, ok := firstTrial[s.Customer.Code]
		if !ok || s.AmountUSD.IsZero() || s.Date.Before(trial.Date) {
			continue
		}
		converted[s.Customer.Code] = struct{}{}
	}

	result := TrialConversion{
		Trials:         len(trials),
		Customers:      len(firstTrial),
		ConvertedCount: len(converted),
	}
	if result.Customers > 0 {
		result.ConversionRate = float64(result.ConvertedCount) / float64(result.Customers)
	}
	return result
}
