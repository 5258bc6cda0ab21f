package marketplace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
)

func trial(id, date string, code marketplace.CustomerID) marketplace.Trial {
	return marketplace.Trial{ReferenceID: id, Date: generic.MustParseDate(date), Customer: customer(code, marketplace.CustomerIndividual)}
}

func TestComputeTrialConversion(t *testing.T) {
	// GIVEN: Four trials from three customers
	trials := []marketplace.Trial{
		trial("t1", "2021-02-01", 1),
		trial("t2", "2021-01-01", 1),
		trial("t3", "2021-03-01", 2),
		trial("t4", "2021-03-01", 3),
	}

	c2 := customer(2, marketplace.CustomerIndividual)
	sales := []marketplace.Sale{
		// Customer 1 buys after the earliest trial
		sale("s1", "2021-01-15", marketplace.PeriodMonthly, customer(1, marketplace.CustomerIndividual),
			item(marketplace.LineItemNew, validity("2021-01-15", "2021-02-14"), "10", "L1")),
		// Customer 2 bought only before trying
		sale("s2", "2021-02-01", marketplace.PeriodMonthly, c2,
			item(marketplace.LineItemNew, validity("2021-02-01", "2021-02-28"), "10", "L2")),
		// A free sale after the trial does not convert
		sale("s3", "2021-03-05", marketplace.PeriodMonthly, c2,
			item(marketplace.LineItemNew, validity("2021-03-05", "2021-04-04"), "0", "L3")),
		// Not a trial customer
		sale("s4", "2021-03-05", marketplace.PeriodMonthly, customer(9, marketplace.CustomerIndividual),
			item(marketplace.LineItemNew, validity("2021-03-05", "2021-04-04"), "10", "L4")),
	}

	// WHEN: Computing the conversion
	result := marketplace.ComputeTrialConversion(trials, sales)

	// THEN: One of three trial customers converted
	assert.Equal(t, 4, result.Trials)
	assert.Equal(t, 3, result.Customers)
	assert.Equal(t, 1, result.ConvertedCount)
	assert.InDelta(t, 1.0/3.0, result.ConversionRate, 1e-9)
}

func TestComputeTrialConversion_NoTrials(t *testing.T) {
	result := marketplace.ComputeTrialConversion(nil, nil)
	assert.Zero(t, result.ConversionRate)
	assert.Zero(t, result.Customers)
}
