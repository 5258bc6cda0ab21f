package marketplace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
)

func TestFeeFactor_ChangesOnJulyFirst2020(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2019-01-01", "0.05"},
		{"2020-06-30", "0.05"},
		{"2020-07-01", "0.15"},
		{"2024-03-15", "0.15"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, marketplace.FeeFactor(generic.MustParseDate(tt.date)).String())
		})
	}
}

func TestPaidAmount_PlusFeeIsAmount(t *testing.T) {
	amount := usd("123.45")

	for _, date := range []string{"2020-01-01", "2021-01-01"} {
		d := generic.MustParseDate(date)
		paid := marketplace.PaidAmount(d, amount)
		fee := marketplace.FeeAmount(d, amount)

		total, err := paid.Add(fee)
		assert.NoError(t, err)
		assert.True(t, total.Equal(amount), "paid + fee on %s", date)
		assert.Equal(t, generic.USD, paid.Currency)
	}

	assert.Equal(t, "104.9325", marketplace.PaidAmount(generic.MustParseDate("2021-01-01"), amount).Amount.String())
}
