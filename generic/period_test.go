package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/marketplace-stats/generic"
)

func rangeStrings(ranges []generic.DateRange) []string {
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = r.String()
	}
	return out
}

func TestDateRange_ContainsIsInclusive(t *testing.T) {
	r := generic.MustDateRange("2024-01-10", "2024-01-31")

	assert.True(t, r.Contains(generic.MustParseDate("2024-01-10")))
	assert.True(t, r.Contains(generic.MustParseDate("2024-01-31")))
	assert.False(t, r.Contains(generic.MustParseDate("2024-02-01")))
	assert.False(t, r.Contains(generic.MustParseDate("2024-01-09")))
	assert.Equal(t, 22, r.Days())
}

func TestDateRange_Intersects(t *testing.T) {
	r := generic.MustDateRange("2024-01-10", "2024-01-31")

	assert.True(t, r.Intersects(generic.MustDateRange("2024-01-31", "2024-02-10")))
	assert.True(t, r.Intersects(generic.MustDateRange("2024-01-01", "2024-12-31")))
	assert.False(t, r.Intersects(generic.MustDateRange("2024-02-01", "2024-02-10")))
}

func TestNewDateRange_RejectsReversed(t *testing.T) {
	_, err := generic.NewDateRange(generic.MustParseDate("2024-02-01"), generic.MustParseDate("2024-01-01"))
	assert.ErrorIs(t, err, generic.ErrInvalidRange)
	assert.True(t, generic.IsClientError(err))
}

func TestDateRange_MonthsAndYears(t *testing.T) {
	r := generic.MustDateRange("2023-11-15", "2024-02-10")

	assert.Equal(t, []string{
		"[2023-11-15, 2023-11-30]",
		"[2023-12-01, 2023-12-31]",
		"[2024-01-01, 2024-01-31]",
		"[2024-02-01, 2024-02-10]",
	}, rangeStrings(r.Months()))

	assert.Equal(t, []string{
		"[2023-11-15, 2023-12-31]",
		"[2024-01-01, 2024-02-10]",
	}, rangeStrings(r.Years()))
}

func TestDateRange_Chunks(t *testing.T) {
	r := generic.MustDateRange("2024-01-01", "2024-07-15")

	chunks := r.ChunkMonths(3)
	require.Len(t, chunks, 3)
	assert.Equal(t, "[2024-01-01, 2024-03-31]", chunks[0].String())
	assert.Equal(t, "[2024-04-01, 2024-06-30]", chunks[1].String())
	assert.Equal(t, "[2024-07-01, 2024-07-15]", chunks[2].String())

	days := generic.MustDateRange("2024-01-01", "2024-01-10").ChunkDays(4)
	assert.Equal(t, []string{
		"[2024-01-01, 2024-01-04]",
		"[2024-01-05, 2024-01-08]",
		"[2024-01-09, 2024-01-10]",
	}, rangeStrings(days))
}

func TestDateRange_Compare(t *testing.T) {
	a := generic.MustDateRange("2024-01-01", "2024-01-31")
	b := generic.MustDateRange("2024-01-01", "2024-02-29")
	c := generic.MustDateRange("2024-02-01", "2024-02-29")

	assert.Negative(t, a.Compare(b))
	assert.Negative(t, b.Compare(c))
	assert.Zero(t, a.Compare(a))
	assert.Positive(t, c.Compare(a))
}
