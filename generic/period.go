package generic

import "time"

// =============================================================================
// DATE RANGE - Inclusive [Start, End] pair of days
// =============================================================================

// DateRange is an inclusive range of days. Subscription validity, reporting
// periods and API query windows are all DateRanges.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewDateRange returns [start, end], or ErrInvalidRange when end < start.
func NewDateRange(start, end Date) (DateRange, error) {
	if end.Before(start) {
		return DateRange{}, ErrInvalidRange
	}
	return DateRange{Start: start, End: end}, nil
}

// MustDateRange is NewDateRange for constants and tests.
func MustDateRange(start, end string) DateRange {
	r, err := NewDateRange(MustParseDate(start), MustParseDate(end))
	if err != nil {
		panic(err)
	}
	return r
}

func MonthRange(year int, month time.Month) DateRange {
	return DateRange{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

func YearRange(year int) DateRange {
	return DateRange{Start: StartOfYear(year), End: EndOfYear(year)}
}

// Contains returns true if d is within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Intersects returns true if both ranges share at least one day.
func (r DateRange) Intersects(other DateRange) bool {
	return r.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(r.End)
}

// Days returns the number of days in the range, both ends included.
func (r DateRange) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}

// Compare orders ranges by start, then by end.
func (r DateRange) Compare(other DateRange) int {
	if c := r.Start.Compare(other.Start); c != 0 {
		return c
	}
	return r.End.Compare(other.End)
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// =============================================================================
// CHUNKING - Splits a range into consecutive sub-ranges
// =============================================================================

// ChunkMonths splits the range into consecutive ranges of at most n months.
// The last chunk is cut at End. n < 1 is treated as 1.
func (r DateRange) ChunkMonths(n int) []DateRange {
	if n < 1 {
		n = 1
	}
	return r.chunk(func(d Date) Date { return d.AddMonths(n) })
}

// ChunkDays splits the range into consecutive ranges of at most n days.
func (r DateRange) ChunkDays(n int) []DateRange {
	if n < 1 {
		n = 1
	}
	return r.chunk(func(d Date) Date { return d.AddDays(n) })
}

func (r DateRange) chunk(next func(Date) Date) []DateRange {
	var chunks []DateRange
	for start := r.Start; start.BeforeOrEqual(r.End); {
		following := next(start)
		end := MinDate(following.AddDays(-1), r.End)
		chunks = append(chunks, DateRange{Start: start, End: end})
		start = following
	}
	return chunks
}

// Months returns the calendar months touching the range, each clipped to it.
func (r DateRange) Months() []DateRange {
	var months []DateRange
	for cur := StartOfMonth(r.Start.Year(), r.Start.Month()); cur.BeforeOrEqual(r.End); cur = cur.AddMonths(1) {
		m := MonthRange(cur.Year(), cur.Month())
		months = append(months, r.clip(m))
	}
	return months
}

// Years returns the calendar years touching the range, each clipped to it.
func (r DateRange) Years() []DateRange {
	var years []DateRange
	for y := r.Start.Year(); y <= r.End.Year(); y++ {
		years = append(years, r.clip(YearRange(y)))
	}
	return years
}

func (r DateRange) clip(other DateRange) DateRange {
	start := other.Start
	if start.Before(r.Start) {
		start = r.Start
	}
	return DateRange{Start: start, End: MinDate(other.End, r.End)}
}
