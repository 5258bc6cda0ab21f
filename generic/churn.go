/*
churn.go - Churn classification over a stream of validity observations

PURPOSE:
  Classifies tracked identifiers (customers, licenses) as "previously
  active", "currently active" and "churned" relative to two marker dates.
  The same reducer serves customer churn, license churn, monthly and annual
  cohorts. Only the acceptance predicate and marker dates vary.

MARKERS:
  PreviouslyActiveMarker: usually the day before the reporting period
  CurrentlyActiveMarker:  usually the last day of the reporting period

RENEWAL CARVE-OUT:
  A renewal whose validity starts after the current marker still proves the
  customer did not churn. Such an observation counts as active when its
  validity ends after the current marker, even though the marker itself is
  not inside the validity.

  Marker:            Feb 5
  Old license:       [Jan 10, Jan 31]
  Renewal (explicit):[Feb 10, Mar 09]   → still active as of Feb 5

UNACCEPTED VALUES:
  Observations that fail the acceptance predicate (free licenses, other
  subscription types) never make an identifier "previously active", but
  being active with one of them still prevents the identifier from being
  counted as churned.
*/
package generic

// =============================================================================
// CHURN RESULT
// =============================================================================

// ChurnResult is the outcome of one churn computation.
type ChurnResult struct {
	PreviouslyActiveMarker Date    `json:"previouslyActiveMarker"`
	CurrentlyActiveMarker  Date    `json:"currentlyActiveMarker"`
	PreviousPeriodCount    int     `json:"previousPeriodCount"`
	ActiveCount            int     `json:"activeCount"`
	ChurnedCount           int     `json:"churnedCount"`
	ChurnRate              float64 `json:"churnRate"`
}

// =============================================================================
// CHURN PROCESSOR
// =============================================================================

// ChurnProcessor accumulates observations for identifiers of type T.
// It is not safe for concurrent use; each report owns its processors.
type ChurnProcessor[T comparable] struct {
	previouslyActiveMarker Date
	currentlyActiveMarker  Date

	previousPeriodItems   map[T]struct{}
	activeItems           map[T]struct{}
	activeUnacceptedItems map[T]struct{}
}

func NewChurnProcessor[T comparable](previouslyActiveMarker, currentlyActiveMarker Date) *ChurnProcessor[T] {
	return &ChurnProcessor[T]{
		previouslyActiveMarker: previouslyActiveMarker,
		currentlyActiveMarker:  currentlyActiveMarker,
		previousPeriodItems:    make(map[T]struct{}),
		activeItems:            make(map[T]struct{}),
		activeUnacceptedItems:  make(map[T]struct{}),
	}
}

func (p *ChurnProcessor[T]) PreviouslyActiveMarker() Date { return p.previouslyActiveMarker }
func (p *ChurnProcessor[T]) CurrentlyActiveMarker() Date  { return p.currentlyActiveMarker }

// ProcessValue records one observation of id valid during validity.
func (p *ChurnProcessor[T]) ProcessValue(id T, validity DateRange, accepted, explicitRenewal bool) {
	if accepted && validity.Contains(p.previouslyActiveMarker) {
		p.previousPeriodItems[id] = struct{}{}
	}

	active := validity.Contains(p.currentlyActiveMarker) ||
		(explicitRenewal && validity.End.After(p.currentlyActiveMarker))
	if !active {
		return
	}
	if accepted {
		p.activeItems[id] = struct{}{}
	} else {
		p.activeUnacceptedItems[id] = struct{}{}
	}
}

// IsActive reports whether id has been seen active, accepted or not.
func (p *ChurnProcessor[T]) IsActive(id T) bool {
	_, ok := p.activeItems[id]
	if !ok {
		_, ok = p.activeUnacceptedItems[id]
	}
	return ok
}

// Churned returns the identifiers active before the period and no longer
// active at its end, in no particular order.
func (p *ChurnProcessor[T]) Churned() []T {
	var churned []T
	for id := range p.previousPeriodItems {
		if !p.IsActive(id) {
			churned = append(churned, id)
		}
	}
	return churned
}

// Result computes the churn counts. The churn rate is 0 when nothing was
// active before the period.
func (p *ChurnProcessor[T]) Result() ChurnResult {
	churned := len(p.Churned())
	previous := len(p.previousPeriodItems)

	rate := 0.0
	if previous > 0 {
		rate = float64(churned) / float64(previous)
	}

	return ChurnResult{
		PreviouslyActiveMarker: p.previouslyActiveMarker,
		CurrentlyActiveMarker:  p.currentlyActiveMarker,
		PreviousPeriodCount:    previous,
		ActiveCount:            len(p.activeItems),
		ChurnedCount:           churned,
		ChurnRate:              rate,
	}
}
