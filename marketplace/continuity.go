/*
continuity.go - Continuity discount tier tracking

PURPOSE:
  The marketplace grants a growing renewal discount the longer a customer
  keeps renewing the same subscription. The tier depends on total tenure,
  measured from the original (non-renewal) purchase of the lineage, not on
  the time since the most recent renewal.

TIERS:
  tenure < 12 months   FirstYear   (0%)
  tenure ≥ 12 months   SecondYear  (20%)
  tenure ≥ 24 months   ThirdYear   (40%)

EXAMPLE:
  New monthly license [2024-06-01, 2024-06-30]
  NextContinuity(id, 2025-05-30) → FirstYear   (11 months)
  NextContinuity(id, 2025-06-30) → SecondYear  (12 months)
  NextContinuity(id, 2026-06-30) → ThirdYear   (24 months)
*/
package marketplace

import (
	"sort"

	"github.com/warp/marketplace-stats/generic"
)

// ContinuityTracker indexes new subscription licenses by license ID.
// It is not safe for concurrent use.
type ContinuityTracker struct {
	newLicenses map[string][]License // ordered by validity
}

func NewContinuityTracker() *ContinuityTracker {
	return &ContinuityTracker{newLicenses: make(map[string][]License)}
}

// Process records l if it is a new subscription license. Everything else is
// ignored.
func (t *ContinuityTracker) Process(l License) {
	if !l.IsNewLicense() || !l.IsSubscriptionLicense() {
		return
	}
	entries := t.newLicenses[l.ID]
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Validity.Compare(*l.Validity) > 0
	})
	entries = append(entries, License{})
	copy(entries[i+1:], entries[i:])
	entries[i] = l
	t.newLicenses[l.ID] = entries
}

// NextContinuity returns the tier that applies when licenseID renews at at.
// Tenure is counted from the start of the latest new license that ended
// before at. Without such a license the subscription is in its first year.
func (t *ContinuityTracker) NextContinuity(licenseID string, at generic.Date) ContinuityDiscount {
	origin, ok := t.originBefore(licenseID, at)
	if !ok {
		return ContinuityFirstYear
	}

	months := generic.MonthsBetween(origin.Validity.Start, at)
	switch {
	case months >= 24:
		return ContinuityThirdYear
	case months >= 12:
		return ContinuitySecondYear
	default:
		return ContinuityFirstYear
	}
}

func (t *ContinuityTracker) originBefore(licenseID string, at generic.Date) (License, bool) {
	entries := t.newLicenses[licenseID]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Validity.End.Before(at) {
			return entries[i], true
		}
	}
	return License{}, false
}
