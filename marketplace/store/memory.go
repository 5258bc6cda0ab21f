// Package store provides SaleStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	sales    []marketplace.Sale
	trials   []marketplace.Trial
	saleRefs map[string]bool
	trialIDs map[string]bool
}

var _ marketplace.SaleStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		saleRefs: make(map[string]bool),
		trialIDs: make(map[string]bool),
	}
}

// SaveSales inserts new sales in date order. Append-only.
func (m *Memory) SaveSales(_ context.Context, sales []marketplace.Sale) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, s := range sales {
		if m.saleRefs[s.Ref] {
			continue
		}
		i := sort.Search(len(m.sales), func(i int) bool {
			return saleLess(s, m.sales[i])
		})
		m.sales = append(m.sales, marketplace.Sale{})
		copy(m.sales[i+1:], m.sales[i:])
		m.sales[i] = s
		m.saleRefs[s.Ref] = true
		inserted++
	}
	return inserted, nil
}

func (m *Memory) Sales(_ context.Context, r *generic.DateRange) ([]marketplace.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]marketplace.Sale, 0, len(m.sales))
	for _, s := range m.sales {
		if r == nil || r.Contains(s.Date) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *Memory) SaveTrials(_ context.Context, trials []marketplace.Trial) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, t := range trials {
		if m.trialIDs[t.ReferenceID] {
			continue
		}
		m.trials = append(m.trials, t)
		m.trialIDs[t.ReferenceID] = true
		inserted++
	}
	sort.SliceStable(m.trials, func(i, j int) bool {
		return m.trials[i].Date.Before(m.trials[j].Date)
	})
	return inserted, nil
}

func (m *Memory) Trials(_ context.Context, r *generic.DateRange) ([]marketplace.Trial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []marketplace.Trial
	for _, t := range m.trials {
		if r == nil || r.Contains(t.Date) {
			result = append(result, t)
		}
	}
	return result, nil
}

func saleLess(a, b marketplace.Sale) bool {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c < 0
	}
	return a.Ref < b.Ref
}
