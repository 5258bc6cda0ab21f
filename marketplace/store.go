/*
store.go - Persistence interface for ingested marketplace records

PURPOSE:
  Defines the interface between the analytics and the database that keeps
  the sales and trials fetched from the marketplace API.

APPEND-ONLY CONTRACT:
  Sales are immutable once ingested:
  - SaveSales(): Inserts sales not seen before
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  The sale reference is the idempotency key. Saving a sale whose reference
  already exists is a no-op, so the same API page can be ingested twice.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - marketplace/store/memory.go: In-memory for testing

SEE ALSO:
  - licenses.go: Derives licenses from stored sales
*/
package marketplace

import (
	"context"

	"github.com/warp/marketplace-stats/generic"
)

// SaleStore persists sales and trials.
type SaleStore interface {
	// SaveSales inserts sales whose Ref is new and returns how many were
	// inserted.
	SaveSales(ctx context.Context, sales []Sale) (int, error)

	// Sales returns the sales dated within r, or all sales when r is nil,
	// ordered by date then reference.
	Sales(ctx context.Context, r *generic.DateRange) ([]Sale, error)

	// SaveTrials inserts trials whose ReferenceID is new.
	SaveTrials(ctx context.Context, trials []Trial) (int, error)

	// Trials returns the trials dated within r, or all trials when r is nil.
	Trials(ctx context.Context, r *generic.DateRange) ([]Trial, error)
}
