/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Keeps the records fetched from the marketplace API so reports can be
  rebuilt without refetching, and keeps the historical exchange rates used
  for currency conversion.

INTERFACES IMPLEMENTED:
  marketplace.SaleStore: Sale and trial persistence
  currency.RateSource:   Historical exchange rates

APPEND-ONLY ENFORCEMENT:
  Sales and trials are never updated or deleted. The sale reference and
  trial reference are primary keys; re-ingesting a record is a no-op
  (INSERT OR IGNORE). Records are stored as their JSON payload plus the
  columns needed for range queries.

KEY TABLES:
  sales:          One row per sale, payload_json holds the full record
  trials:         One row per trial signup
  exchange_rates: (date, from, to) → rate

CONCURRENCY:
  Uses sync.RWMutex for thread-safety around multi-statement writes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so report reads do not
  block ingestion.

USAGE:
  store, err := sqlite.New("./data/marketplace.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - marketplace/store.go: Interface definition
  - marketplace/store/memory.go: In-memory implementation for testing
  - currency/converter.go: RateSource interface
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/marketplace-stats/currency"
	"github.com/warp/marketplace-stats/generic"
	"github.com/warp/marketplace-stats/marketplace"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ marketplace.SaleStore = (*Store)(nil)
	_ currency.RateSource   = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives as long as its connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Sales (append-only, keyed by marketplace reference)
	CREATE TABLE IF NOT EXISTS sales (
		ref TEXT PRIMARY KEY,
		sale_date TEXT NOT NULL,
		customer_code INTEGER NOT NULL,
		amount_usd TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sales_date
		ON sales(sale_date, ref);
	CREATE INDEX IF NOT EXISTS idx_sales_customer
		ON sales(customer_code);

	-- Trials (append-only, keyed by marketplace reference)
	CREATE TABLE IF NOT EXISTS trials (
		reference_id TEXT PRIMARY KEY,
		trial_date TEXT NOT NULL,
		customer_code INTEGER NOT NULL,
		payload_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trials_date
		ON trials(trial_date);

	-- Exchange rates: amount_to = amount_from * rate
	CREATE TABLE IF NOT EXISTS exchange_rates (
		rate_date TEXT NOT NULL,
		currency_from TEXT NOT NULL,
		currency_to TEXT NOT NULL,
		rate TEXT NOT NULL,
		PRIMARY KEY (currency_from, currency_to, rate_date)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SALES
// =============================================================================

// SaveSales inserts new sales in one transaction.
func (s *Store) SaveSales(ctx context.Context, sales []marketplace.Sale) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO sales (ref, sale_date, customer_code, amount_usd, payload_json)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, sale := range sales {
		payload, err := json.Marshal(sale)
		if err != nil {
			return 0, fmt.Errorf("failed to encode sale %s: %w", sale.Ref, err)
		}
		res, err := stmt.ExecContext(ctx, sale.Ref, sale.Date.String(), int64(sale.Customer.Code),
			sale.AmountUSD.Amount.String(), string(payload))
		if err != nil {
			return 0, fmt.Errorf("failed to insert sale %s: %w", sale.Ref, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Sales returns sales ordered by date and reference.
func (s *Store) Sales(ctx context.Context, r *generic.DateRange) ([]marketplace.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT payload_json FROM sales`
	var args []any
	if r != nil {
		query += ` WHERE sale_date >= ? AND sale_date <= ?`
		args = append(args, r.Start.String(), r.End.String())
	}
	query += ` ORDER BY sale_date, ref`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []marketplace.Sale
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sale marketplace.Sale
		if err := json.Unmarshal([]byte(payload), &sale); err != nil {
			return nil, fmt.Errorf("failed to decode sale: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// CountSales returns the number of stored sales.
func (s *Store) CountSales(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&n)
	return n, err
}

// =============================================================================
// TRIALS
// =============================================================================

func (s *Store) SaveTrials(ctx context.Context, trials []marketplace.Trial) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	for _, trial := range trials {
		payload, err := json.Marshal(trial)
		if err != nil {
			return 0, fmt.Errorf("failed to encode trial %s: %w", trial.ReferenceID, err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO trials (reference_id, trial_date, customer_code, payload_json)
			VALUES (?, ?, ?, ?)
		`, trial.ReferenceID, trial.Date.String(), int64(trial.Customer.Code), string(payload))
		if err != nil {
			return 0, fmt.Errorf("failed to insert trial %s: %w", trial.ReferenceID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) Trials(ctx context.Context, r *generic.DateRange) ([]marketplace.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT payload_json FROM trials`
	var args []any
	if r != nil {
		query += ` WHERE trial_date >= ? AND trial_date <= ?`
		args = append(args, r.Start.String(), r.End.String())
	}
	query += ` ORDER BY trial_date, reference_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trials []marketplace.Trial
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var trial marketplace.Trial
		if err := json.Unmarshal([]byte(payload), &trial); err != nil {
			return nil, fmt.Errorf("failed to decode trial: %w", err)
		}
		trials = append(trials, trial)
	}
	return trials, rows.Err()
}

// =============================================================================
// EXCHANGE RATES
// =============================================================================

// PutRate stores the from→to rate effective on date, replacing an earlier
// value for the same day.
func (s *Store) PutRate(ctx context.Context, date generic.Date, from, to generic.Currency, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (rate_date, currency_from, currency_to, rate)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(currency_from, currency_to, rate_date) DO UPDATE SET rate = excluded.rate
	`, date.String(), string(from), string(to), rate.String())
	return err
}

// Rate returns the most recent rate on or before date.
func (s *Store) Rate(ctx context.Context, date generic.Date, from, to generic.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT rate FROM exchange_rates
		WHERE currency_from = ? AND currency_to = ? AND rate_date <= ?
		ORDER BY rate_date DESC
		LIMIT 1
	`, string(from), string(to), date.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s→%s on %s", generic.ErrRateNotFound, from, to, date)
	}
	if err != nil {
		return decimal.Zero, err
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored rate %q: %w", raw, err)
	}
	return rate, nil
}
