/*
errors.go - Centralized error types for the analytics engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Precondition violations - programming errors in the input records
     (empty license list, mismatched currencies, negative amounts)
  2. Recoverable lookups - missing price or exchange rate
  3. Input parsing - malformed dates and ranges

USAGE:
  if errors.Is(err, generic.ErrCurrencyMismatch) {
      ...
  }

SEE ALSO:
  - split.go: Uses ErrNegativeAmount
  - marketplace/licenses.go: Wraps ErrNoLicenseIDs
  - currency/cache.go: Wraps ErrRateNotFound
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCurrencyMismatch is returned when two amounts of different
	// currencies are combined.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrNoLicenseIDs is returned for a line item that references no license.
	ErrNoLicenseIDs = errors.New("line item has no license ids")

	// ErrNegativeAmount is returned where a non-negative amount is required.
	ErrNegativeAmount = errors.New("negative amount")

	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrInvalidDate is returned for a date not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")

	// ErrPriceUnknown is returned when no list price exists for a
	// subscription period and customer type.
	ErrPriceUnknown = errors.New("price unknown")

	// ErrRateNotFound is returned when no exchange rate can be resolved.
	ErrRateNotFound = errors.New("exchange rate not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CurrencyMismatchError reports the two currencies of a failed operation.
type CurrencyMismatchError struct {
	Op    string
	Left  Currency
	Right Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: cannot %s %s and %s", e.Op, e.Left, e.Right)
}

func (e *CurrencyMismatchError) Unwrap() error {
	return ErrCurrencyMismatch
}

// PreconditionError describes a malformed input record.
type PreconditionError struct {
	Ref    string // reference of the offending record, e.g. sale ref
	Reason error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violated for %s: %v", e.Ref, e.Reason)
}

func (e *PreconditionError) Unwrap() error {
	return e.Reason
}

// RateError reports a failed exchange rate lookup.
type RateError struct {
	Date Date
	From Currency
	To   Currency
	Err  error
}

func (e *RateError) Error() string {
	return fmt.Sprintf("convert %s to %s on %s: %v", e.From, e.To, e.Date, e.Err)
}

func (e *RateError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrNoLicenseIDs) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidDate)
}

// IsNotFound returns true if the error indicates a missing price or rate.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPriceUnknown) ||
		errors.Is(err, ErrRateNotFound)
}
