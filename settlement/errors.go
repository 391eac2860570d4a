/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The batch subsystem wraps these with per-record context.

ERROR CATEGORIES:
  1. Input errors - invalid booking inputs, unknown insurance types
  2. Lookup errors - missing bookings/hosts/payouts
  3. Store errors - duplicate payout rows, missing store capabilities

USAGE:
  if errors.Is(err, settlement.ErrDuplicatePayout) {
      // payout already synthesized for this booking; safe to skip
  }

SEE ALSO:
  - calculator.go: Returns input errors
  - store.go: Store implementations return lookup/duplicate errors
*/
package settlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidBookingInput is returned when booking inputs cannot be
	// settled (non-positive duration, negative amounts).
	ErrInvalidBookingInput = errors.New("invalid booking input")

	// ErrInvalidSettings is returned by Settings.Validate for a malformed
	// rate card.
	ErrInvalidSettings = errors.New("invalid financial settings")

	// ErrUnknownInsuranceType is returned when no daily rate is configured
	// for the requested insurance type.
	ErrUnknownInsuranceType = errors.New("unknown insurance type")

	// ErrBookingNotFound is returned when a referenced booking doesn't exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrHostNotFound is returned when a referenced host doesn't exist.
	ErrHostNotFound = errors.New("host not found")

	// ErrPayoutNotFound is returned when a referenced payout doesn't exist.
	ErrPayoutNotFound = errors.New("payout not found")

	// ErrDuplicatePayout is returned when inserting a payout for a booking
	// that already has one. This is expected behavior on re-runs.
	ErrDuplicatePayout = errors.New("payout already exists for booking")

	// ErrMissingHostData is returned instead of defaulting when
	// AllowDataDefaults is off and a booking's host or location is absent.
	ErrMissingHostData = errors.New("missing host or location data")

	// ErrStoreRequired is returned when an operation needs a capability the
	// configured store does not offer.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicatePayoutError identifies which booking already holds a payout row.
type DuplicatePayoutError struct {
	BookingID BookingID
	PayoutID  PayoutID
}

func (e *DuplicatePayoutError) Error() string {
	return fmt.Sprintf("payout already exists for booking %s (payout: %s)", e.BookingID, e.PayoutID)
}

func (e *DuplicatePayoutError) Unwrap() error {
	return ErrDuplicatePayout
}

// MissingDataError identifies what was absent on a record when defaulting is
// disabled.
type MissingDataError struct {
	BookingID BookingID
	Field     string // "host", "fleet_size", "location"
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("booking %s missing %s and data defaults are disabled", e.BookingID, e.Field)
}

func (e *MissingDataError) Unwrap() error {
	return ErrMissingHostData
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrHostNotFound) ||
		errors.Is(err, ErrPayoutNotFound)
}

// IsRecordError returns true for errors that should mark a single record as
// failed without aborting a batch run.
func IsRecordError(err error) bool {
	return errors.Is(err, ErrInvalidBookingInput) ||
		errors.Is(err, ErrUnknownInsuranceType) ||
		errors.Is(err, ErrMissingHostData) ||
		IsNotFound(err)
}
