/*
Package settlement provides the core financial settlement engine.

PURPOSE:
  This package contains the pure calculation core for the rental marketplace:
  tax resolution, commission-tier resolution, and the per-booking financial
  breakdown that splits a guest's payment into platform revenue and host
  payout. It also defines the external entities the engine reads and writes
  (bookings, hosts, payouts, audit entries) and the store interfaces that
  bound it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Booking: external booking record carrying raw inputs and the three
    persisted derived fields (service fee, taxes, total amount)
  - RentalHost: host record with aggregate payout counters
  - RentalPayout: one ledger row per settled booking (idempotency key:
    booking ID)
  - Money helpers: 2-decimal rounding and cent-tolerance comparison

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for every currency value - never float64
  2. Purity: The calculator never touches a store; it is deterministic
     given its Settings
  3. Type Safety: Strong ID types prevent mixing booking/host/payout IDs
  4. Auditability: Every mutation the batch subsystem makes is paired with
     an append-only audit entry

SEE ALSO:
  - settings.go: PlatformFinancialSettings (injected, never global)
  - calculator.go: BookingFinancials computation
  - store.go: Boundary interfaces to the external persistence layer
*/
package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BookingID string
type HostID string
type PayoutID string

// =============================================================================
// MONEY HELPERS
// =============================================================================

// centTolerance is the maximum absolute difference under which two stored
// currency values are considered equal. Backfill comparisons use this so a
// historical value off by a sub-cent representation quirk is not "drift".
var centTolerance = decimal.NewFromFloat(0.01)

// Round2 rounds a currency value to 2 decimal places (half away from zero).
// Every intermediate step of a settlement computation is rounded this way.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MoneyEqual reports whether two currency values agree within one cent.
func MoneyEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(centTolerance)
}

// MustMoney parses a decimal string, returning zero on malformed input.
// Intended for settings literals and test fixtures, not untrusted data.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// BOOKING - External entity (read, and partially written back)
// =============================================================================

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingActive    BookingStatus = "ACTIVE"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Booking is the external booking record. The engine reads the raw inputs
// (base rental, fees, duration, location, host) and owns exactly three
// derived fields on it: ServiceFee, Taxes, TotalAmount. Those must equal the
// calculator's output within one cent; the backfill subsystem enforces that.
type Booking struct {
	ID            BookingID
	HostID        HostID
	Status        BookingStatus
	PaymentStatus PaymentStatus

	// Raw inputs to settlement.
	BaseRental    decimal.Decimal // a.k.a. subtotal: daily rate x days
	DeliveryFee   decimal.Decimal
	InsuranceFee  decimal.Decimal
	InsuranceType InsuranceType
	NumberOfDays  int
	City          string
	State         string

	TripStart time.Time
	TripEnd   time.Time

	// Derived fields persisted on the booking record.
	ServiceFee  decimal.Decimal
	Taxes       decimal.Decimal
	TotalAmount decimal.Decimal

	CreatedAt time.Time
}

// InsuranceType selects a daily insurance rate from settings.
type InsuranceType string

const (
	InsuranceNone    InsuranceType = "none"
	InsuranceBasic   InsuranceType = "basic"
	InsurancePremium InsuranceType = "premium"
)

// =============================================================================
// RENTAL HOST - External entity with aggregate counters
// =============================================================================

// RentalHost carries the aggregate payout counters this engine maintains.
//
// INVARIANT: TotalPayoutsAmount/TotalPayoutsCount must equal the sum/count of
// the host's payout ledger rows, and TotalTrips the count of settled
// bookings. The reconciler exists to restore this invariant when it drifts.
type RentalHost struct {
	ID        HostID
	Name      string
	FleetSize int // active managed vehicle count

	TotalPayoutsAmount decimal.Decimal
	TotalPayoutsCount  int
	TotalTrips         int
}

// =============================================================================
// RENTAL PAYOUT - Ledger row owned by this engine
// =============================================================================

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutPaid      PayoutStatus = "PAID"
	PayoutCompleted PayoutStatus = "COMPLETED"
)

// RentalPayout is one row per completed+paid booking. Existence of a row for
// a booking is the idempotency key: the synthesizer never creates a second
// row for the same booking, and this engine never deletes rows.
type RentalPayout struct {
	ID        PayoutID
	BookingID BookingID // unique
	HostID    HostID

	GrossEarnings decimal.Decimal
	PlatformFee   decimal.Decimal
	ProcessingFee decimal.Decimal
	NetPayout     decimal.Decimal
	Amount        decimal.Decimal // disbursed amount, mirrors NetPayout

	Status      PayoutStatus
	EligibleAt  time.Time // trip end + payout hold window
	ProcessedAt *time.Time

	CreatedAt time.Time
}

// =============================================================================
// AUDIT ENTRY - Append-only record of every mutating batch action
// =============================================================================

type AuditAction string

const (
	AuditBookingFinancialsCorrected AuditAction = "booking_financials_corrected"
	AuditPayoutCreated              AuditAction = "payout_created"
	AuditPayoutRecalculated         AuditAction = "payout_recalculated"
	AuditHostTotalsSynced           AuditAction = "host_totals_synced"
	AuditHostTotalsRecalculated     AuditAction = "host_totals_recalculated"
)

// AuditEntry documents one mutation with before/after values in Metadata.
// Entries are written in the same transactional scope as the mutation they
// document, so a crash cannot leave an un-audited write.
type AuditEntry struct {
	ID         string
	EntityType string // "booking", "rental_payout", "rental_host"
	EntityID   string
	Action     AuditAction
	Metadata   map[string]any
	CreatedAt  time.Time
}
