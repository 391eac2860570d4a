/*
store.go - Boundary interfaces to the external persistence layer

PURPOSE:
  The settlement engine treats the booking/host/payout store as an external
  service reached through these interfaces. Every query uses an explicit,
  strongly-typed filter or field struct - no loosely-shaped records cross the
  boundary.

KEY INTERFACES:
  BookingStore: Paginated booking reads + derived-field writeback
  HostStore:    Fleet-size reads, atomic counter increments and overwrites
  PayoutStore:  Payout ledger (insert-once per booking, explicit updates)
  AuditLog:     Append-only audit sink
  Store:        Union of the above
  TxStore:      Store plus WithTx for atomic write+audit pairs

COUNTER SEMANTICS:
  Host aggregate counters are mutated only through IncrementHostPayoutCounters
  (atomic add, used by payout synthesis) and OverwriteHostPayoutCounters
  (atomic set, used by reconciliation). There is no read-modify-write of
  counters in application code; lost-update safety depends on the store
  offering at least per-row atomic increments.

IMPLEMENTATIONS:
  - settlement/store: In-memory, for tests and dev
  - store/sqlite:     SQLite; PostgreSQL differs only in dialect

SEE ALSO:
  - backfill: The batch subsystem driving these interfaces
*/
package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUERY / WRITE SHAPES
// =============================================================================

// BookingFilter narrows a booking query. Nil fields match everything.
type BookingFilter struct {
	Status        *BookingStatus
	PaymentStatus *PaymentStatus
	HostID        *HostID
	StartDate     *time.Time // inclusive, on TripEnd
	EndDate       *time.Time // inclusive, on TripEnd
}

// BookingFinancialFields are the three derived fields the engine owns on a
// booking record.
type BookingFinancialFields struct {
	ServiceFee  decimal.Decimal
	Taxes       decimal.Decimal
	TotalAmount decimal.Decimal
}

// CounterDelta is an atomic increment applied to host aggregate counters.
type CounterDelta struct {
	Amount decimal.Decimal
	Count  int
	Trips  int
}

// CounterTotals is an absolute overwrite of host aggregate counters.
// Trips is optional: the ledger-sync strategy has no authoritative trip
// count, so it leaves TotalTrips untouched.
type CounterTotals struct {
	Amount decimal.Decimal
	Count  int
	Trips  *int
}

// PayoutUpdate rewrites the financial fields of an existing payout row.
type PayoutUpdate struct {
	GrossEarnings decimal.Decimal
	PlatformFee   decimal.Decimal
	ProcessingFee decimal.Decimal
	NetPayout     decimal.Decimal
	Amount        decimal.Decimal
}

// HostPayoutGroup is one host's aggregate over the payout ledger.
type HostPayoutGroup struct {
	HostID HostID
	Sum    decimal.Decimal // sum of NetPayout
	Count  int
}

// AuditFilter narrows an audit-log query. Nil fields match everything.
type AuditFilter struct {
	EntityType *string
	EntityID   *string
	Action     *AuditAction
	From       *time.Time
	To         *time.Time
	Limit      int // 0 = no limit
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type BookingStore interface {
	// QueryBookings returns a page of bookings matching the filter, ordered
	// by trip end then ID so pagination is deterministic.
	QueryBookings(ctx context.Context, filter BookingFilter, skip, take int) ([]Booking, error)

	// UpdateBookingFinancials persists the derived fields onto a booking.
	UpdateBookingFinancials(ctx context.Context, id BookingID, fields BookingFinancialFields) error
}

type HostStore interface {
	// GetHost returns the host record including aggregate counters.
	GetHost(ctx context.Context, id HostID) (*RentalHost, error)

	// GetHostFleetSize returns the host's active managed vehicle count.
	GetHostFleetSize(ctx context.Context, id HostID) (int, error)

	// IncrementHostPayoutCounters atomically adds the delta to the host's
	// aggregate counters.
	IncrementHostPayoutCounters(ctx context.Context, id HostID, delta CounterDelta) error

	// OverwriteHostPayoutCounters atomically sets the host's aggregate
	// counters to the given totals.
	OverwriteHostPayoutCounters(ctx context.Context, id HostID, totals CounterTotals) error

	// ListHostIDs returns all host IDs, for full-fleet reconciliation.
	ListHostIDs(ctx context.Context) ([]HostID, error)
}

type PayoutStore interface {
	// PayoutExistsForBooking is the idempotency guard for payout synthesis.
	PayoutExistsForBooking(ctx context.Context, bookingID BookingID) (bool, error)

	// InsertPayout creates a payout row. Returns ErrDuplicatePayout if the
	// booking already has one.
	InsertPayout(ctx context.Context, payout RentalPayout) error

	// GetPayoutByBooking returns the payout row for a booking, or
	// ErrPayoutNotFound.
	GetPayoutByBooking(ctx context.Context, bookingID BookingID) (*RentalPayout, error)

	// UpdatePayout rewrites the financial fields of an existing row.
	// Rows are never deleted by this engine.
	UpdatePayout(ctx context.Context, id PayoutID, update PayoutUpdate) error

	// GroupPayoutsByHost sums NetPayout and counts rows per host over rows
	// in the given statuses.
	GroupPayoutsByHost(ctx context.Context, statuses []PayoutStatus) ([]HostPayoutGroup, error)
}

type AuditLog interface {
	// AppendAuditLog records one mutation. Append-only: no update, no delete.
	AppendAuditLog(ctx context.Context, entry AuditEntry) error

	// QueryAuditLog returns entries matching the filter, newest first.
	QueryAuditLog(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// Store is the full persistence boundary the engine drives.
type Store interface {
	BookingStore
	HostStore
	PayoutStore
	AuditLog
}

// TxStore wraps Store with transaction support. Engines use it to commit a
// record's financial update and its audit entry in one scope, so a crash
// between the two cannot leave an un-audited mutation.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
