/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the settlement boundary interfaces (BookingStore, HostStore,
  PayoutStore, AuditLog) plus TxStore using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

MONEY REPRESENTATION:
  All currency columns are INTEGER cents, converted to decimal.Decimal at the
  boundary. Integer cents make the counter increments and ledger sums exact
  in SQL; no floating point ever touches a money value.

KEY TABLES:
  bookings:       External booking records (raw inputs + derived fields)
  rental_hosts:   Host records with aggregate payout counters
  rental_payouts: Payout ledger, one row per settled booking
  audit_log:      Append-only record of every mutating batch action

IDEMPOTENCY:
  A unique index on rental_payouts(booking_id) enforces at-most-one-payout-
  per-booking at the database level, backstopping the application-level
  existence check.

COUNTER ATOMICITY:
  Counter increments and overwrites are single UPDATE statements - the
  read-modify-write happens inside SQLite, never in application code.

TRANSACTIONS:
  WithTx exposes the database transaction to callers so a record's financial
  update and its audit entry commit or roll back together.

WAL MODE:
  Opened with WAL (Write-Ahead Logging): readers don't block, single writer,
  better crash recovery.

USAGE:
  store, err := sqlite.New("./data/settlement.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - settlement/store.go: Interface definitions
  - settlement/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/driveway/settlement-engine/settlement"
)

// Store implements settlement.TxStore using SQLite.
type Store struct {
	db *sql.DB
	queries
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, queries: queries{db: db}}
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

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(settlement.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- External booking records. The engine owns exactly three derived
	-- columns: service_fee_cents, taxes_cents, total_amount_cents.
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		host_id TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		base_rental_cents INTEGER NOT NULL,
		delivery_fee_cents INTEGER NOT NULL DEFAULT 0,
		insurance_fee_cents INTEGER NOT NULL DEFAULT 0,
		insurance_type TEXT NOT NULL DEFAULT 'none',
		number_of_days INTEGER NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		trip_start TEXT NOT NULL,
		trip_end TEXT NOT NULL,
		service_fee_cents INTEGER NOT NULL DEFAULT 0,
		taxes_cents INTEGER NOT NULL DEFAULT 0,
		total_amount_cents INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_status
		ON bookings(status, payment_status);
	CREATE INDEX IF NOT EXISTS idx_bookings_host
		ON bookings(host_id);
	-- Pagination hot path: deterministic order by trip end, then id.
	CREATE INDEX IF NOT EXISTS idx_bookings_trip_end
		ON bookings(trip_end, id);

	-- Host records with aggregate payout counters.
	CREATE TABLE IF NOT EXISTS rental_hosts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		fleet_size INTEGER NOT NULL DEFAULT 0,
		total_payouts_amount_cents INTEGER NOT NULL DEFAULT 0,
		total_payouts_count INTEGER NOT NULL DEFAULT 0,
		total_trips INTEGER NOT NULL DEFAULT 0
	);

	-- Payout ledger. Rows are inserted once and updated only by explicit
	-- recalculation; this engine never deletes them.
	CREATE TABLE IF NOT EXISTS rental_payouts (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		host_id TEXT NOT NULL,
		gross_earnings_cents INTEGER NOT NULL,
		platform_fee_cents INTEGER NOT NULL,
		processing_fee_cents INTEGER NOT NULL,
		net_payout_cents INTEGER NOT NULL,
		amount_cents INTEGER NOT NULL,
		status TEXT NOT NULL,
		eligible_at TEXT NOT NULL,
		processed_at TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one payout per booking, enforced by the database.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payouts_booking
		ON rental_payouts(booking_id);
	CREATE INDEX IF NOT EXISTS idx_payouts_host_status
		ON rental_payouts(host_id, status);

	-- Append-only audit log. No UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_log(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_created
		ON audit_log(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SEED HELPERS (tests, demo fixtures, external loaders)
// =============================================================================

// PutBooking inserts or replaces a booking record.
func (s *Store) PutBooking(ctx context.Context, b settlement.Booking) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bookings
		(id, host_id, status, payment_status, base_rental_cents, delivery_fee_cents,
		 insurance_fee_cents, insurance_type, number_of_days, city, state,
		 trip_start, trip_end, service_fee_cents, taxes_cents, total_amount_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(b.ID), string(b.HostID), string(b.Status), string(b.PaymentStatus),
		toCents(b.BaseRental), toCents(b.DeliveryFee), toCents(b.InsuranceFee),
		string(b.InsuranceType), b.NumberOfDays, b.City, b.State,
		formatTime(b.TripStart), formatTime(b.TripEnd),
		toCents(b.ServiceFee), toCents(b.Taxes), toCents(b.TotalAmount),
		formatTime(orNow(b.CreatedAt)))
	return err
}

// PutHost inserts or replaces a host record.
func (s *Store) PutHost(ctx context.Context, h settlement.RentalHost) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO rental_hosts
		(id, name, fleet_size, total_payouts_amount_cents, total_payouts_count, total_trips)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(h.ID), h.Name, h.FleetSize, toCents(h.TotalPayoutsAmount), h.TotalPayoutsCount, h.TotalTrips)
	return err
}

// GetBooking loads a single booking by ID.
func (s *Store) GetBooking(ctx context.Context, id settlement.BookingID) (*settlement.Booking, error) {
	rows, err := s.db.QueryContext(ctx, selectBookings+` WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, settlement.ErrBookingNotFound
	}
	b, err := scanBooking(rows)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// =============================================================================
// QUERIES - settlement.Store implementation (works on *sql.DB or *sql.Tx)
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

const selectBookings = `
	SELECT id, host_id, status, payment_status, base_rental_cents,
	       delivery_fee_cents, insurance_fee_cents, insurance_type,
	       number_of_days, city, state, trip_start, trip_end,
	       service_fee_cents, taxes_cents, total_amount_cents, created_at
	FROM bookings`

func (q queries) QueryBookings(ctx context.Context, filter settlement.BookingFilter, skip, take int) ([]settlement.Booking, error) {
	var conds []string
	var args []any
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.PaymentStatus != nil {
		conds = append(conds, "payment_status = ?")
		args = append(args, string(*filter.PaymentStatus))
	}
	if filter.HostID != nil {
		conds = append(conds, "host_id = ?")
		args = append(args, string(*filter.HostID))
	}
	if filter.StartDate != nil {
		conds = append(conds, "trip_end >= ?")
		args = append(args, formatTime(*filter.StartDate))
	}
	if filter.EndDate != nil {
		conds = append(conds, "trip_end <= ?")
		args = append(args, formatTime(*filter.EndDate))
	}

	query := selectBookings
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY trip_end, id"
	if take <= 0 {
		take = -1 // SQLite: no limit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, take, skip)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []settlement.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (q queries) UpdateBookingFinancials(ctx context.Context, id settlement.BookingID, fields settlement.BookingFinancialFields) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE bookings
		SET service_fee_cents = ?, taxes_cents = ?, total_amount_cents = ?
		WHERE id = ?`,
		toCents(fields.ServiceFee), toCents(fields.Taxes), toCents(fields.TotalAmount), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return settlement.ErrBookingNotFound
	}
	return nil
}

func (q queries) GetHost(ctx context.Context, id settlement.HostID) (*settlement.RentalHost, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, fleet_size, total_payouts_amount_cents, total_payouts_count, total_trips
		FROM rental_hosts WHERE id = ?`, string(id))

	var h settlement.RentalHost
	var hostID string
	var amountCents int64
	err := row.Scan(&hostID, &h.Name, &h.FleetSize, &amountCents, &h.TotalPayoutsCount, &h.TotalTrips)
	if err == sql.ErrNoRows {
		return nil, settlement.ErrHostNotFound
	}
	if err != nil {
		return nil, err
	}
	h.ID = settlement.HostID(hostID)
	h.TotalPayoutsAmount = fromCents(amountCents)
	return &h, nil
}

func (q queries) GetHostFleetSize(ctx context.Context, id settlement.HostID) (int, error) {
	var fleetSize int
	err := q.db.QueryRowContext(ctx,
		`SELECT fleet_size FROM rental_hosts WHERE id = ?`, string(id)).Scan(&fleetSize)
	if err == sql.ErrNoRows {
		return 0, settlement.ErrHostNotFound
	}
	if err != nil {
		return 0, err
	}
	return fleetSize, nil
}

// IncrementHostPayoutCounters adds the delta in a single UPDATE; the
// read-modify-write happens inside the database.
func (q queries) IncrementHostPayoutCounters(ctx context.Context, id settlement.HostID, delta settlement.CounterDelta) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE rental_hosts
		SET total_payouts_amount_cents = total_payouts_amount_cents + ?,
		    total_payouts_count = total_payouts_count + ?,
		    total_trips = total_trips + ?
		WHERE id = ?`,
		toCents(delta.Amount), delta.Count, delta.Trips, string(id))
	if err != nil {
		return err
	}
	return requireRow(res, settlement.ErrHostNotFound)
}

func (q queries) OverwriteHostPayoutCounters(ctx context.Context, id settlement.HostID, totals settlement.CounterTotals) error {
	var res sql.Result
	var err error
	if totals.Trips != nil {
		res, err = q.db.ExecContext(ctx, `
			UPDATE rental_hosts
			SET total_payouts_amount_cents = ?, total_payouts_count = ?, total_trips = ?
			WHERE id = ?`,
			toCents(totals.Amount), totals.Count, *totals.Trips, string(id))
	} else {
		res, err = q.db.ExecContext(ctx, `
			UPDATE rental_hosts
			SET total_payouts_amount_cents = ?, total_payouts_count = ?
			WHERE id = ?`,
			toCents(totals.Amount), totals.Count, string(id))
	}
	if err != nil {
		return err
	}
	return requireRow(res, settlement.ErrHostNotFound)
}

func (q queries) ListHostIDs(ctx context.Context) ([]settlement.HostID, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM rental_hosts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []settlement.HostID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, settlement.HostID(id))
	}
	return ids, rows.Err()
}

func (q queries) PayoutExistsForBooking(ctx context.Context, bookingID settlement.BookingID) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		`SELECT 1 FROM rental_payouts WHERE booking_id = ?`, string(bookingID)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (q queries) InsertPayout(ctx context.Context, p settlement.RentalPayout) error {
	var processedAt any
	if p.ProcessedAt != nil {
		processedAt = formatTime(*p.ProcessedAt)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO rental_payouts
		(id, booking_id, host_id, gross_earnings_cents, platform_fee_cents,
		 processing_fee_cents, net_payout_cents, amount_cents, status,
		 eligible_at, processed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.BookingID), string(p.HostID),
		toCents(p.GrossEarnings), toCents(p.PlatformFee), toCents(p.ProcessingFee),
		toCents(p.NetPayout), toCents(p.Amount), string(p.Status),
		formatTime(p.EligibleAt), processedAt, formatTime(orNow(p.CreatedAt)))
	if isUniqueViolation(err) {
		existing, lookupErr := q.GetPayoutByBooking(ctx, p.BookingID)
		if lookupErr == nil {
			return &settlement.DuplicatePayoutError{BookingID: p.BookingID, PayoutID: existing.ID}
		}
		return &settlement.DuplicatePayoutError{BookingID: p.BookingID}
	}
	return err
}

func (q queries) GetPayoutByBooking(ctx context.Context, bookingID settlement.BookingID) (*settlement.RentalPayout, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, booking_id, host_id, gross_earnings_cents, platform_fee_cents,
		       processing_fee_cents, net_payout_cents, amount_cents, status,
		       eligible_at, processed_at, created_at
		FROM rental_payouts WHERE booking_id = ?`, string(bookingID))

	var p settlement.RentalPayout
	var id, bID, hID, status, eligibleAt, createdAt string
	var processedAt sql.NullString
	var gross, fee, processing, net, amount int64
	err := row.Scan(&id, &bID, &hID, &gross, &fee, &processing, &net, &amount,
		&status, &eligibleAt, &processedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, settlement.ErrPayoutNotFound
	}
	if err != nil {
		return nil, err
	}

	p.ID = settlement.PayoutID(id)
	p.BookingID = settlement.BookingID(bID)
	p.HostID = settlement.HostID(hID)
	p.GrossEarnings = fromCents(gross)
	p.PlatformFee = fromCents(fee)
	p.ProcessingFee = fromCents(processing)
	p.NetPayout = fromCents(net)
	p.Amount = fromCents(amount)
	p.Status = settlement.PayoutStatus(status)
	if p.EligibleAt, err = parseTime(eligibleAt); err != nil {
		return nil, err
	}
	if processedAt.Valid {
		t, err := parseTime(processedAt.String)
		if err != nil {
			return nil, err
		}
		p.ProcessedAt = &t
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q queries) UpdatePayout(ctx context.Context, id settlement.PayoutID, update settlement.PayoutUpdate) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE rental_payouts
		SET gross_earnings_cents = ?, platform_fee_cents = ?,
		    processing_fee_cents = ?, net_payout_cents = ?, amount_cents = ?
		WHERE id = ?`,
		toCents(update.GrossEarnings), toCents(update.PlatformFee),
		toCents(update.ProcessingFee), toCents(update.NetPayout),
		toCents(update.Amount), string(id))
	if err != nil {
		return err
	}
	return requireRow(res, settlement.ErrPayoutNotFound)
}

func (q queries) GroupPayoutsByHost(ctx context.Context, statuses []settlement.PayoutStatus) ([]settlement.HostPayoutGroup, error) {
	query := `SELECT host_id, SUM(net_payout_cents), COUNT(*) FROM rental_payouts`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " GROUP BY host_id ORDER BY host_id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []settlement.HostPayoutGroup
	for rows.Next() {
		var hostID string
		var sumCents int64
		var count int
		if err := rows.Scan(&hostID, &sumCents, &count); err != nil {
			return nil, err
		}
		groups = append(groups, settlement.HostPayoutGroup{
			HostID: settlement.HostID(hostID),
			Sum:    fromCents(sumCents),
			Count:  count,
		})
	}
	return groups, rows.Err()
}

func (q queries) AppendAuditLog(ctx context.Context, entry settlement.AuditEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EntityType, entry.EntityID, string(entry.Action),
		string(metadata), formatTime(orNow(entry.CreatedAt)))
	return err
}

func (q queries) QueryAuditLog(ctx context.Context, filter settlement.AuditFilter) ([]settlement.AuditEntry, error) {
	query := `SELECT id, entity_type, entity_id, action, metadata_json, created_at FROM audit_log`
	var conds []string
	var args []any
	if filter.EntityType != nil {
		conds = append(conds, "entity_type = ?")
		args = append(args, *filter.EntityType)
	}
	if filter.EntityID != nil {
		conds = append(conds, "entity_id = ?")
		args = append(args, *filter.EntityID)
	}
	if filter.Action != nil {
		conds = append(conds, "action = ?")
		args = append(args, string(*filter.Action))
	}
	if filter.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, formatTime(*filter.To))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []settlement.AuditEntry
	for rows.Next() {
		var e settlement.AuditEntry
		var action, metadata, createdAt string
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &action, &metadata, &createdAt); err != nil {
			return nil, err
		}
		e.Action = settlement.AuditAction(action)
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// SCAN / CONVERSION HELPERS
// =============================================================================

func scanBooking(rows *sql.Rows) (settlement.Booking, error) {
	var b settlement.Booking
	var id, hostID, status, paymentStatus, insuranceType, tripStart, tripEnd, createdAt string
	var baseRental, deliveryFee, insuranceFee, serviceFee, taxes, totalAmount int64

	err := rows.Scan(&id, &hostID, &status, &paymentStatus, &baseRental,
		&deliveryFee, &insuranceFee, &insuranceType, &b.NumberOfDays,
		&b.City, &b.State, &tripStart, &tripEnd,
		&serviceFee, &taxes, &totalAmount, &createdAt)
	if err != nil {
		return b, err
	}

	b.ID = settlement.BookingID(id)
	b.HostID = settlement.HostID(hostID)
	b.Status = settlement.BookingStatus(status)
	b.PaymentStatus = settlement.PaymentStatus(paymentStatus)
	b.InsuranceType = settlement.InsuranceType(insuranceType)
	b.BaseRental = fromCents(baseRental)
	b.DeliveryFee = fromCents(deliveryFee)
	b.InsuranceFee = fromCents(insuranceFee)
	b.ServiceFee = fromCents(serviceFee)
	b.Taxes = fromCents(taxes)
	b.TotalAmount = fromCents(totalAmount)
	if b.TripStart, err = parseTime(tripStart); err != nil {
		return b, err
	}
	if b.TripEnd, err = parseTime(tripEnd); err != nil {
		return b, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return b, err
	}
	return b, nil
}

func toCents(d decimal.Decimal) int64 {
	return d.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
