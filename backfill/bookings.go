/*
bookings.go - Booking financials backfill (drift detection and correction)

PURPOSE:
  Re-derives serviceFee/taxes/totalAmount for existing bookings from their
  stored raw inputs and corrects any field that drifted more than one cent
  from the calculator's output.

ALGORITHM:
  1. Paginate bookings matching the optional date/host filters
  2. Recompute financials from stored subtotal, fees, location, fleet size
  3. Compare each derived field to the stored value ($0.01 tolerance)
  4. Drift + write mode: persist corrected fields and append one audit entry
     (same transaction when the store supports it)
  5. No drift: record skipped. Recompute failure: record error, continue.

IDEMPOTENCE:
  A second write-mode run over the same data reports updated = 0: every
  record's stored values now match the recomputation within tolerance.

MISSING DATA:
  Missing host or location falls back to configured defaults when
  AllowDataDefaults is on (logged per record); otherwise the record fails.

SEE ALSO:
  - settlement/calculator.go: The recomputation
  - payouts.go: The payout-row counterpart of this backfill
*/
package backfill

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/driveway/settlement-engine/settlement"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator recomputes and corrects persisted booking financial fields.
type Orchestrator struct {
	store settlement.Store
	calc  *settlement.Calculator
}

func NewOrchestrator(store settlement.Store, calc *settlement.Calculator) *Orchestrator {
	return &Orchestrator{store: store, calc: calc}
}

// BackfillBookings runs the drift-correction pass described in the file
// header. Batch-level store failures abort and propagate; per-record
// failures are isolated into the summary.
func (o *Orchestrator) BackfillBookings(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{DryRun: opts.DryRun}
	filter := opts.bookingFilter()
	batch := opts.batchSize()

	mode := "write"
	if opts.DryRun {
		mode = "dry-run"
	}
	log.Printf("[Backfill] Starting booking backfill (%s, batch=%d)", mode, batch)

	skip := 0
	for {
		page, err := o.store.QueryBookings(ctx, filter, skip, batch)
		if err != nil {
			return nil, fmt.Errorf("query bookings (skip=%d): %w", skip, err)
		}
		if len(page) == 0 {
			break
		}

		for _, booking := range page {
			if opts.Limit > 0 && summary.Processed >= opts.Limit {
				log.Printf("[Backfill] Record limit %d reached", opts.Limit)
				o.logCompletion(summary)
				return summary, nil
			}

			result := o.processBooking(ctx, booking, opts.DryRun)
			summary.Processed++
			summary.Results = append(summary.Results, result)

			switch result.Status {
			case StatusUpdated:
				summary.Updated++
				summary.Totals.add(result.Changes)
			case StatusSkipped:
				summary.Skipped++
			case StatusError:
				summary.Errors++
			}
		}

		skip += len(page)
		if len(page) < batch {
			break
		}
	}

	o.logCompletion(summary)
	return summary, nil
}

// Preview runs a dry-run capped at PreviewLimit records, regardless of what
// the caller set on Options.
func (o *Orchestrator) Preview(ctx context.Context, opts Options) (*Summary, error) {
	opts.DryRun = true
	if opts.Limit <= 0 || opts.Limit > PreviewLimit {
		opts.Limit = PreviewLimit
	}
	return o.BackfillBookings(ctx, opts)
}

func (o *Orchestrator) logCompletion(s *Summary) {
	log.Printf("[Backfill] Completed: %d processed, %d updated, %d skipped, %d errors",
		s.Processed, s.Updated, s.Skipped, s.Errors)
}

// =============================================================================
// PER-RECORD PROCESSING
// =============================================================================

func (o *Orchestrator) processBooking(ctx context.Context, booking settlement.Booking, dryRun bool) RecordResult {
	result := RecordResult{BookingID: booking.ID, HostID: booking.HostID}

	computed, err := o.recompute(ctx, booking)
	if err != nil {
		result.Status = StatusError
		result.Reason = err.Error()
		return result
	}

	changes := diffFinancials(booking, computed)
	if len(changes) == 0 {
		result.Status = StatusSkipped
		result.Reason = "values match within tolerance"
		return result
	}
	result.Changes = changes

	if dryRun {
		result.Status = StatusUpdated
		return result
	}

	if err := o.persistCorrection(ctx, booking, computed, changes); err != nil {
		result.Status = StatusError
		result.Reason = err.Error()
		result.Changes = nil
		return result
	}

	result.Status = StatusUpdated
	return result
}

// recompute settles the booking from its stored raw inputs, applying the
// missing-data policy for fleet size and location.
func (o *Orchestrator) recompute(ctx context.Context, booking settlement.Booking) (*settlement.BookingFinancials, error) {
	fleetSize, err := resolveFleetSize(ctx, o.store, o.calc.Settings(), booking, "[Backfill]")
	if err != nil {
		return nil, err
	}
	city, state, err := resolveLocation(o.calc.Settings(), booking, "[Backfill]")
	if err != nil {
		return nil, err
	}

	return o.calc.CalculateBookingFinancials(settlement.BookingInput{
		BaseRental:    booking.BaseRental,
		DeliveryFee:   booking.DeliveryFee,
		InsuranceFee:  booking.InsuranceFee,
		NumberOfDays:  booking.NumberOfDays,
		City:          city,
		State:         state,
		HostFleetSize: fleetSize,
	})
}

func diffFinancials(booking settlement.Booking, computed *settlement.BookingFinancials) []FieldChange {
	var changes []FieldChange
	if !settlement.MoneyEqual(booking.ServiceFee, computed.GuestServiceFee) {
		changes = append(changes, FieldChange{Field: FieldServiceFee, Before: booking.ServiceFee, After: computed.GuestServiceFee})
	}
	if !settlement.MoneyEqual(booking.Taxes, computed.TaxAmount) {
		changes = append(changes, FieldChange{Field: FieldTaxes, Before: booking.Taxes, After: computed.TaxAmount})
	}
	if !settlement.MoneyEqual(booking.TotalAmount, computed.GuestTotal) {
		changes = append(changes, FieldChange{Field: FieldTotalAmount, Before: booking.TotalAmount, After: computed.GuestTotal})
	}
	return changes
}

// persistCorrection writes the corrected fields and the audit entry, in one
// transaction when the store supports it.
func (o *Orchestrator) persistCorrection(ctx context.Context, booking settlement.Booking, computed *settlement.BookingFinancials, changes []FieldChange) error {
	fields := settlement.BookingFinancialFields{
		ServiceFee:  computed.GuestServiceFee,
		Taxes:       computed.TaxAmount,
		TotalAmount: computed.GuestTotal,
	}
	entry := correctionAuditEntry(booking, changes)

	write := func(s settlement.Store) error {
		if err := s.UpdateBookingFinancials(ctx, booking.ID, fields); err != nil {
			return err
		}
		return s.AppendAuditLog(ctx, entry)
	}

	if tx, ok := o.store.(settlement.TxStore); ok {
		return tx.WithTx(ctx, write)
	}
	return write(o.store)
}

func correctionAuditEntry(booking settlement.Booking, changes []FieldChange) settlement.AuditEntry {
	fields := make(map[string]any, len(changes))
	for _, c := range changes {
		fields[c.Field] = map[string]any{
			"before": c.Before.StringFixed(2),
			"after":  c.After.StringFixed(2),
		}
	}
	return settlement.AuditEntry{
		ID:         uuid.NewString(),
		EntityType: "booking",
		EntityID:   string(booking.ID),
		Action:     settlement.AuditBookingFinancialsCorrected,
		Metadata: map[string]any{
			"host_id": string(booking.HostID),
			"fields":  fields,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// =============================================================================
// MISSING-DATA POLICY (shared with payouts.go)
// =============================================================================

// resolveFleetSize returns the host's current fleet size, substituting the
// configured default when the host is missing or has no active vehicles.
// Substitutions are logged loudly; with defaults disabled they fail the
// record instead.
func resolveFleetSize(ctx context.Context, store settlement.HostStore, settings settlement.Settings, booking settlement.Booking, logPrefix string) (int, error) {
	if booking.HostID == "" {
		if !settings.AllowDataDefaults {
			return 0, &settlement.MissingDataError{BookingID: booking.ID, Field: "host"}
		}
		log.Printf("%s WARNING: booking %s has no host, defaulting fleet size to %d", logPrefix, booking.ID, settings.DefaultFleetSize)
		return settings.DefaultFleetSize, nil
	}

	fleetSize, err := store.GetHostFleetSize(ctx, booking.HostID)
	if err != nil {
		if settlement.IsNotFound(err) && settings.AllowDataDefaults {
			log.Printf("%s WARNING: host %s not found for booking %s, defaulting fleet size to %d",
				logPrefix, booking.HostID, booking.ID, settings.DefaultFleetSize)
			return settings.DefaultFleetSize, nil
		}
		return 0, err
	}
	if fleetSize <= 0 {
		if !settings.AllowDataDefaults {
			return 0, &settlement.MissingDataError{BookingID: booking.ID, Field: "fleet_size"}
		}
		log.Printf("%s WARNING: host %s has fleet size %d for booking %s, defaulting to %d",
			logPrefix, booking.HostID, fleetSize, booking.ID, settings.DefaultFleetSize)
		return settings.DefaultFleetSize, nil
	}
	return fleetSize, nil
}

// resolveLocation applies the location defaulting policy.
func resolveLocation(settings settlement.Settings, booking settlement.Booking, logPrefix string) (city, state string, err error) {
	city, state = booking.City, booking.State
	if city != "" && state != "" {
		return city, state, nil
	}
	if !settings.AllowDataDefaults {
		return "", "", &settlement.MissingDataError{BookingID: booking.ID, Field: "location"}
	}
	log.Printf("%s WARNING: booking %s missing location (%q, %q), defaulting to %s/%s",
		logPrefix, booking.ID, booking.City, booking.State, settings.DefaultCity, settings.DefaultState)
	if city == "" {
		city = settings.DefaultCity
	}
	if state == "" {
		state = settings.DefaultState
	}
	return city, state, nil
}
