/*
payouts.go - Payout synthesis (at most one payout per booking)

PURPOSE:
  Creates missing RentalPayout ledger rows for bookings that are COMPLETED
  and PAID. The existence of a payout row for a booking is the idempotency
  key: a re-run skips every booking that already has one.

PAYOUT COMPUTATION:
  grossEarnings = booking subtotal
  platformFee   = round(gross x commission rate at current fleet size)
  processingFee = fixed fee from settings
  netPayout     = gross - platformFee - processingFee
  eligibleAt    = trip end + payout hold window (3 days)

  Historical trips (eligibility already passed) are simulated as settled:
  status COMPLETED with processedAt = eligibleAt. Future-eligible trips stay
  PENDING.

COUNTER UPDATES:
  Per-host totals (payout sum, payout count, trip count) accumulate in memory
  across the whole run and are applied as ONE atomic increment per host after
  all batches - not one counter write per booking.

SEE ALSO:
  - bookings.go: Shared missing-data policy
  - reconcile.go: Fixing counters and stale rows after the fact
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
// SYNTHESIZER
// =============================================================================

// Synthesizer creates missing payout ledger rows for settled bookings.
type Synthesizer struct {
	store settlement.Store
	calc  *settlement.Calculator
	now   func() time.Time
}

func NewSynthesizer(store settlement.Store, calc *settlement.Calculator) *Synthesizer {
	return &Synthesizer{store: store, calc: calc, now: time.Now}
}

// BackfillPayouts runs payout synthesis over completed+paid bookings.
func (s *Synthesizer) BackfillPayouts(ctx context.Context, opts Options) (*PayoutSummary, error) {
	summary := &PayoutSummary{DryRun: opts.DryRun}

	filter := opts.bookingFilter()
	completed := settlement.BookingCompleted
	paid := settlement.PaymentPaid
	filter.Status = &completed
	filter.PaymentStatus = &paid

	batch := opts.batchSize()
	mode := "write"
	if opts.DryRun {
		mode = "dry-run"
	}
	log.Printf("[Payouts] Starting payout backfill (%s, batch=%d)", mode, batch)

	// Per-host totals accumulate across the whole run; one increment per
	// host at the end instead of one counter write per booking.
	hostDeltas := make(map[settlement.HostID]*settlement.CounterDelta)

	skip := 0
	for {
		page, err := s.store.QueryBookings(ctx, filter, skip, batch)
		if err != nil {
			return nil, fmt.Errorf("query bookings (skip=%d): %w", skip, err)
		}
		if len(page) == 0 {
			break
		}

		for _, booking := range page {
			if opts.Limit > 0 && summary.Processed >= opts.Limit {
				break
			}

			result, payout := s.processBooking(ctx, booking, opts.DryRun)
			summary.Processed++
			summary.Results = append(summary.Results, result)

			switch result.Status {
			case StatusCreated:
				summary.PayoutsCreated++
				summary.TotalNetPayout = summary.TotalNetPayout.Add(payout.NetPayout)
				delta, ok := hostDeltas[payout.HostID]
				if !ok {
					delta = &settlement.CounterDelta{}
					hostDeltas[payout.HostID] = delta
				}
				delta.Amount = delta.Amount.Add(payout.NetPayout)
				delta.Count++
				delta.Trips++
			case StatusSkipped:
				summary.Skipped++
			case StatusError:
				summary.Errors++
			}
		}

		skip += len(page)
		if len(page) < batch || (opts.Limit > 0 && summary.Processed >= opts.Limit) {
			break
		}
	}

	if !opts.DryRun {
		for hostID, delta := range hostDeltas {
			if err := s.store.IncrementHostPayoutCounters(ctx, hostID, *delta); err != nil {
				log.Printf("[Payouts] ERROR: incrementing counters for host %s: %v", hostID, err)
				summary.Errors++
				continue
			}
			summary.HostsUpdated++
		}
	} else {
		summary.HostsUpdated = len(hostDeltas)
	}

	log.Printf("[Payouts] Completed: %d processed, %d created, %d skipped, %d errors, %d hosts updated",
		summary.Processed, summary.PayoutsCreated, summary.Skipped, summary.Errors, summary.HostsUpdated)
	return summary, nil
}

// =============================================================================
// PER-RECORD PROCESSING
// =============================================================================

func (s *Synthesizer) processBooking(ctx context.Context, booking settlement.Booking, dryRun bool) (RecordResult, *settlement.RentalPayout) {
	result := RecordResult{BookingID: booking.ID, HostID: booking.HostID}

	// Idempotency guard: never a second payout for the same booking.
	exists, err := s.store.PayoutExistsForBooking(ctx, booking.ID)
	if err != nil {
		result.Status = StatusError
		result.Reason = err.Error()
		return result, nil
	}
	if exists {
		result.Status = StatusSkipped
		result.Reason = "already exists"
		return result, nil
	}

	payout, err := s.synthesize(ctx, booking)
	if err != nil {
		result.Status = StatusError
		result.Reason = err.Error()
		return result, nil
	}

	if dryRun {
		result.Status = StatusCreated
		return result, payout
	}

	if err := s.persistPayout(ctx, booking, payout); err != nil {
		result.Status = StatusError
		result.Reason = err.Error()
		return result, nil
	}

	result.Status = StatusCreated
	return result, payout
}

// synthesize computes the payout row for a booking at the host's current
// commission rate.
func (s *Synthesizer) synthesize(ctx context.Context, booking settlement.Booking) (*settlement.RentalPayout, error) {
	fleetSize, err := resolveFleetSize(ctx, s.store, s.calc.Settings(), booking, "[Payouts]")
	if err != nil {
		return nil, err
	}

	breakdown, err := s.calc.CalculateHostPayout([]settlement.BookingID{booking.ID}, booking.BaseRental, fleetSize)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	holdDays := s.calc.Settings().PayoutHoldDays
	eligibleAt := booking.TripEnd.AddDate(0, 0, holdDays)

	payout := &settlement.RentalPayout{
		ID:            settlement.PayoutID(uuid.NewString()),
		BookingID:     booking.ID,
		HostID:        booking.HostID,
		GrossEarnings: breakdown.GrossEarnings,
		PlatformFee:   breakdown.PlatformFee,
		ProcessingFee: breakdown.ProcessingFee,
		NetPayout:     breakdown.NetPayout,
		Amount:        breakdown.NetPayout,
		Status:        settlement.PayoutPending,
		EligibleAt:    eligibleAt,
		CreatedAt:     now,
	}

	// Historical trips are simulated as already settled.
	if eligibleAt.Before(now) {
		processedAt := eligibleAt
		payout.Status = settlement.PayoutCompleted
		payout.ProcessedAt = &processedAt
	}

	return payout, nil
}

func (s *Synthesizer) persistPayout(ctx context.Context, booking settlement.Booking, payout *settlement.RentalPayout) error {
	entry := settlement.AuditEntry{
		ID:         uuid.NewString(),
		EntityType: "rental_payout",
		EntityID:   string(payout.ID),
		Action:     settlement.AuditPayoutCreated,
		Metadata: map[string]any{
			"booking_id":     string(booking.ID),
			"host_id":        string(booking.HostID),
			"gross_earnings": payout.GrossEarnings.StringFixed(2),
			"platform_fee":   payout.PlatformFee.StringFixed(2),
			"processing_fee": payout.ProcessingFee.StringFixed(2),
			"net_payout":     payout.NetPayout.StringFixed(2),
			"status":         string(payout.Status),
		},
		CreatedAt: s.now().UTC(),
	}

	write := func(st settlement.Store) error {
		if err := st.InsertPayout(ctx, *payout); err != nil {
			return err
		}
		return st.AppendAuditLog(ctx, entry)
	}

	if tx, ok := s.store.(settlement.TxStore); ok {
		return tx.WithTx(ctx, write)
	}
	return write(s.store)
}
