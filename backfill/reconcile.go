/*
reconcile.go - Host aggregate counter reconciliation

PURPOSE:
  Two independent, non-interchangeable strategies for restoring the invariant
  that a host's aggregate counters equal a sum over its payout/booking rows:

  SYNC-FROM-LEDGER (SyncHostTotalsFromPayouts):
    Trusts the payout ledger. Sums netPayout and counts rows per host over
    PAID/COMPLETED payouts and OVERWRITES totalPayoutsAmount/Count with the
    sums. Use when payout rows are believed correct but counters drifted.

  RECALCULATE-FROM-BOOKINGS (RecalculateHostPayouts):
    Trusts the source bookings. Recomputes gross earnings and the commission
    rate from CURRENT fleet size and settings, rewrites every existing payout
    row to match, and overwrites counters plus totalTrips. Use when the rows
    themselves may be stale (tier or rate changed after they were created).

  Both report a previous-vs-recomputed diff per host before committing, and
  scope each host's writes as one transaction so a mid-run failure cannot
  leave a host half-updated.

SEE ALSO:
  - payouts.go: Creates the rows these strategies reconcile
  - settlement/store.go: Atomic overwrite semantics
*/
package backfill

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/driveway/settlement-engine/settlement"
)

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler restores host aggregate counters from the payout ledger or from
// source bookings.
type Reconciler struct {
	store settlement.Store
	calc  *settlement.Calculator
}

func NewReconciler(store settlement.Store, calc *settlement.Calculator) *Reconciler {
	return &Reconciler{store: store, calc: calc}
}

// =============================================================================
// STRATEGY 1: SYNC FROM LEDGER
// =============================================================================

// SyncHostTotalsFromPayouts overwrites each host's payout counters with
// authoritative sums over its PAID/COMPLETED payout rows. Hosts with no
// qualifying rows are reset to zero. TotalTrips is left untouched: the
// ledger carries no authoritative trip count.
func (r *Reconciler) SyncHostTotalsFromPayouts(ctx context.Context, dryRun bool) (*SyncResult, error) {
	result := &SyncResult{DryRun: dryRun}

	groups, err := r.store.GroupPayoutsByHost(ctx, []settlement.PayoutStatus{settlement.PayoutPaid, settlement.PayoutCompleted})
	if err != nil {
		return nil, fmt.Errorf("group payouts by host: %w", err)
	}
	byHost := make(map[settlement.HostID]settlement.HostPayoutGroup, len(groups))
	for _, g := range groups {
		byHost[g.HostID] = g
	}

	// Walk every host, not just hosts with ledger rows, so a host whose
	// counters drifted upward with no rows at all is reset too.
	hostIDs, err := r.store.ListHostIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}

	log.Printf("[Reconciler] Syncing totals from ledger for %d hosts (dry-run=%v)", len(hostIDs), dryRun)

	for _, hostID := range hostIDs {
		host, err := r.store.GetHost(ctx, hostID)
		if err != nil {
			log.Printf("[Reconciler] ERROR: loading host %s: %v", hostID, err)
			result.Errors++
			continue
		}
		result.HostsChecked++

		group := byHost[hostID] // zero value: no qualifying rows
		diff := HostTotalsDiff{
			HostID:           hostID,
			PreviousAmount:   host.TotalPayoutsAmount,
			RecomputedAmount: group.Sum,
			PreviousCount:    host.TotalPayoutsCount,
			RecomputedCount:  group.Count,
			PreviousTrips:    host.TotalTrips,
			RecomputedTrips:  host.TotalTrips,
		}
		diff.Changed = !settlement.MoneyEqual(diff.PreviousAmount, diff.RecomputedAmount) ||
			diff.PreviousCount != diff.RecomputedCount
		result.Diffs = append(result.Diffs, diff)

		if !diff.Changed || dryRun {
			continue
		}

		if err := r.commitSync(ctx, hostID, diff); err != nil {
			log.Printf("[Reconciler] ERROR: syncing host %s: %v", hostID, err)
			result.Errors++
			continue
		}
		result.HostsUpdated++
	}

	log.Printf("[Reconciler] Sync completed: %d checked, %d updated, %d errors",
		result.HostsChecked, result.HostsUpdated, result.Errors)
	return result, nil
}

func (r *Reconciler) commitSync(ctx context.Context, hostID settlement.HostID, diff HostTotalsDiff) error {
	totals := settlement.CounterTotals{Amount: diff.RecomputedAmount, Count: diff.RecomputedCount}
	entry := settlement.AuditEntry{
		ID:         uuid.NewString(),
		EntityType: "rental_host",
		EntityID:   string(hostID),
		Action:     settlement.AuditHostTotalsSynced,
		Metadata:   diffMetadata(diff),
		CreatedAt:  time.Now().UTC(),
	}

	write := func(s settlement.Store) error {
		if err := s.OverwriteHostPayoutCounters(ctx, hostID, totals); err != nil {
			return err
		}
		return s.AppendAuditLog(ctx, entry)
	}
	if tx, ok := r.store.(settlement.TxStore); ok {
		return tx.WithTx(ctx, write)
	}
	return write(r.store)
}

// =============================================================================
// STRATEGY 2: RECALCULATE FROM BOOKINGS
// =============================================================================

// RecalculateHostPayouts rebuilds each host's payout rows and counters from
// its completed+paid bookings at current settings. Each host's rewrites and
// counter overwrite commit as one transaction.
func (r *Reconciler) RecalculateHostPayouts(ctx context.Context, dryRun bool) (*RecalcResult, error) {
	result := &RecalcResult{DryRun: dryRun}

	bookingsByHost, err := r.loadSettledBookings(ctx)
	if err != nil {
		return nil, err
	}

	hostIDs := make([]settlement.HostID, 0, len(bookingsByHost))
	for id := range bookingsByHost {
		hostIDs = append(hostIDs, id)
	}
	sort.Slice(hostIDs, func(i, j int) bool { return hostIDs[i] < hostIDs[j] })

	log.Printf("[Reconciler] Recalculating payouts for %d hosts (dry-run=%v)", len(hostIDs), dryRun)

	for _, hostID := range hostIDs {
		diff, rewritten, err := r.recalculateHost(ctx, hostID, bookingsByHost[hostID], dryRun)
		if err != nil {
			log.Printf("[Reconciler] ERROR: recalculating host %s: %v", hostID, err)
			result.Errors++
			continue
		}
		result.HostsProcessed++
		result.PayoutsRewritten += rewritten
		result.Diffs = append(result.Diffs, *diff)
		if diff.Changed && !dryRun {
			result.HostsUpdated++
		}
	}

	log.Printf("[Reconciler] Recalculation completed: %d hosts, %d payouts rewritten, %d updated, %d errors",
		result.HostsProcessed, result.PayoutsRewritten, result.HostsUpdated, result.Errors)
	return result, nil
}

// loadSettledBookings pages through all completed+paid bookings and groups
// them by host.
func (r *Reconciler) loadSettledBookings(ctx context.Context) (map[settlement.HostID][]settlement.Booking, error) {
	completed := settlement.BookingCompleted
	paid := settlement.PaymentPaid
	filter := settlement.BookingFilter{Status: &completed, PaymentStatus: &paid}

	byHost := make(map[settlement.HostID][]settlement.Booking)
	skip := 0
	for {
		page, err := r.store.QueryBookings(ctx, filter, skip, DefaultBatchSize)
		if err != nil {
			return nil, fmt.Errorf("query bookings (skip=%d): %w", skip, err)
		}
		if len(page) == 0 {
			break
		}
		for _, b := range page {
			byHost[b.HostID] = append(byHost[b.HostID], b)
		}
		skip += len(page)
		if len(page) < DefaultBatchSize {
			break
		}
	}
	return byHost, nil
}

// hostRecalc is the computed target state for one host.
type hostRecalc struct {
	updates map[settlement.PayoutID]settlement.PayoutUpdate
	amount  decimal.Decimal
	count   int
	trips   int
}

// recalculateHost computes the target state and, in write mode, commits all
// of the host's payout rewrites and the counter overwrite in one transaction.
func (r *Reconciler) recalculateHost(ctx context.Context, hostID settlement.HostID, bookings []settlement.Booking, dryRun bool) (*HostTotalsDiff, int, error) {
	host, err := r.store.GetHost(ctx, hostID)
	if err != nil {
		return nil, 0, err
	}

	recalc := hostRecalc{updates: make(map[settlement.PayoutID]settlement.PayoutUpdate)}
	recalc.trips = len(bookings)

	for _, booking := range bookings {
		breakdown, err := r.calc.CalculateHostPayout([]settlement.BookingID{booking.ID}, booking.BaseRental, host.FleetSize)
		if err != nil {
			return nil, 0, fmt.Errorf("booking %s: %w", booking.ID, err)
		}

		payout, err := r.store.GetPayoutByBooking(ctx, booking.ID)
		if err != nil {
			if settlement.IsNotFound(err) {
				// Missing rows are the synthesizer's job, not this strategy's.
				continue
			}
			return nil, 0, err
		}

		recalc.amount = recalc.amount.Add(breakdown.NetPayout)
		recalc.count++

		if payoutMatches(payout, breakdown) {
			continue
		}
		recalc.updates[payout.ID] = settlement.PayoutUpdate{
			GrossEarnings: breakdown.GrossEarnings,
			PlatformFee:   breakdown.PlatformFee,
			ProcessingFee: breakdown.ProcessingFee,
			NetPayout:     breakdown.NetPayout,
			Amount:        breakdown.NetPayout,
		}
	}

	diff := &HostTotalsDiff{
		HostID:           hostID,
		PreviousAmount:   host.TotalPayoutsAmount,
		RecomputedAmount: recalc.amount,
		PreviousCount:    host.TotalPayoutsCount,
		RecomputedCount:  recalc.count,
		PreviousTrips:    host.TotalTrips,
		RecomputedTrips:  recalc.trips,
	}
	diff.Changed = len(recalc.updates) > 0 ||
		!settlement.MoneyEqual(diff.PreviousAmount, diff.RecomputedAmount) ||
		diff.PreviousCount != diff.RecomputedCount ||
		diff.PreviousTrips != diff.RecomputedTrips

	if dryRun || !diff.Changed {
		return diff, len(recalc.updates), nil
	}

	if err := r.commitRecalc(ctx, hostID, recalc, *diff); err != nil {
		return nil, 0, err
	}
	return diff, len(recalc.updates), nil
}

func (r *Reconciler) commitRecalc(ctx context.Context, hostID settlement.HostID, recalc hostRecalc, diff HostTotalsDiff) error {
	trips := recalc.trips
	totals := settlement.CounterTotals{Amount: recalc.amount, Count: recalc.count, Trips: &trips}

	entry := settlement.AuditEntry{
		ID:         uuid.NewString(),
		EntityType: "rental_host",
		EntityID:   string(hostID),
		Action:     settlement.AuditHostTotalsRecalculated,
		Metadata:   diffMetadata(diff),
		CreatedAt:  time.Now().UTC(),
	}
	entry.Metadata["payouts_rewritten"] = len(recalc.updates)

	write := func(s settlement.Store) error {
		for payoutID, update := range recalc.updates {
			if err := s.UpdatePayout(ctx, payoutID, update); err != nil {
				return err
			}
		}
		if err := s.OverwriteHostPayoutCounters(ctx, hostID, totals); err != nil {
			return err
		}
		return s.AppendAuditLog(ctx, entry)
	}
	if tx, ok := r.store.(settlement.TxStore); ok {
		return tx.WithTx(ctx, write)
	}
	return write(r.store)
}

func payoutMatches(payout *settlement.RentalPayout, breakdown *settlement.PayoutBreakdown) bool {
	return settlement.MoneyEqual(payout.GrossEarnings, breakdown.GrossEarnings) &&
		settlement.MoneyEqual(payout.PlatformFee, breakdown.PlatformFee) &&
		settlement.MoneyEqual(payout.ProcessingFee, breakdown.ProcessingFee) &&
		settlement.MoneyEqual(payout.NetPayout, breakdown.NetPayout) &&
		settlement.MoneyEqual(payout.Amount, breakdown.NetPayout)
}

func diffMetadata(diff HostTotalsDiff) map[string]any {
	return map[string]any{
		"previous_amount":   diff.PreviousAmount.StringFixed(2),
		"recomputed_amount": diff.RecomputedAmount.StringFixed(2),
		"previous_count":    diff.PreviousCount,
		"recomputed_count":  diff.RecomputedCount,
		"previous_trips":    diff.PreviousTrips,
		"recomputed_trips":  diff.RecomputedTrips,
	}
}
