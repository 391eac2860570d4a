/*
Package backfill provides the batch reconciliation subsystem.

PURPOSE:
  Re-derives financial values over large historical datasets and corrects
  drift, safely re-runnable:

  - Orchestrator: recomputes booking financial fields and fixes drift
  - Synthesizer:  creates missing payout ledger rows (at most one per booking)
  - Reconciler:   restores host aggregate counters from the ledger or from
                  source bookings

PROCESSING MODEL:
  Strictly sequential, one page of records at a time. Per-record failures are
  recorded and skipped; batch-level failures (store connectivity) abort the
  run and propagate. Dry-run performs every step except persistence.

KEY TYPES IN THIS FILE (types.go):
  - Options: dry-run flag, date range, host filter, batch size
  - Summary/PayoutSummary/SyncResult/RecalcResult: run reports
  - RecordResult + FieldChange: per-record outcomes with before/after values

SEE ALSO:
  - bookings.go: Orchestrator
  - payouts.go: Synthesizer
  - reconcile.go: Reconciler
*/
package backfill

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/driveway/settlement-engine/settlement"
)

// =============================================================================
// OPTIONS
// =============================================================================

const (
	// DefaultBatchSize bounds memory to one page of bookings.
	DefaultBatchSize = 100

	// PreviewLimit caps dry-run previews to a readable sample.
	PreviewLimit = 50
)

// Options configures a backfill run. The zero value is a full-history
// write-mode run with the default batch size; set DryRun for a no-write pass.
type Options struct {
	DryRun    bool
	StartDate *time.Time
	EndDate   *time.Time
	HostID    *settlement.HostID
	BatchSize int
	Limit     int // 0 = unlimited; preview sets this
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

func (o Options) bookingFilter() settlement.BookingFilter {
	return settlement.BookingFilter{
		HostID:    o.HostID,
		StartDate: o.StartDate,
		EndDate:   o.EndDate,
	}
}

// =============================================================================
// PER-RECORD RESULTS
// =============================================================================

type RecordStatus string

const (
	StatusUpdated RecordStatus = "updated"
	StatusCreated RecordStatus = "created"
	StatusSkipped RecordStatus = "skipped"
	StatusError   RecordStatus = "error"
)

// FieldChange records one corrected field with before/after values.
type FieldChange struct {
	Field  string
	Before decimal.Decimal
	After  decimal.Decimal
}

// Delta returns After - Before.
func (c FieldChange) Delta() decimal.Decimal {
	return c.After.Sub(c.Before)
}

// RecordResult is the outcome for a single booking.
type RecordResult struct {
	BookingID settlement.BookingID
	HostID    settlement.HostID
	Status    RecordStatus
	Reason    string // skip reason or error message
	Changes   []FieldChange
}

// =============================================================================
// RUN SUMMARIES
// =============================================================================

// DriftTotals accumulates the signed correction applied per derived field.
type DriftTotals struct {
	ServiceFee  decimal.Decimal
	Taxes       decimal.Decimal
	TotalAmount decimal.Decimal
}

func (d *DriftTotals) add(changes []FieldChange) {
	for _, c := range changes {
		switch c.Field {
		case FieldServiceFee:
			d.ServiceFee = d.ServiceFee.Add(c.Delta())
		case FieldTaxes:
			d.Taxes = d.Taxes.Add(c.Delta())
		case FieldTotalAmount:
			d.TotalAmount = d.TotalAmount.Add(c.Delta())
		}
	}
}

// Derived field names as persisted on the booking record.
const (
	FieldServiceFee  = "service_fee"
	FieldTaxes       = "taxes"
	FieldTotalAmount = "total_amount"
)

// Summary reports a booking backfill run.
type Summary struct {
	DryRun    bool
	Processed int
	Updated   int
	Skipped   int
	Errors    int
	Totals    DriftTotals
	Results   []RecordResult
}

// PayoutSummary reports a payout synthesis run.
type PayoutSummary struct {
	DryRun         bool
	Processed      int
	PayoutsCreated int
	Skipped        int
	Errors         int
	TotalNetPayout decimal.Decimal
	HostsUpdated   int // hosts whose counters were incremented
	Results        []RecordResult
}

// =============================================================================
// RECONCILER RESULTS
// =============================================================================

// HostTotalsDiff reports previous vs recomputed counters for one host.
type HostTotalsDiff struct {
	HostID settlement.HostID

	PreviousAmount   decimal.Decimal
	RecomputedAmount decimal.Decimal
	PreviousCount    int
	RecomputedCount  int
	PreviousTrips    int
	RecomputedTrips  int // mirrors PreviousTrips for the ledger-sync strategy

	Changed bool
}

// SyncResult reports a sync-from-ledger run.
type SyncResult struct {
	DryRun       bool
	HostsChecked int
	HostsUpdated int
	Errors       int
	Diffs        []HostTotalsDiff
}

// RecalcResult reports a recalculate-from-bookings run.
type RecalcResult struct {
	DryRun           bool
	HostsProcessed   int
	HostsUpdated     int
	PayoutsRewritten int
	Errors           int
	Diffs            []HostTotalsDiff
}
