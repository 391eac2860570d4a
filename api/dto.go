/*
dto.go - Request and response data structures for the HTTP API

PURPOSE:
  Defines the JSON wire format. Domain types use decimal.Decimal internally;
  DTOs expose money as float64 (values are already rounded to cents before
  serialization, so float64 is safe on the wire).

CONVENTIONS:
  - snake_case JSON field names
  - Dates as YYYY-MM-DD in requests, RFC3339 timestamps in responses
  - Money rounded to 2 decimal places

SEE ALSO:
  - handlers.go: Where these are populated
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/driveway/settlement-engine/backfill"
	"github.com/driveway/settlement-engine/settlement"
)

// =============================================================================
// REQUESTS
// =============================================================================

// RunRequest configures a backfill or synthesis run.
type RunRequest struct {
	DryRun    bool   `json:"dry_run"`
	StartDate string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   string `json:"end_date,omitempty"`   // YYYY-MM-DD
	HostID    string `json:"host_id,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ReconcileRequest configures a counter reconciliation run.
type ReconcileRequest struct {
	DryRun bool `json:"dry_run"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// RUN REPORT DTOs
// =============================================================================

// FieldChangeDTO is one corrected field with before/after values.
type FieldChangeDTO struct {
	Field  string  `json:"field"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// RecordResultDTO is the outcome for a single record.
type RecordResultDTO struct {
	BookingID string           `json:"booking_id"`
	HostID    string           `json:"host_id,omitempty"`
	Status    string           `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Changes   []FieldChangeDTO `json:"changes,omitempty"`
}

// BackfillSummaryDTO reports a booking backfill run.
type BackfillSummaryDTO struct {
	DryRun    bool              `json:"dry_run"`
	Processed int               `json:"processed"`
	Updated   int               `json:"updated"`
	Skipped   int               `json:"skipped"`
	Errors    int               `json:"errors"`
	Drift     DriftTotalsDTO    `json:"drift"`
	Results   []RecordResultDTO `json:"results"`
}

// DriftTotalsDTO is the signed correction applied per derived field.
type DriftTotalsDTO struct {
	ServiceFee  float64 `json:"service_fee"`
	Taxes       float64 `json:"taxes"`
	TotalAmount float64 `json:"total_amount"`
}

// PayoutSummaryDTO reports a payout synthesis run.
type PayoutSummaryDTO struct {
	DryRun         bool              `json:"dry_run"`
	Processed      int               `json:"processed"`
	PayoutsCreated int               `json:"payouts_created"`
	Skipped        int               `json:"skipped"`
	Errors         int               `json:"errors"`
	TotalNetPayout float64           `json:"total_net_payout"`
	HostsUpdated   int               `json:"hosts_updated"`
	Results        []RecordResultDTO `json:"results"`
}

// HostTotalsDiffDTO is a previous-vs-recomputed counter diff for one host.
type HostTotalsDiffDTO struct {
	HostID           string  `json:"host_id"`
	PreviousAmount   float64 `json:"previous_amount"`
	RecomputedAmount float64 `json:"recomputed_amount"`
	PreviousCount    int     `json:"previous_count"`
	RecomputedCount  int     `json:"recomputed_count"`
	PreviousTrips    int     `json:"previous_trips"`
	RecomputedTrips  int     `json:"recomputed_trips"`
	Changed          bool    `json:"changed"`
}

// SyncResultDTO reports a sync-from-ledger run.
type SyncResultDTO struct {
	DryRun       bool                `json:"dry_run"`
	HostsChecked int                 `json:"hosts_checked"`
	HostsUpdated int                 `json:"hosts_updated"`
	Errors       int                 `json:"errors"`
	Diffs        []HostTotalsDiffDTO `json:"diffs"`
}

// RecalcResultDTO reports a recalculate-from-bookings run.
type RecalcResultDTO struct {
	DryRun           bool                `json:"dry_run"`
	HostsProcessed   int                 `json:"hosts_processed"`
	HostsUpdated     int                 `json:"hosts_updated"`
	PayoutsRewritten int                 `json:"payouts_rewritten"`
	Errors           int                 `json:"errors"`
	Diffs            []HostTotalsDiffDTO `json:"diffs"`
}

// =============================================================================
// REFERENCE DATA DTOs
// =============================================================================

// CommissionTierDTO describes one tier of the commission schedule.
type CommissionTierDTO struct {
	Name        string  `json:"name"`
	MinVehicles int     `json:"min_vehicles"`
	MaxVehicles *int    `json:"max_vehicles,omitempty"`
	Rate        float64 `json:"commission_rate"`
	HostKeeps   float64 `json:"host_keeps"`
}

// HostDTO is a rental host with its aggregate payout counters.
type HostDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	FleetSize          int     `json:"fleet_size"`
	CommissionTier     string  `json:"commission_tier"`
	CommissionRate     float64 `json:"commission_rate"`
	TotalPayoutsAmount float64 `json:"total_payouts_amount"`
	TotalPayoutsCount  int     `json:"total_payouts_count"`
	TotalTrips         int     `json:"total_trips"`
}

// AuditEntryDTO is one audit-log entry.
type AuditEntryDTO struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func toRecordResultDTOs(results []backfill.RecordResult) []RecordResultDTO {
	dtos := make([]RecordResultDTO, len(results))
	for i, r := range results {
		dto := RecordResultDTO{
			BookingID: string(r.BookingID),
			HostID:    string(r.HostID),
			Status:    string(r.Status),
			Reason:    r.Reason,
		}
		for _, c := range r.Changes {
			dto.Changes = append(dto.Changes, FieldChangeDTO{
				Field:  c.Field,
				Before: money(c.Before),
				After:  money(c.After),
			})
		}
		dtos[i] = dto
	}
	return dtos
}

func toBackfillSummaryDTO(s *backfill.Summary) BackfillSummaryDTO {
	return BackfillSummaryDTO{
		DryRun:    s.DryRun,
		Processed: s.Processed,
		Updated:   s.Updated,
		Skipped:   s.Skipped,
		Errors:    s.Errors,
		Drift: DriftTotalsDTO{
			ServiceFee:  money(s.Totals.ServiceFee),
			Taxes:       money(s.Totals.Taxes),
			TotalAmount: money(s.Totals.TotalAmount),
		},
		Results: toRecordResultDTOs(s.Results),
	}
}

func toPayoutSummaryDTO(s *backfill.PayoutSummary) PayoutSummaryDTO {
	return PayoutSummaryDTO{
		DryRun:         s.DryRun,
		Processed:      s.Processed,
		PayoutsCreated: s.PayoutsCreated,
		Skipped:        s.Skipped,
		Errors:         s.Errors,
		TotalNetPayout: money(s.TotalNetPayout),
		HostsUpdated:   s.HostsUpdated,
		Results:        toRecordResultDTOs(s.Results),
	}
}

func toHostTotalsDiffDTOs(diffs []backfill.HostTotalsDiff) []HostTotalsDiffDTO {
	dtos := make([]HostTotalsDiffDTO, len(diffs))
	for i, d := range diffs {
		dtos[i] = HostTotalsDiffDTO{
			HostID:           string(d.HostID),
			PreviousAmount:   money(d.PreviousAmount),
			RecomputedAmount: money(d.RecomputedAmount),
			PreviousCount:    d.PreviousCount,
			RecomputedCount:  d.RecomputedCount,
			PreviousTrips:    d.PreviousTrips,
			RecomputedTrips:  d.RecomputedTrips,
			Changed:          d.Changed,
		}
	}
	return dtos
}

func toSyncResultDTO(r *backfill.SyncResult) SyncResultDTO {
	return SyncResultDTO{
		DryRun:       r.DryRun,
		HostsChecked: r.HostsChecked,
		HostsUpdated: r.HostsUpdated,
		Errors:       r.Errors,
		Diffs:        toHostTotalsDiffDTOs(r.Diffs),
	}
}

func toRecalcResultDTO(r *backfill.RecalcResult) RecalcResultDTO {
	return RecalcResultDTO{
		DryRun:           r.DryRun,
		HostsProcessed:   r.HostsProcessed,
		HostsUpdated:     r.HostsUpdated,
		PayoutsRewritten: r.PayoutsRewritten,
		Errors:           r.Errors,
		Diffs:            toHostTotalsDiffDTOs(r.Diffs),
	}
}

func toCommissionTierDTOs(tiers []settlement.CommissionTier) []CommissionTierDTO {
	dtos := make([]CommissionTierDTO, len(tiers))
	for i, t := range tiers {
		dtos[i] = CommissionTierDTO{
			Name:        string(t.Name),
			MinVehicles: t.MinVehicles,
			MaxVehicles: t.MaxVehicles,
			Rate:        t.Rate.InexactFloat64(),
			HostKeeps:   t.HostKeeps.InexactFloat64(),
		}
	}
	return dtos
}

func toAuditEntryDTOs(entries []settlement.AuditEntry) []AuditEntryDTO {
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:         e.ID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     string(e.Action),
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}
