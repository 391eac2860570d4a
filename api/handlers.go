/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes the backfill and reconciliation engines via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Backfill:
    POST   /api/backfill/bookings          Run booking financials backfill
    GET    /api/backfill/bookings/preview  Dry-run preview (capped sample)
    POST   /api/backfill/payouts           Run payout synthesis

  Reconciliation:
    POST   /api/reconcile/sync-totals      Sync host counters from ledger
    POST   /api/reconcile/recalculate      Rebuild payouts from bookings

  Reference:
    GET    /api/commission-tiers           Current commission schedule
    GET    /api/hosts/{id}                 Host with counters and tier
    GET    /api/audit                      Audit-log query

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (orchestrator, synthesizer, reconciler)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Deploy behind an authenticating proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: The cron-driven callers of the same engines
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/driveway/settlement-engine/backfill"
	"github.com/driveway/settlement-engine/settlement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        settlement.Store
	Calc         *settlement.Calculator
	Orchestrator *backfill.Orchestrator
	Synthesizer  *backfill.Synthesizer
	Reconciler   *backfill.Reconciler
}

// NewHandler creates a handler wired to the given store and calculator.
func NewHandler(store settlement.Store, calc *settlement.Calculator) *Handler {
	return &Handler{
		Store:        store,
		Calc:         calc,
		Orchestrator: backfill.NewOrchestrator(store, calc),
		Synthesizer:  backfill.NewSynthesizer(store, calc),
		Reconciler:   backfill.NewReconciler(store, calc),
	}
}

// =============================================================================
// BACKFILL HANDLERS
// =============================================================================

// BackfillBookings runs the booking financials backfill.
// POST /api/backfill/bookings
func (h *Handler) BackfillBookings(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeRunRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	summary, err := h.Orchestrator.BackfillBookings(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Backfill failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBackfillSummaryDTO(summary))
}

// PreviewBookings runs a capped dry-run of the booking backfill.
// GET /api/backfill/bookings/preview
func (h *Handler) PreviewBookings(w http.ResponseWriter, r *http.Request) {
	opts, err := queryRunOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	summary, err := h.Orchestrator.Preview(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Preview failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBackfillSummaryDTO(summary))
}

// BackfillPayouts runs payout synthesis.
// POST /api/backfill/payouts
func (h *Handler) BackfillPayouts(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeRunRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	summary, err := h.Synthesizer.BackfillPayouts(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Payout backfill failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutSummaryDTO(summary))
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// SyncTotals overwrites host counters with sums from the payout ledger.
// POST /api/reconcile/sync-totals
func (h *Handler) SyncTotals(w http.ResponseWriter, r *http.Request) {
	req, err := decodeReconcileRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	result, err := h.Reconciler.SyncHostTotalsFromPayouts(r.Context(), req.DryRun)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSyncResultDTO(result))
}

// Recalculate rebuilds payout rows and counters from source bookings.
// POST /api/reconcile/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeReconcileRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	result, err := h.Reconciler.RecalculateHostPayouts(r.Context(), req.DryRun)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecalcResultDTO(result))
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

// ListCommissionTiers returns the current commission schedule.
// GET /api/commission-tiers
func (h *Handler) ListCommissionTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toCommissionTierDTOs(h.Calc.AllCommissionTiers()))
}

// GetHost returns a host with its counters and resolved commission tier.
// GET /api/hosts/{id}
func (h *Handler) GetHost(w http.ResponseWriter, r *http.Request) {
	id := settlement.HostID(chi.URLParam(r, "id"))

	host, err := h.Store.GetHost(r.Context(), id)
	if err != nil {
		if settlement.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Host not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get host", err)
		return
	}

	tier := h.Calc.ResolveTier(host.FleetSize)
	writeJSON(w, http.StatusOK, HostDTO{
		ID:                 string(host.ID),
		Name:               host.Name,
		FleetSize:          host.FleetSize,
		CommissionTier:     string(tier.Name),
		CommissionRate:     tier.Rate.InexactFloat64(),
		TotalPayoutsAmount: money(host.TotalPayoutsAmount),
		TotalPayoutsCount:  host.TotalPayoutsCount,
		TotalTrips:         host.TotalTrips,
	})
}

// QueryAudit returns audit-log entries, newest first.
// GET /api/audit?entity_type=&entity_id=&action=&limit=
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := settlement.AuditFilter{Limit: 100}

	if v := q.Get("entity_type"); v != "" {
		filter.EntityType = &v
	}
	if v := q.Get("entity_id"); v != "" {
		filter.EntityID = &v
	}
	if v := q.Get("action"); v != "" {
		action := settlement.AuditAction(v)
		filter.Action = &action
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = limit
	}

	entries, err := h.Store.QueryAuditLog(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditEntryDTOs(entries))
}

// Health is a liveness probe.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

// decodeRunRequest parses a RunRequest body into backfill options. An empty
// body is a full-history write-mode run.
func decodeRunRequest(r *http.Request) (backfill.Options, error) {
	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return backfill.Options{}, err
		}
	}
	return runOptions(req)
}

func queryRunOptions(r *http.Request) (backfill.Options, error) {
	q := r.URL.Query()
	req := RunRequest{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		HostID:    q.Get("host_id"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return backfill.Options{}, err
		}
		req.Limit = limit
	}
	return runOptions(req)
}

func runOptions(req RunRequest) (backfill.Options, error) {
	opts := backfill.Options{
		DryRun:    req.DryRun,
		BatchSize: req.BatchSize,
		Limit:     req.Limit,
	}
	if req.StartDate != "" {
		t, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return backfill.Options{}, err
		}
		opts.StartDate = &t
	}
	if req.EndDate != "" {
		t, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return backfill.Options{}, err
		}
		opts.EndDate = &t
	}
	if req.HostID != "" {
		hostID := settlement.HostID(req.HostID)
		opts.HostID = &hostID
	}
	return opts, nil
}

func decodeReconcileRequest(r *http.Request) (ReconcileRequest, error) {
	var req ReconcileRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ReconcileRequest{}, err
		}
	}
	return req, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
