/*
main.go - Batch settlement CLI

PURPOSE:
  Runs the backfill and reconciliation operations directly against the
  database, without the HTTP server. Intended for operators running one-off
  corrections and for scheduled jobs in environments without the API.

OPERATIONS (-op):
  bookings     Recompute and correct booking financial fields
  payouts      Create missing payout ledger rows
  sync-totals  Overwrite host counters from the payout ledger
  recalculate  Rebuild payout rows and counters from source bookings

SAFETY:
  Dry-run is the DEFAULT. Pass -write to persist changes. Every operation
  prints a per-record or per-host report before exiting.

EXAMPLES:
  # Preview booking corrections for one host
  ./backfill -op=bookings -host=host-42

  # Actually create missing payouts for July
  ./backfill -op=payouts -start=2025-07-01 -end=2025-07-31 -write

  # Fix drifted counters
  ./backfill -op=sync-totals -write

SEE ALSO:
  - backfill/: The engines this drives
  - cmd/server/main.go: The HTTP surface over the same engines
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/driveway/settlement-engine/backfill"
	"github.com/driveway/settlement-engine/config"
	"github.com/driveway/settlement-engine/settlement"
	"github.com/driveway/settlement-engine/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	op := flag.String("op", "", "operation: bookings | payouts | sync-totals | recalculate")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	write := flag.Bool("write", false, "persist changes (default is dry-run)")
	start := flag.String("start", "", "start date filter (YYYY-MM-DD)")
	end := flag.String("end", "", "end date filter (YYYY-MM-DD)")
	host := flag.String("host", "", "restrict to one host ID")
	batch := flag.Int("batch", backfill.DefaultBatchSize, "records per page")
	limit := flag.Int("limit", 0, "max records to process (0 = unlimited)")
	flag.Parse()

	if *op == "" {
		flag.Usage()
		os.Exit(2)
	}

	opts, err := buildOptions(!*write, *start, *end, *host, *batch, *limit)
	if err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	settings, err := cfg.FinancialSettings()
	if err != nil {
		log.Fatalf("Invalid financial settings: %v", err)
	}
	calc, err := settlement.NewCalculator(settings)
	if err != nil {
		log.Fatalf("Failed to build calculator: %v", err)
	}

	ctx := context.Background()
	switch *op {
	case "bookings":
		summary, err := backfill.NewOrchestrator(store, calc).BackfillBookings(ctx, opts)
		if err != nil {
			log.Fatalf("Booking backfill failed: %v", err)
		}
		printBookingSummary(summary)
	case "payouts":
		summary, err := backfill.NewSynthesizer(store, calc).BackfillPayouts(ctx, opts)
		if err != nil {
			log.Fatalf("Payout backfill failed: %v", err)
		}
		printPayoutSummary(summary)
	case "sync-totals":
		result, err := backfill.NewReconciler(store, calc).SyncHostTotalsFromPayouts(ctx, opts.DryRun)
		if err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		printDiffs(result.Diffs)
		fmt.Printf("\n%d hosts checked, %d updated, %d errors (dry-run=%v)\n",
			result.HostsChecked, result.HostsUpdated, result.Errors, result.DryRun)
	case "recalculate":
		result, err := backfill.NewReconciler(store, calc).RecalculateHostPayouts(ctx, opts.DryRun)
		if err != nil {
			log.Fatalf("Recalculation failed: %v", err)
		}
		printDiffs(result.Diffs)
		fmt.Printf("\n%d hosts processed, %d payouts rewritten, %d updated, %d errors (dry-run=%v)\n",
			result.HostsProcessed, result.PayoutsRewritten, result.HostsUpdated, result.Errors, result.DryRun)
	default:
		log.Fatalf("Unknown operation %q", *op)
	}
}

func buildOptions(dryRun bool, start, end, host string, batch, limit int) (backfill.Options, error) {
	opts := backfill.Options{DryRun: dryRun, BatchSize: batch, Limit: limit}
	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return backfill.Options{}, fmt.Errorf("start date: %w", err)
		}
		opts.StartDate = &t
	}
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return backfill.Options{}, fmt.Errorf("end date: %w", err)
		}
		opts.EndDate = &t
	}
	if host != "" {
		hostID := settlement.HostID(host)
		opts.HostID = &hostID
	}
	return opts, nil
}

func printBookingSummary(s *backfill.Summary) {
	for _, r := range s.Results {
		if r.Status == backfill.StatusSkipped {
			continue
		}
		fmt.Printf("%-10s %-20s %s\n", r.Status, r.BookingID, r.Reason)
		for _, c := range r.Changes {
			fmt.Printf("           %s: %s -> %s\n", c.Field, c.Before.StringFixed(2), c.After.StringFixed(2))
		}
	}
	fmt.Printf("\n%d processed, %d updated, %d skipped, %d errors (dry-run=%v)\n",
		s.Processed, s.Updated, s.Skipped, s.Errors, s.DryRun)
	fmt.Printf("drift: service_fee=%s taxes=%s total_amount=%s\n",
		s.Totals.ServiceFee.StringFixed(2), s.Totals.Taxes.StringFixed(2), s.Totals.TotalAmount.StringFixed(2))
}

func printPayoutSummary(s *backfill.PayoutSummary) {
	for _, r := range s.Results {
		if r.Status == backfill.StatusSkipped {
			continue
		}
		fmt.Printf("%-10s %-20s %s\n", r.Status, r.BookingID, r.Reason)
	}
	fmt.Printf("\n%d processed, %d created, %d skipped, %d errors, %d hosts updated (dry-run=%v)\n",
		s.Processed, s.PayoutsCreated, s.Skipped, s.Errors, s.HostsUpdated, s.DryRun)
	fmt.Printf("total net payout: %s\n", s.TotalNetPayout.StringFixed(2))
}

func printDiffs(diffs []backfill.HostTotalsDiff) {
	for _, d := range diffs {
		if !d.Changed {
			continue
		}
		fmt.Printf("%-20s amount %s -> %s, count %d -> %d, trips %d -> %d\n",
			d.HostID,
			d.PreviousAmount.StringFixed(2), d.RecomputedAmount.StringFixed(2),
			d.PreviousCount, d.RecomputedCount,
			d.PreviousTrips, d.RecomputedTrips)
	}
}
