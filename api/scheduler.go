/*
scheduler.go - Cron-driven settlement jobs

PURPOSE:
  Runs the nightly settlement jobs on cron schedules:

  - Payout synthesis: creates payout rows for bookings that settled since
    the last run (idempotent, so overlap with manual runs is harmless)
  - Host-totals sync: overwrites drifted host counters from the ledger

DESIGN:
  - robfig/cron with panic recovery per job
  - Cron specs come from configuration; standard 5-field syntax
  - RunNow() for manual triggering from admin tooling
  - Stop() blocks until in-flight jobs finish

USAGE:
  scheduler, err := NewScheduler(handler, SchedulerConfig{...})
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: The HTTP counterparts of these jobs
  - config/config.go: Schedule configuration
*/
package api

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/driveway/settlement-engine/backfill"
)

// SchedulerConfig holds the cron specs for the settlement jobs.
type SchedulerConfig struct {
	PayoutSchedule     string // payout synthesis, e.g. "30 2 * * *"
	SyncTotalsSchedule string // host-totals sync, e.g. "0 3 * * *"
}

// Scheduler runs payout synthesis and counter sync on cron schedules.
type Scheduler struct {
	handler *Handler
	cron    *cron.Cron
}

// NewScheduler registers both jobs on their schedules. Invalid cron specs
// fail here, at startup, rather than silently never firing.
func NewScheduler(handler *Handler, cfg SchedulerConfig) (*Scheduler, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	s := &Scheduler{handler: handler, cron: c}

	if _, err := c.AddFunc(cfg.PayoutSchedule, s.runPayoutSynthesis); err != nil {
		return nil, fmt.Errorf("invalid payout schedule %q: %w", cfg.PayoutSchedule, err)
	}
	if _, err := c.AddFunc(cfg.SyncTotalsSchedule, s.runTotalsSync); err != nil {
		return nil, fmt.Errorf("invalid sync-totals schedule %q: %w", cfg.SyncTotalsSchedule, err)
	}
	return s, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] Started")
}

// Stop stops the scheduler and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Scheduler] Stopped")
}

// RunNow triggers both jobs immediately (for testing/admin).
func (s *Scheduler) RunNow() {
	s.runPayoutSynthesis()
	s.runTotalsSync()
}

func (s *Scheduler) runPayoutSynthesis() {
	ctx := context.Background()
	summary, err := s.handler.Synthesizer.BackfillPayouts(ctx, backfill.Options{})
	if err != nil {
		log.Printf("[Scheduler] ERROR: payout synthesis: %v", err)
		return
	}
	log.Printf("[Scheduler] Payout synthesis: %d created, %d skipped, %d errors",
		summary.PayoutsCreated, summary.Skipped, summary.Errors)
}

func (s *Scheduler) runTotalsSync() {
	ctx := context.Background()
	result, err := s.handler.Reconciler.SyncHostTotalsFromPayouts(ctx, false)
	if err != nil {
		log.Printf("[Scheduler] ERROR: host-totals sync: %v", err)
		return
	}
	log.Printf("[Scheduler] Host-totals sync: %d checked, %d updated, %d errors",
		result.HostsChecked, result.HostsUpdated, result.Errors)
}
