package backfill_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveway/settlement-engine/backfill"
	"github.com/driveway/settlement-engine/settlement"
	"github.com/driveway/settlement-engine/settlement/store"
)

// =============================================================================
// PAYOUT SYNTHESIS
// =============================================================================

func TestBackfillPayouts_CreatesMissingRows(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	// GIVEN: Two settled bookings with no payout rows
	mem.PutBooking(settledBooking("bk-1", "host-1", "300", tripEnd(30)))
	mem.PutBooking(settledBooking("bk-2", "host-1", "120", tripEnd(20)))

	synth := backfill.NewSynthesizer(mem, calc)
	summary, err := synth.BackfillPayouts(context.Background(), backfill.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.PayoutsCreated)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 1, summary.HostsUpdated)

	payouts := mem.ListPayouts()
	require.Len(t, payouts, 2)

	// Standard tier at 3 vehicles: 300 -> fee 75, net 223.50
	byBooking := map[settlement.BookingID]settlement.RentalPayout{}
	for _, p := range payouts {
		byBooking[p.BookingID] = p
	}
	p1 := byBooking["bk-1"]
	assert.True(t, p1.GrossEarnings.Equal(d("300.00")))
	assert.True(t, p1.PlatformFee.Equal(d("75.00")))
	assert.True(t, p1.ProcessingFee.Equal(d("1.50")))
	assert.True(t, p1.NetPayout.Equal(d("223.50")))
	assert.True(t, p1.Amount.Equal(p1.NetPayout))
	assert.Equal(t, settlement.HostID("host-1"), p1.HostID)

	// 223.50 + (120 - 30 - 1.50) = 312.00
	assert.True(t, summary.TotalNetPayout.Equal(d("312.00")), "total %s", summary.TotalNetPayout)
}

func TestBackfillPayouts_SecondRunSkipsEverything(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})
	mem.PutBooking(settledBooking("bk-1", "host-1", "300", tripEnd(30)))

	synth := backfill.NewSynthesizer(mem, calc)
	_, err := synth.BackfillPayouts(context.Background(), backfill.Options{})
	require.NoError(t, err)

	host, err := mem.GetHost(context.Background(), "host-1")
	require.NoError(t, err)
	amountAfterFirst := host.TotalPayoutsAmount

	second, err := synth.BackfillPayouts(context.Background(), backfill.Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, second.PayoutsCreated)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, "already exists", second.Results[0].Reason)
	assert.Equal(t, 0, second.HostsUpdated)

	// Counters not double-incremented
	host, err = mem.GetHost(context.Background(), "host-1")
	require.NoError(t, err)
	assert.True(t, host.TotalPayoutsAmount.Equal(amountAfterFirst))
	assert.Len(t, mem.ListPayouts(), 1)
}

func TestBackfillPayouts_OnlySettledBookingsQualify(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	unpaid := settledBooking("bk-unpaid", "host-1", "300", tripEnd(30))
	unpaid.PaymentStatus = settlement.PaymentPending
	mem.PutBooking(unpaid)

	cancelled := settledBooking("bk-cancelled", "host-1", "300", tripEnd(30))
	cancelled.Status = settlement.BookingCancelled
	mem.PutBooking(cancelled)

	summary, err := backfill.NewSynthesizer(mem, calc).BackfillPayouts(context.Background(), backfill.Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, mem.ListPayouts())
}

func TestBackfillPayouts_HistoricalTripsSettleImmediately(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	// Trip ended 30 days ago: eligibility (end + 3 days) long passed
	mem.PutBooking(settledBooking("bk-old", "host-1", "300", tripEnd(30)))
	// Trip ended yesterday: still inside the hold window
	mem.PutBooking(settledBooking("bk-fresh", "host-1", "300", tripEnd(1)))

	_, err := backfill.NewSynthesizer(mem, calc).BackfillPayouts(context.Background(), backfill.Options{})
	require.NoError(t, err)

	var old, fresh settlement.RentalPayout
	for _, p := range mem.ListPayouts() {
		switch p.BookingID {
		case "bk-old":
			old = p
		case "bk-fresh":
			fresh = p
		}
	}

	assert.Equal(t, settlement.PayoutCompleted, old.Status)
	require.NotNil(t, old.ProcessedAt)
	assert.True(t, old.ProcessedAt.Equal(old.EligibleAt), "simulated settlement lands at eligibility")

	assert.Equal(t, settlement.PayoutPending, fresh.Status)
	assert.Nil(t, fresh.ProcessedAt)
	assert.True(t, fresh.EligibleAt.After(time.Now()))
}

func TestBackfillPayouts_OneCounterIncrementPerHost(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})
	mem.PutHost(settlement.RentalHost{ID: "host-2", FleetSize: 60})

	mem.PutBooking(settledBooking("bk-1", "host-1", "300", tripEnd(30)))
	mem.PutBooking(settledBooking("bk-2", "host-1", "300", tripEnd(25)))
	mem.PutBooking(settledBooking("bk-3", "host-2", "300", tripEnd(20)))

	summary, err := backfill.NewSynthesizer(mem, calc).BackfillPayouts(context.Background(), backfill.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.HostsUpdated)

	host1, err := mem.GetHost(context.Background(), "host-1")
	require.NoError(t, err)
	assert.True(t, host1.TotalPayoutsAmount.Equal(d("447.00")), "got %s", host1.TotalPayoutsAmount) // 2 x 223.50
	assert.Equal(t, 2, host1.TotalPayoutsCount)
	assert.Equal(t, 2, host1.TotalTrips)

	// Platinum host: 300 - 45 - 1.50 = 253.50
	host2, err := mem.GetHost(context.Background(), "host-2")
	require.NoError(t, err)
	assert.True(t, host2.TotalPayoutsAmount.Equal(d("253.50")))
	assert.Equal(t, 1, host2.TotalPayoutsCount)
}

func TestBackfillPayouts_DryRunWritesNothing(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})
	mem.PutBooking(settledBooking("bk-1", "host-1", "300", tripEnd(30)))

	summary, err := backfill.NewSynthesizer(mem, calc).BackfillPayouts(context.Background(), backfill.Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PayoutsCreated)
	assert.Equal(t, 1, summary.HostsUpdated) // hosts that would be updated

	assert.Empty(t, mem.ListPayouts())
	assert.Empty(t, mem.AuditEntries())
	host, err := mem.GetHost(context.Background(), "host-1")
	require.NoError(t, err)
	assert.True(t, host.TotalPayoutsAmount.IsZero())
	assert.Equal(t, 0, host.TotalPayoutsCount)
}

func TestBackfillPayouts_AuditEntryPerCreatedPayout(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})
	mem.PutBooking(settledBooking("bk-1", "host-1", "300", tripEnd(30)))

	_, err := backfill.NewSynthesizer(mem, calc).BackfillPayouts(context.Background(), backfill.Options{})
	require.NoError(t, err)

	entries := mem.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, settlement.AuditPayoutCreated, entries[0].Action)
	assert.Equal(t, "rental_payout", entries[0].EntityType)
	assert.Equal(t, "bk-1", entries[0].Metadata["booking_id"])
}
