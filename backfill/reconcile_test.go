package backfill_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveway/settlement-engine/backfill"
	"github.com/driveway/settlement-engine/settlement"
	"github.com/driveway/settlement-engine/settlement/store"
)

func seedPayout(t *testing.T, mem *store.TxMemory, id, booking, host string, net string, status settlement.PayoutStatus) {
	t.Helper()
	err := mem.InsertPayout(context.Background(), settlement.RentalPayout{
		ID:        settlement.PayoutID(id),
		BookingID: settlement.BookingID(booking),
		HostID:    settlement.HostID(host),
		NetPayout: d(net),
		Amount:    d(net),
		Status:    status,
	})
	require.NoError(t, err)
}

// =============================================================================
// SYNC FROM LEDGER
// =============================================================================

func TestSyncHostTotals_OverwritesDriftedCounters(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())

	// GIVEN: Counters that disagree with the ledger
	mem.PutHost(settlement.RentalHost{
		ID: "host-1", FleetSize: 3,
		TotalPayoutsAmount: d("999.99"), TotalPayoutsCount: 7, TotalTrips: 7,
	})
	seedPayout(t, mem, "p-1", "bk-1", "host-1", "223.50", settlement.PayoutCompleted)
	seedPayout(t, mem, "p-2", "bk-2", "host-1", "100.00", settlement.PayoutPaid)
	// PENDING rows do not count toward totals
	seedPayout(t, mem, "p-3", "bk-3", "host-1", "50.00", settlement.PayoutPending)

	result, err := backfill.NewReconciler(mem, calc).SyncHostTotalsFromPayouts(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.HostsChecked)
	assert.Equal(t, 1, result.HostsUpdated)

	host, err := mem.GetHost(context.Background(), "host-1")
	require.NoError(t, err)
	assert.True(t, host.TotalPayoutsAmount.Equal(d("323.50")), "got %s", host.TotalPayoutsAmount)
	assert.Equal(t, 2, host.TotalPayoutsCount)
	assert.Equal(t, 7, host.TotalTrips, "sync never touches the trip counter")

	entries := mem.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, settlement.AuditHostTotalsSynced, entries[0].Action)
}

func TestSyncHostTotals_ResetsHostWithNoLedgerRows(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())

	mem.PutHost(settlement.RentalHost{
		ID: "host-ghost", FleetSize: 1,
		TotalPayoutsAmount: d("400.00"), TotalPayoutsCount: 3,
	})

	result, err := backfill.NewReconciler(mem, calc).SyncHostTotalsFromPayouts(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.HostsUpdated)

	host, err := mem.GetHost(context.Background(), "host-ghost")
	require.NoError(t, err)
	assert.True(t, host.TotalPayoutsAmount.IsZero())
	assert.Equal(t, 0, host.TotalPayoutsCount)
}

func TestSyncHostTotals_NoopWhenCountersMatch(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())

	mem.PutHost(settlement.RentalHost{
		ID: "host-1", FleetSize: 3,
		TotalPayoutsAmount: d("223.50"), TotalPayoutsCount: 1,
	})
	seedPayout(t, mem, "p-1", "bk-1", "host-1", "223.50", settlement.PayoutCompleted)

	result, err := backfill.NewReconciler(mem, calc).SyncHostTotalsFromPayouts(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 0, result.HostsUpdated)
	require.Len(t, result.Diffs, 1)
	assert.False(t, result.Diffs[0].Changed)
	assert.Empty(t, mem.AuditEntries())
}

func TestSyncHostTotals_DryRunReportsWithoutWriting(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())

	mem.PutHost(settlement.RentalHost{
		ID: "host-1", FleetSize: 3,
		TotalPayoutsAmount: d("999.99"), TotalPayoutsCount: 7,
	})
	seedPayout(t, mem, "p-1", "bk-1", "host-1", "223.50", settlement.PayoutCompleted)

	result, err := backfill.NewReconciler(mem, calc).SyncHostTotalsFromPayouts(context.Background(), true)
	require.NoError(t, err)

	require.Len(t, result.Diffs, 1)
	assert.True(t, result.Diffs[0].Changed)
	assert.Equal(t, 0, result.HostsUpdated)

	host, err := mem.GetHost(context.Background(), "host-1")
	require.NoError(t, err)
	assert.True(t, host.TotalPayoutsAmount.Equal(d("999.99")))
}

// =============================================================================
// RECALCULATE FROM BOOKINGS
// =============================================================================

func TestRecalculateHostPayouts_RewritesStaleRows(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())

	// GIVEN: A host that grew into Platinum after its payout was created at
	// the Standard rate
	mem.PutHost(settlement.RentalHost{
		ID: "host-1", FleetSize: 60,
		TotalPayoutsAmount: d("223.50"), TotalPayoutsCount: 1, TotalTrips: 1,
	})
	mem.PutBooking(settledBooking("bk-1", "host-1", "300", tripEnd(30)))
	err := mem.InsertPayout(context.Background(), settlement.RentalPayout{
		ID: "p-1", BookingID: "bk-1", HostID: "host-1",
		GrossEarnings: d("300.00"), PlatformFee: d("75.00"),
		ProcessingFee: d("1.50"), NetPayout: d("223.50"), Amount: d("223.50"),
		Status: settlement.PayoutCompleted,
	})
	require.NoError(t, err)

	result, err := backfill.NewReconciler(mem, calc).RecalculateHostPayouts(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.HostsProcessed)
	assert.Equal(t, 1, result.HostsUpdated)
	assert.Equal(t, 1, result.PayoutsRewritten)

	// Payout row now reflects the 15% Platinum rate
	payout, err := mem.GetPayoutByBooking(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.True(t, payout.PlatformFee.Equal(d("45.00")), "got %s", payout.PlatformFee)
	assert.True(t, payout.NetPayout.Equal(d("253.50")))

	host, err := mem.GetHost(context.Background(), "host-1")
	require.NoError(t, err)
	assert.True(t, host.TotalPayoutsAmount.Equal(d("253.50")))
	assert.Equal(t, 1, host.TotalPayoutsCount)
	assert.Equal(t, 1, host.TotalTrips)

	entries := mem.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, settlement.AuditHostTotalsRecalculated, entries[0].Action)
}

func TestRecalculateHostPayouts_SkipsBookingsWithoutPayoutRows(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())

	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})
	mem.PutBooking(settledBooking("bk-no-payout", "host-1", "300", tripEnd(30)))

	result, err := backfill.NewReconciler(mem, calc).RecalculateHostPayouts(context.Background(), false)
	require.NoError(t, err)

	// Creating missing rows is the synthesizer's job
	assert.Equal(t, 0, result.PayoutsRewritten)
	assert.Empty(t, mem.ListPayouts())
}

func TestRecalculateHostPayouts_UpdatesTripCount(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())

	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3, TotalTrips: 99})
	mem.PutBooking(settledBooking("bk-1", "host-1", "300", tripEnd(30)))
	mem.PutBooking(settledBooking("bk-2", "host-1", "120", tripEnd(20)))
	seedPayout(t, mem, "p-1", "bk-1", "host-1", "223.50", settlement.PayoutCompleted)
	seedPayout(t, mem, "p-2", "bk-2", "host-1", "88.50", settlement.PayoutCompleted)

	_, err := backfill.NewReconciler(mem, calc).RecalculateHostPayouts(context.Background(), false)
	require.NoError(t, err)

	host, err := mem.GetHost(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Equal(t, 2, host.TotalTrips, "trip count rebuilt from settled bookings")
}

func TestRecalculateHostPayouts_DryRunWritesNothing(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())

	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 60})
	mem.PutBooking(settledBooking("bk-1", "host-1", "300", tripEnd(30)))
	err := mem.InsertPayout(context.Background(), settlement.RentalPayout{
		ID: "p-1", BookingID: "bk-1", HostID: "host-1",
		GrossEarnings: d("300.00"), PlatformFee: d("75.00"),
		ProcessingFee: d("1.50"), NetPayout: d("223.50"), Amount: d("223.50"),
		Status: settlement.PayoutCompleted,
	})
	require.NoError(t, err)

	result, err := backfill.NewReconciler(mem, calc).RecalculateHostPayouts(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.PayoutsRewritten) // reported, not applied
	assert.Equal(t, 0, result.HostsUpdated)

	payout, err := mem.GetPayoutByBooking(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.True(t, payout.PlatformFee.Equal(d("75.00")))
}

// Guards against decimal zero-value surprises in diff accumulation.
func TestHostTotalsDiff_ZeroValueAmountsAreZero(t *testing.T) {
	var diff backfill.HostTotalsDiff
	assert.True(t, diff.PreviousAmount.Equal(decimal.Zero))
	assert.True(t, diff.RecomputedAmount.Equal(decimal.Zero))
}
