package backfill_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveway/settlement-engine/backfill"
	"github.com/driveway/settlement-engine/settlement"
	"github.com/driveway/settlement-engine/settlement/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestCalculator(t *testing.T, settings settlement.Settings) *settlement.Calculator {
	calc, err := settlement.NewCalculator(settings)
	require.NoError(t, err)
	return calc
}

func d(s string) decimal.Decimal {
	return settlement.MustMoney(s)
}

func tripEnd(daysAgo int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -daysAgo).Truncate(time.Second)
}

// settledBooking returns a COMPLETED+PAID booking whose derived fields are
// filled by fill (correct or deliberately drifted).
func settledBooking(id string, host string, base string, end time.Time) settlement.Booking {
	return settlement.Booking{
		ID:            settlement.BookingID(id),
		HostID:        settlement.HostID(host),
		Status:        settlement.BookingCompleted,
		PaymentStatus: settlement.PaymentPaid,
		BaseRental:    d(base),
		NumberOfDays:  2,
		City:          "Mesa",
		State:         "AZ",
		TripStart:     end.AddDate(0, 0, -2),
		TripEnd:       end,
	}
}

// withCorrectFinancials fills the persisted derived fields from the calculator.
func withCorrectFinancials(t *testing.T, calc *settlement.Calculator, b settlement.Booking, fleetSize int) settlement.Booking {
	fin, err := calc.CalculateBookingFinancials(settlement.BookingInput{
		BaseRental:    b.BaseRental,
		DeliveryFee:   b.DeliveryFee,
		InsuranceFee:  b.InsuranceFee,
		NumberOfDays:  b.NumberOfDays,
		City:          b.City,
		State:         b.State,
		HostFleetSize: fleetSize,
	})
	require.NoError(t, err)
	b.ServiceFee = fin.GuestServiceFee
	b.Taxes = fin.TaxAmount
	b.TotalAmount = fin.GuestTotal
	return b
}

// =============================================================================
// DRIFT CORRECTION
// =============================================================================

func TestBackfillBookings_CorrectsDriftedFields(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	// GIVEN: One booking with a drifted service fee (legacy 10% instead of 15%)
	drifted := settledBooking("bk-1", "host-1", "300", tripEnd(10))
	drifted.ServiceFee = d("30.00")
	drifted.Taxes = d("18.48")
	drifted.TotalAmount = d("348.48")
	mem.PutBooking(drifted)

	// And one whose stored values are already correct
	mem.PutBooking(withCorrectFinancials(t, calc, settledBooking("bk-2", "host-1", "120", tripEnd(5)), 3))

	orch := backfill.NewOrchestrator(mem, calc)
	summary, err := orch.BackfillBookings(context.Background(), backfill.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Errors)

	// THEN: The stored record now carries the recomputed values
	got, ok := mem.GetBooking("bk-1")
	require.True(t, ok)
	assert.True(t, got.ServiceFee.Equal(d("45.00")), "service fee %s", got.ServiceFee)
	assert.True(t, got.Taxes.Equal(d("21.00")), "taxes %s", got.Taxes)
	assert.True(t, got.TotalAmount.Equal(d("396.00")), "total %s", got.TotalAmount)

	// And exactly one audit entry documents the correction
	entries := mem.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, settlement.AuditBookingFinancialsCorrected, entries[0].Action)
	assert.Equal(t, "bk-1", entries[0].EntityID)
}

func TestBackfillBookings_SecondRunIsIdempotent(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	drifted := settledBooking("bk-1", "host-1", "300", tripEnd(10))
	drifted.ServiceFee = d("30.00")
	mem.PutBooking(drifted)

	orch := backfill.NewOrchestrator(mem, calc)

	first, err := orch.BackfillBookings(context.Background(), backfill.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Updated)

	second, err := orch.BackfillBookings(context.Background(), backfill.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 1, second.Skipped)
}

func TestBackfillBookings_DryRunWritesNothing(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	drifted := settledBooking("bk-1", "host-1", "300", tripEnd(10))
	drifted.ServiceFee = d("30.00")
	mem.PutBooking(drifted)

	orch := backfill.NewOrchestrator(mem, calc)
	summary, err := orch.BackfillBookings(context.Background(), backfill.Options{DryRun: true})
	require.NoError(t, err)

	// Counted as an update, with the would-be changes reported
	assert.Equal(t, 1, summary.Updated)
	require.Len(t, summary.Results, 1)
	assert.NotEmpty(t, summary.Results[0].Changes)

	// But nothing persisted
	got, _ := mem.GetBooking("bk-1")
	assert.True(t, got.ServiceFee.Equal(d("30.00")))
	assert.Empty(t, mem.AuditEntries())
}

func TestBackfillBookings_ToleratesOneCentDifference(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	// Stored values off by exactly one cent are not drift
	b := withCorrectFinancials(t, calc, settledBooking("bk-1", "host-1", "300", tripEnd(10)), 3)
	b.ServiceFee = b.ServiceFee.Add(d("0.01"))
	mem.PutBooking(b)

	summary, err := backfill.NewOrchestrator(mem, calc).BackfillBookings(context.Background(), backfill.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Updated)
}

// =============================================================================
// ERROR ISOLATION AND MISSING DATA
// =============================================================================

func TestBackfillBookings_RecordErrorsDoNotAbortRun(t *testing.T) {
	mem := store.NewTxMemory()
	settings := settlement.DefaultSettings()
	settings.AllowDataDefaults = false
	calc := newTestCalculator(t, settings)
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	// GIVEN: A booking with no host (fails with defaults disabled) and a good one
	orphan := settledBooking("bk-orphan", "", "200", tripEnd(8))
	mem.PutBooking(orphan)
	drifted := settledBooking("bk-good", "host-1", "300", tripEnd(4))
	drifted.ServiceFee = d("30.00")
	mem.PutBooking(drifted)

	summary, err := backfill.NewOrchestrator(mem, calc).BackfillBookings(context.Background(), backfill.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Errors)
}

func TestBackfillBookings_MissingHostFallsBackToDefaultFleet(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings()) // defaults allowed

	// Host record absent entirely; default fleet size 1 -> Standard tier
	drifted := settledBooking("bk-1", "host-missing", "300", tripEnd(10))
	drifted.ServiceFee = d("30.00")
	mem.PutBooking(drifted)

	summary, err := backfill.NewOrchestrator(mem, calc).BackfillBookings(context.Background(), backfill.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	got, _ := mem.GetBooking("bk-1")
	assert.True(t, got.ServiceFee.Equal(d("45.00")))
}

func TestBackfillBookings_MissingLocationDefaultsToPhoenix(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	b := settledBooking("bk-1", "host-1", "100", tripEnd(6))
	b.City = ""
	b.State = ""
	mem.PutBooking(b)

	summary, err := backfill.NewOrchestrator(mem, calc).BackfillBookings(context.Background(), backfill.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Updated)

	// Phoenix/AZ override 0.086: subtotal 115.00 -> tax 9.89
	got, _ := mem.GetBooking("bk-1")
	assert.True(t, got.Taxes.Equal(d("9.89")), "taxes %s", got.Taxes)
}

// =============================================================================
// FILTERS, PAGINATION, PREVIEW
// =============================================================================

func TestBackfillBookings_HostAndDateFilters(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})
	mem.PutHost(settlement.RentalHost{ID: "host-2", FleetSize: 3})

	old := settledBooking("bk-old", "host-1", "100", tripEnd(100))
	recent := settledBooking("bk-recent", "host-1", "100", tripEnd(5))
	other := settledBooking("bk-other", "host-2", "100", tripEnd(5))
	mem.PutBooking(old)
	mem.PutBooking(recent)
	mem.PutBooking(other)

	hostID := settlement.HostID("host-1")
	start := tripEnd(30)
	summary, err := backfill.NewOrchestrator(mem, calc).BackfillBookings(context.Background(), backfill.Options{
		HostID:    &hostID,
		StartDate: &start,
	})
	require.NoError(t, err)

	require.Equal(t, 1, summary.Processed)
	assert.Equal(t, settlement.BookingID("bk-recent"), summary.Results[0].BookingID)
}

func TestBackfillBookings_PaginatesAcrossBatches(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	for i := 0; i < 7; i++ {
		b := settledBooking(string(rune('a'+i))+"-bk", "host-1", "300", tripEnd(20-i))
		b.ServiceFee = d("30.00")
		mem.PutBooking(b)
	}

	summary, err := backfill.NewOrchestrator(mem, calc).BackfillBookings(context.Background(), backfill.Options{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Processed)
	assert.Equal(t, 7, summary.Updated)
}

func TestPreview_ForcesDryRunAndCap(t *testing.T) {
	mem := store.NewTxMemory()
	calc := newTestCalculator(t, settlement.DefaultSettings())
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	drifted := settledBooking("bk-1", "host-1", "300", tripEnd(10))
	drifted.ServiceFee = d("30.00")
	mem.PutBooking(drifted)

	summary, err := backfill.NewOrchestrator(mem, calc).Preview(context.Background(), backfill.Options{DryRun: false})
	require.NoError(t, err)

	assert.True(t, summary.DryRun, "preview must never write")
	got, _ := mem.GetBooking("bk-1")
	assert.True(t, got.ServiceFee.Equal(d("30.00")))
}
