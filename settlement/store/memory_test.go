package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveway/settlement-engine/settlement"
	"github.com/driveway/settlement-engine/settlement/store"
)

func TestMemory_QueryBookingsDeterministicOrder(t *testing.T) {
	mem := store.NewMemory()
	end := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)

	// Same trip end: order falls back to ID
	for _, id := range []string{"c", "a", "b"} {
		mem.PutBooking(settlement.Booking{ID: settlement.BookingID(id), TripEnd: end})
	}
	mem.PutBooking(settlement.Booking{ID: "z-early", TripEnd: end.AddDate(0, 0, -1)})

	page, err := mem.QueryBookings(context.Background(), settlement.BookingFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, settlement.BookingID("z-early"), page[0].ID)
	assert.Equal(t, settlement.BookingID("a"), page[1].ID)
	assert.Equal(t, settlement.BookingID("b"), page[2].ID)
	assert.Equal(t, settlement.BookingID("c"), page[3].ID)
}

func TestMemory_InsertPayoutEnforcesUniqueness(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.InsertPayout(ctx, settlement.RentalPayout{ID: "p-1", BookingID: "bk-1"}))

	err := mem.InsertPayout(ctx, settlement.RentalPayout{ID: "p-2", BookingID: "bk-1"})
	assert.ErrorIs(t, err, settlement.ErrDuplicatePayout)
}

func TestTxMemory_RollsBackOnError(t *testing.T) {
	mem := store.NewTxMemory()
	ctx := context.Background()
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	boom := errors.New("boom")
	err := mem.WithTx(ctx, func(s settlement.Store) error {
		if err := s.IncrementHostPayoutCounters(ctx, "host-1", settlement.CounterDelta{
			Amount: settlement.MustMoney("100"), Count: 1, Trips: 1,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	host, err := mem.GetHost(ctx, "host-1")
	require.NoError(t, err)
	assert.True(t, host.TotalPayoutsAmount.IsZero(), "increment must be rolled back")
	assert.Equal(t, 0, host.TotalPayoutsCount)
}

func TestTxMemory_CommitsOnSuccess(t *testing.T) {
	mem := store.NewTxMemory()
	ctx := context.Background()
	mem.PutHost(settlement.RentalHost{ID: "host-1", FleetSize: 3})

	err := mem.WithTx(ctx, func(s settlement.Store) error {
		return s.IncrementHostPayoutCounters(ctx, "host-1", settlement.CounterDelta{
			Amount: settlement.MustMoney("100"), Count: 1, Trips: 1,
		})
	})
	require.NoError(t, err)

	host, err := mem.GetHost(ctx, "host-1")
	require.NoError(t, err)
	assert.True(t, host.TotalPayoutsAmount.Equal(settlement.MustMoney("100")))
}
