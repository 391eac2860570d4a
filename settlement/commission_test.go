package settlement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveway/settlement-engine/settlement"
)

func TestCommissionTierResolver_Boundaries(t *testing.T) {
	resolver := settlement.NewCommissionTierResolver(settlement.DefaultSettings())

	cases := []struct {
		fleetSize int
		tier      settlement.TierName
		rate      string
	}{
		{0, settlement.TierStandard, "0.25"},
		{1, settlement.TierStandard, "0.25"},
		{9, settlement.TierStandard, "0.25"},
		{10, settlement.TierGold, "0.20"}, // threshold is inclusive
		{49, settlement.TierGold, "0.20"},
		{50, settlement.TierPlatinum, "0.15"},
		{99, settlement.TierPlatinum, "0.15"},
		{100, settlement.TierDiamond, "0.10"},
		{5000, settlement.TierDiamond, "0.10"},
	}

	for _, tc := range cases {
		tier := resolver.Resolve(tc.fleetSize)
		assert.Equal(t, tc.tier, tier.Name, "fleet size %d", tc.fleetSize)
		assertMoney(t, tc.rate, tier.Rate, "fleet size %d", tc.fleetSize)
	}
}

func TestCommissionTierResolver_NegativeFleetClampedToStandard(t *testing.T) {
	resolver := settlement.NewCommissionTierResolver(settlement.DefaultSettings())

	tier := resolver.Resolve(-5)
	assert.Equal(t, settlement.TierStandard, tier.Name)
}

func TestCommissionTierResolver_HostKeepsComplementsRate(t *testing.T) {
	resolver := settlement.NewCommissionTierResolver(settlement.DefaultSettings())

	for _, tier := range resolver.AllTiers() {
		sum := tier.Rate.Add(tier.HostKeeps)
		assert.True(t, sum.Equal(d("1")), "tier %s: rate+hostKeeps = %s", tier.Name, sum)
	}
}

func TestCommissionTierResolver_AllTiersPartitionFleetSizes(t *testing.T) {
	resolver := settlement.NewCommissionTierResolver(settlement.DefaultSettings())
	tiers := resolver.AllTiers()
	require.Len(t, tiers, 4)

	// Each tier's range ends where the next begins
	for i := 0; i < len(tiers)-1; i++ {
		require.NotNil(t, tiers[i].MaxVehicles, "tier %s should be bounded", tiers[i].Name)
		assert.Equal(t, tiers[i+1].MinVehicles-1, *tiers[i].MaxVehicles)
	}
	assert.Nil(t, tiers[len(tiers)-1].MaxVehicles, "top tier is open-ended")

	// hostKeeps is monotone non-decreasing as fleet grows
	for i := 0; i < len(tiers)-1; i++ {
		assert.False(t, tiers[i].HostKeeps.GreaterThan(tiers[i+1].HostKeeps),
			"hostKeeps must not decrease from %s to %s", tiers[i].Name, tiers[i+1].Name)
	}
}
