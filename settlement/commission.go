/*
commission.go - Fleet-size commission tier resolution

PURPOSE:
  Maps a host's active fleet size to one of four commission tiers:

    Standard   [0, gold)        highest commission rate
    Gold       [gold, platinum)
    Platinum   [platinum, diamond)
    Diamond    [diamond, +inf)  lowest commission rate

  Thresholds are checked from the highest tier downward and the first tier
  whose minimum is met wins, so every non-negative fleet size lands in
  exactly one tier and a fleet exactly at a threshold gets the higher tier.

INVARIANT:
  The four tiers partition [0, +inf) with no gaps or overlaps, and
  hostKeeps = 1 - rate is non-decreasing as fleet size grows (enforced by
  Settings.Validate).

SEE ALSO:
  - settings.go: CommissionSchedule thresholds and rates
  - calculator.go: Applies the resolved rate to the base rental
*/
package settlement

import "github.com/shopspring/decimal"

// =============================================================================
// COMMISSION TIER - Derived from settings, never stored
// =============================================================================

type TierName string

const (
	TierStandard TierName = "Standard"
	TierGold     TierName = "Gold"
	TierPlatinum TierName = "Platinum"
	TierDiamond  TierName = "Diamond"
)

type CommissionTier struct {
	Name        TierName
	MinVehicles int
	MaxVehicles *int // nil for the open-ended top tier
	Rate        decimal.Decimal
	HostKeeps   decimal.Decimal // 1 - Rate
}

// =============================================================================
// RESOLVER
// =============================================================================

type CommissionTierResolver struct {
	schedule CommissionSchedule
}

func NewCommissionTierResolver(settings Settings) *CommissionTierResolver {
	return &CommissionTierResolver{schedule: settings.Commission}
}

// Resolve returns the tier for a fleet size. Negative sizes are clamped to
// zero rather than rejected; a host with bad fleet data still settles at the
// Standard rate.
func (r *CommissionTierResolver) Resolve(fleetSize int) CommissionTier {
	if fleetSize < 0 {
		fleetSize = 0
	}

	switch {
	case fleetSize >= r.schedule.DiamondMinVehicles:
		return r.tier(TierDiamond)
	case fleetSize >= r.schedule.PlatinumMinVehicles:
		return r.tier(TierPlatinum)
	case fleetSize >= r.schedule.GoldMinVehicles:
		return r.tier(TierGold)
	default:
		return r.tier(TierStandard)
	}
}

// AllTiers returns the four tiers in ascending fleet-size order, for
// display and reporting.
func (r *CommissionTierResolver) AllTiers() []CommissionTier {
	return []CommissionTier{
		r.tier(TierStandard),
		r.tier(TierGold),
		r.tier(TierPlatinum),
		r.tier(TierDiamond),
	}
}

func (r *CommissionTierResolver) tier(name TierName) CommissionTier {
	one := decimal.NewFromInt(1)

	var t CommissionTier
	switch name {
	case TierGold:
		max := r.schedule.PlatinumMinVehicles - 1
		t = CommissionTier{Name: TierGold, MinVehicles: r.schedule.GoldMinVehicles, MaxVehicles: &max, Rate: r.schedule.GoldRate}
	case TierPlatinum:
		max := r.schedule.DiamondMinVehicles - 1
		t = CommissionTier{Name: TierPlatinum, MinVehicles: r.schedule.PlatinumMinVehicles, MaxVehicles: &max, Rate: r.schedule.PlatinumRate}
	case TierDiamond:
		t = CommissionTier{Name: TierDiamond, MinVehicles: r.schedule.DiamondMinVehicles, Rate: r.schedule.DiamondRate}
	default:
		max := r.schedule.GoldMinVehicles - 1
		t = CommissionTier{Name: TierStandard, MinVehicles: 0, MaxVehicles: &max, Rate: r.schedule.StandardRate}
	}

	t.HostKeeps = one.Sub(t.Rate)
	return t
}
