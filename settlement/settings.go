/*
settings.go - Platform financial settings (dependency-injected, never global)

PURPOSE:
  One immutable configuration object holding every rate and threshold the
  calculator needs: the four-tier commission schedule, guest service fee,
  processing fee, insurance rates and revenue share, and the tax tables.

  The settings object is constructed by the caller (config loader, test) and
  passed into NewCalculator. There is no settings singleton and no hidden
  database read; swapping settings in a test is trivial.

DEFAULTING POLICY:
  Bookings sometimes arrive with missing host or location data. Rather than
  failing those records, the engine substitutes DefaultFleetSize and
  DefaultCity/DefaultState - but only when AllowDataDefaults is true, and
  every substitution is logged. Operators who suspect the missing data masks
  an integrity bug can turn the toggle off and let those records fail.

SEE ALSO:
  - commission.go: Tier resolution over the schedule
  - tax.go: Tax table resolution
  - config/config.go: Environment-driven construction
*/
package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMMISSION SCHEDULE - Four tiers partitioning fleet size
// =============================================================================

// CommissionSchedule defines the vehicle-count thresholds and commission
// rates for the four tiers. Standard covers [0, GoldMinVehicles); each named
// minimum opens the next tier. Rates must be non-increasing as fleet size
// grows so that hostKeeps is monotone.
type CommissionSchedule struct {
	StandardRate decimal.Decimal

	GoldMinVehicles int
	GoldRate        decimal.Decimal

	PlatinumMinVehicles int
	PlatinumRate        decimal.Decimal

	DiamondMinVehicles int
	DiamondRate        decimal.Decimal
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings is the immutable platform financial configuration, loaded once per
// run and injected into every component.
type Settings struct {
	Commission CommissionSchedule

	ServiceFeeRate decimal.Decimal // applied to base rental, charged to guest

	ProcessingFeeFixed   decimal.Decimal // flat fee deducted from host payout
	ProcessingFeePercent decimal.Decimal // reserved for card-rail pricing; 0 today

	InsuranceDailyRates    map[InsuranceType]decimal.Decimal
	InsurancePlatformShare decimal.Decimal // platform's cut of insurance fees

	DefaultTaxRate  decimal.Decimal
	StateTaxRates   map[string]decimal.Decimal // key: lowercase state code
	CityTaxOverride map[string]decimal.Decimal // key: lowercase "city_state"

	PayoutHoldDays int // delay between trip end and payout eligibility

	// Missing-data policy (see file header).
	AllowDataDefaults bool
	DefaultFleetSize  int
	DefaultCity       string
	DefaultState      string
}

// DefaultSettings returns the production rate card.
func DefaultSettings() Settings {
	return Settings{
		Commission: CommissionSchedule{
			StandardRate:        MustMoney("0.25"),
			GoldMinVehicles:     10,
			GoldRate:            MustMoney("0.20"),
			PlatinumMinVehicles: 50,
			PlatinumRate:        MustMoney("0.15"),
			DiamondMinVehicles:  100,
			DiamondRate:         MustMoney("0.10"),
		},
		ServiceFeeRate:       MustMoney("0.15"),
		ProcessingFeeFixed:   MustMoney("1.50"),
		ProcessingFeePercent: decimal.Zero,
		InsuranceDailyRates: map[InsuranceType]decimal.Decimal{
			InsuranceNone:    decimal.Zero,
			InsuranceBasic:   MustMoney("15.00"),
			InsurancePremium: MustMoney("25.00"),
		},
		InsurancePlatformShare: MustMoney("0.30"),
		DefaultTaxRate:         MustMoney("0.056"),
		StateTaxRates: map[string]decimal.Decimal{
			"az": MustMoney("0.056"),
			"ca": MustMoney("0.0725"),
			"nv": MustMoney("0.0685"),
			"tx": MustMoney("0.0625"),
		},
		CityTaxOverride: map[string]decimal.Decimal{
			"phoenix_az":    MustMoney("0.086"),
			"scottsdale_az": MustMoney("0.0805"),
			"tucson_az":     MustMoney("0.087"),
			"las vegas_nv":  MustMoney("0.08375"),
		},
		PayoutHoldDays:    3,
		AllowDataDefaults: true,
		DefaultFleetSize:  1,
		DefaultCity:       "Phoenix",
		DefaultState:      "AZ",
	}
}

// Validate checks schedule ordering and rate sanity.
func (s Settings) Validate() error {
	if s.Commission.GoldMinVehicles <= 0 ||
		s.Commission.PlatinumMinVehicles <= s.Commission.GoldMinVehicles ||
		s.Commission.DiamondMinVehicles <= s.Commission.PlatinumMinVehicles {
		return fmt.Errorf("%w: tier thresholds must be strictly increasing", ErrInvalidSettings)
	}

	one := decimal.NewFromInt(1)
	for name, rate := range map[string]decimal.Decimal{
		"standard commission": s.Commission.StandardRate,
		"gold commission":     s.Commission.GoldRate,
		"platinum commission": s.Commission.PlatinumRate,
		"diamond commission":  s.Commission.DiamondRate,
		"service fee":         s.ServiceFeeRate,
		"insurance share":     s.InsurancePlatformShare,
		"default tax":         s.DefaultTaxRate,
	} {
		if rate.IsNegative() || rate.GreaterThan(one) {
			return fmt.Errorf("%w: %s rate %s outside [0,1]", ErrInvalidSettings, name, rate)
		}
	}

	// hostKeeps must be non-decreasing across tier boundaries.
	if s.Commission.GoldRate.GreaterThan(s.Commission.StandardRate) ||
		s.Commission.PlatinumRate.GreaterThan(s.Commission.GoldRate) ||
		s.Commission.DiamondRate.GreaterThan(s.Commission.PlatinumRate) {
		return fmt.Errorf("%w: commission rates must not increase with fleet size", ErrInvalidSettings)
	}

	if s.ProcessingFeeFixed.IsNegative() {
		return fmt.Errorf("%w: processing fee must be non-negative", ErrInvalidSettings)
	}
	if s.PayoutHoldDays < 0 {
		return fmt.Errorf("%w: payout hold days must be non-negative", ErrInvalidSettings)
	}
	return nil
}
