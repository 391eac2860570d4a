/*
tax.go - Location tax resolution with override precedence

PURPOSE:
  Resolves an effective combined tax rate for a (city, state) pair from the
  in-memory tax tables. Precedence, highest first:

    1. City override  - exact "{city}_{state}" key in CityTaxOverride
    2. State rate     - state key in StateTaxRates
    3. Default rate   - DefaultTaxRate

  Keys are normalized to lowercase, so "Phoenix"/"AZ" and "phoenix"/"az"
  resolve identically. No network calls, no caching: the settings are already
  in memory and resolution is a couple of map lookups.

BREAKDOWN:
  The resolved TaxConfiguration always satisfies
  combinedRate = stateRate + cityRate, so downstream reporting can attribute
  the collected tax to jurisdictions.

SEE ALSO:
  - settings.go: Tax tables
  - calculator.go: Applies the combined rate to the pre-tax subtotal
*/
package settlement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TAX CONFIGURATION - Resolved rates for one location
// =============================================================================

type TaxConfiguration struct {
	State        string
	City         string
	StateRate    decimal.Decimal
	CityRate     decimal.Decimal
	CombinedRate decimal.Decimal
}

// =============================================================================
// TAX RESOLVER
// =============================================================================

type TaxResolver struct {
	settings Settings
}

func NewTaxResolver(settings Settings) *TaxResolver {
	return &TaxResolver{settings: settings}
}

// Resolve returns the effective tax configuration for a city/state pair.
func (r *TaxResolver) Resolve(city, state string) TaxConfiguration {
	normCity := strings.ToLower(strings.TrimSpace(city))
	normState := strings.ToLower(strings.TrimSpace(state))

	stateRate := r.settings.DefaultTaxRate
	if rate, ok := r.settings.StateTaxRates[normState]; ok {
		stateRate = rate
	}

	cfg := TaxConfiguration{
		State:     state,
		City:      city,
		StateRate: stateRate,
		CityRate:  decimal.Zero,
	}

	cityKey := fmt.Sprintf("%s_%s", normCity, normState)
	if override, ok := r.settings.CityTaxOverride[cityKey]; ok {
		cfg.CombinedRate = override
		cfg.CityRate = override.Sub(stateRate)
		return cfg
	}

	cfg.CombinedRate = stateRate
	return cfg
}
