package settlement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driveway/settlement-engine/settlement"
)

func TestTaxResolver_CityOverrideWins(t *testing.T) {
	resolver := settlement.NewTaxResolver(settlement.DefaultSettings())

	cfg := resolver.Resolve("Phoenix", "AZ")
	assertMoney(t, "0.086", cfg.CombinedRate)
	assertMoney(t, "0.056", cfg.StateRate)
	assertMoney(t, "0.03", cfg.CityRate) // override minus state rate
}

func TestTaxResolver_StateRateWithoutOverride(t *testing.T) {
	resolver := settlement.NewTaxResolver(settlement.DefaultSettings())

	cfg := resolver.Resolve("Reno", "NV")
	assertMoney(t, "0.0685", cfg.CombinedRate)
	assert.True(t, cfg.CityRate.IsZero())
}

func TestTaxResolver_DefaultRateForUnknownState(t *testing.T) {
	resolver := settlement.NewTaxResolver(settlement.DefaultSettings())

	cfg := resolver.Resolve("Portland", "OR")
	assertMoney(t, "0.056", cfg.CombinedRate)
}

func TestTaxResolver_NormalizesCase(t *testing.T) {
	resolver := settlement.NewTaxResolver(settlement.DefaultSettings())

	upper := resolver.Resolve("PHOENIX", "AZ")
	lower := resolver.Resolve("phoenix", "az")
	padded := resolver.Resolve("  Phoenix  ", " az ")

	assert.True(t, upper.CombinedRate.Equal(lower.CombinedRate))
	assert.True(t, upper.CombinedRate.Equal(padded.CombinedRate))
}

func TestTaxResolver_MultiWordCityKey(t *testing.T) {
	resolver := settlement.NewTaxResolver(settlement.DefaultSettings())

	cfg := resolver.Resolve("Las Vegas", "NV")
	assertMoney(t, "0.08375", cfg.CombinedRate)
}

func TestTaxResolver_BreakdownSumsToCombined(t *testing.T) {
	resolver := settlement.NewTaxResolver(settlement.DefaultSettings())

	for _, loc := range [][2]string{
		{"Phoenix", "AZ"}, {"Scottsdale", "AZ"}, {"Tucson", "AZ"},
		{"Las Vegas", "NV"}, {"Mesa", "AZ"}, {"Austin", "TX"}, {"Nowhere", "ZZ"},
	} {
		cfg := resolver.Resolve(loc[0], loc[1])
		sum := cfg.StateRate.Add(cfg.CityRate)
		assert.True(t, sum.Equal(cfg.CombinedRate),
			"%s/%s: state %s + city %s != combined %s", loc[0], loc[1], cfg.StateRate, cfg.CityRate, cfg.CombinedRate)
	}
}
