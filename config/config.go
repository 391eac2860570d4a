/*
Package config handles configuration management for the settlement engine.

PURPOSE:
  Loads runtime settings from environment variables (with defaults) and
  builds the immutable settlement.Settings object that is injected into
  every component. The rate card defaults mirror the production schedule;
  environment overrides exist for the values operators actually tune.

ENVIRONMENT VARIABLES:
  PORT                       HTTP server port (default 8080)
  DATABASE_PATH              SQLite database path (default settlement.db)
  SCHEDULER_ENABLED          Run the cron scheduler (default true)
  PAYOUT_JOB_SCHEDULE        Cron spec for payout synthesis (default 02:30 daily)
  SYNC_TOTALS_JOB_SCHEDULE   Cron spec for host-totals sync (default 03:00 daily)
  SERVICE_FEE_RATE           Guest service fee rate
  PROCESSING_FEE_FIXED       Flat processing fee
  INSURANCE_PLATFORM_SHARE   Platform's share of insurance fees
  DEFAULT_TAX_RATE           Fallback combined tax rate
  PAYOUT_HOLD_DAYS           Days between trip end and payout eligibility
  ALLOW_DATA_DEFAULTS        Substitute defaults for missing host/location data

SEE ALSO:
  - settlement/settings.go: The full rate card and its validation
*/
package config

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/driveway/settlement-engine/settlement"
)

// Config holds all runtime configuration for the engine.
type Config struct {
	Port         int    `mapstructure:"PORT"`
	DatabasePath string `mapstructure:"DATABASE_PATH"`

	SchedulerEnabled      bool   `mapstructure:"SCHEDULER_ENABLED"`
	PayoutJobSchedule     string `mapstructure:"PAYOUT_JOB_SCHEDULE"`
	SyncTotalsJobSchedule string `mapstructure:"SYNC_TOTALS_JOB_SCHEDULE"`

	ServiceFeeRate         float64 `mapstructure:"SERVICE_FEE_RATE"`
	ProcessingFeeFixed     float64 `mapstructure:"PROCESSING_FEE_FIXED"`
	InsurancePlatformShare float64 `mapstructure:"INSURANCE_PLATFORM_SHARE"`
	DefaultTaxRate         float64 `mapstructure:"DEFAULT_TAX_RATE"`
	PayoutHoldDays         int     `mapstructure:"PAYOUT_HOLD_DAYS"`
	AllowDataDefaults      bool    `mapstructure:"ALLOW_DATA_DEFAULTS"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	base := settlement.DefaultSettings()

	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DATABASE_PATH", "settlement.db")
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("PAYOUT_JOB_SCHEDULE", "30 2 * * *")     // At 02:30 daily.
	viper.SetDefault("SYNC_TOTALS_JOB_SCHEDULE", "0 3 * * *") // At 03:00 daily.
	viper.SetDefault("SERVICE_FEE_RATE", base.ServiceFeeRate.InexactFloat64())
	viper.SetDefault("PROCESSING_FEE_FIXED", base.ProcessingFeeFixed.InexactFloat64())
	viper.SetDefault("INSURANCE_PLATFORM_SHARE", base.InsurancePlatformShare.InexactFloat64())
	viper.SetDefault("DEFAULT_TAX_RATE", base.DefaultTaxRate.InexactFloat64())
	viper.SetDefault("PAYOUT_HOLD_DAYS", base.PayoutHoldDays)
	viper.SetDefault("ALLOW_DATA_DEFAULTS", base.AllowDataDefaults)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal.
	for _, key := range []string{
		"PORT", "DATABASE_PATH", "SCHEDULER_ENABLED",
		"PAYOUT_JOB_SCHEDULE", "SYNC_TOTALS_JOB_SCHEDULE",
		"SERVICE_FEE_RATE", "PROCESSING_FEE_FIXED", "INSURANCE_PLATFORM_SHARE",
		"DEFAULT_TAX_RATE", "PAYOUT_HOLD_DAYS", "ALLOW_DATA_DEFAULTS",
	} {
		_ = viper.BindEnv(key)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &config, nil
}

// FinancialSettings builds the settlement rate card from the default
// schedule with this config's overrides applied.
func (c *Config) FinancialSettings() (settlement.Settings, error) {
	settings := settlement.DefaultSettings()
	settings.ServiceFeeRate = decimal.NewFromFloat(c.ServiceFeeRate)
	settings.ProcessingFeeFixed = decimal.NewFromFloat(c.ProcessingFeeFixed)
	settings.InsurancePlatformShare = decimal.NewFromFloat(c.InsurancePlatformShare)
	settings.DefaultTaxRate = decimal.NewFromFloat(c.DefaultTaxRate)
	settings.PayoutHoldDays = c.PayoutHoldDays
	settings.AllowDataDefaults = c.AllowDataDefaults

	if err := settings.Validate(); err != nil {
		return settlement.Settings{}, err
	}
	return settings, nil
}
