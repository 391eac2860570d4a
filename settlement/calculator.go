/*
calculator.go - Per-booking financial breakdown (pure, deterministic)

PURPOSE:
  Combines the tax and commission resolvers into the full settlement of a
  booking: what the guest is charged, what the platform keeps, what the host
  is paid. Every operation here is a pure function of its inputs and the
  injected Settings - no store access, no clock, no globals.

FORMULA (all steps rounded to 2 decimals):
  guestServiceFee      = round(baseRental * serviceFeeRate)
  subtotalBeforeTax    = baseRental + deliveryFee + insuranceFee + guestServiceFee
  taxAmount            = round(subtotalBeforeTax * combinedTaxRate)
  guestTotal           = subtotalBeforeTax + taxAmount
  platformCommission   = round(baseRental * tierRate)
  insuranceRevenue     = round(insuranceFee * insurancePlatformShare)
  totalPlatformRevenue = guestServiceFee + platformCommission + insuranceRevenue
  hostGrossEarnings    = baseRental
  hostNetPayout        = hostGrossEarnings - platformCommission - processingFeeFixed

MONEY CONSERVATION:
  Every dollar the guest pays lands somewhere:

    guestTotal = hostNetPayout + totalPlatformRevenue + processingFee
               + taxAmount + deliveryPassThrough + insurerShare

  The delivery fee passes through to fulfillment and the insurer share
  (insuranceFee - insuranceRevenue) to the underwriter; both legs are carried
  explicitly on the breakdown so the identity is exact. ConservationGap
  computes the residual, which must be zero for every settled booking.

SEE ALSO:
  - tax.go, commission.go: Rate resolution
  - backfill: Recomputes these values against stored records
*/
package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator is the pure settlement core. Construct one per rate card;
// callers inject it wherever settlement math is needed.
type Calculator struct {
	settings Settings
	taxes    *TaxResolver
	tiers    *CommissionTierResolver
}

func NewCalculator(settings Settings) (*Calculator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{
		settings: settings,
		taxes:    NewTaxResolver(settings),
		tiers:    NewCommissionTierResolver(settings),
	}, nil
}

// Settings returns the injected rate card.
func (c *Calculator) Settings() Settings { return c.settings }

// AllCommissionTiers returns the four tiers derived from current settings.
func (c *Calculator) AllCommissionTiers() []CommissionTier {
	return c.tiers.AllTiers()
}

// ResolveTax exposes tax resolution for reporting surfaces.
func (c *Calculator) ResolveTax(city, state string) TaxConfiguration {
	return c.taxes.Resolve(city, state)
}

// ResolveTier exposes tier resolution for reporting surfaces.
func (c *Calculator) ResolveTier(fleetSize int) CommissionTier {
	return c.tiers.Resolve(fleetSize)
}

// =============================================================================
// BOOKING FINANCIALS
// =============================================================================

// BookingInput carries the raw inputs to a booking settlement.
type BookingInput struct {
	BaseRental    decimal.Decimal
	DeliveryFee   decimal.Decimal
	InsuranceFee  decimal.Decimal
	NumberOfDays  int
	City          string
	State         string
	HostFleetSize int
}

// BookingFinancials is the full computed breakdown of one booking. It is a
// value object: created per invocation, never persisted wholesale. Only
// GuestServiceFee, TaxAmount, and GuestTotal are written back onto the
// booking record.
type BookingFinancials struct {
	// Guest side.
	BaseRental        decimal.Decimal
	DeliveryFee       decimal.Decimal
	InsuranceFee      decimal.Decimal
	GuestServiceFee   decimal.Decimal
	SubtotalBeforeTax decimal.Decimal
	TaxAmount         decimal.Decimal
	GuestTotal        decimal.Decimal

	// Platform side.
	PlatformCommission   decimal.Decimal
	InsuranceRevenue     decimal.Decimal
	TotalPlatformRevenue decimal.Decimal
	ProcessingFee        decimal.Decimal

	// Host side.
	HostGrossEarnings decimal.Decimal
	HostNetPayout     decimal.Decimal
	TaxableHostIncome decimal.Decimal // for 1099-style reporting

	// Pass-through legs (not platform revenue).
	DeliveryPassThrough decimal.Decimal
	InsurerShare        decimal.Decimal

	Tax  TaxConfiguration
	Tier CommissionTier
}

// ConservationGap returns guestTotal minus the sum of every leg the payment
// splits into. Zero for every correctly settled booking.
func (f *BookingFinancials) ConservationGap() decimal.Decimal {
	return f.GuestTotal.
		Sub(f.HostNetPayout).
		Sub(f.TotalPlatformRevenue).
		Sub(f.ProcessingFee).
		Sub(f.TaxAmount).
		Sub(f.DeliveryPassThrough).
		Sub(f.InsurerShare)
}

// CalculateBookingFinancials settles one booking.
func (c *Calculator) CalculateBookingFinancials(in BookingInput) (*BookingFinancials, error) {
	if in.NumberOfDays <= 0 {
		return nil, fmt.Errorf("%w: number of days must be positive, got %d", ErrInvalidBookingInput, in.NumberOfDays)
	}
	if in.BaseRental.IsNegative() || in.DeliveryFee.IsNegative() || in.InsuranceFee.IsNegative() {
		return nil, fmt.Errorf("%w: amounts must be non-negative", ErrInvalidBookingInput)
	}

	tax := c.taxes.Resolve(in.City, in.State)
	tier := c.tiers.Resolve(in.HostFleetSize)

	baseRental := Round2(in.BaseRental)
	deliveryFee := Round2(in.DeliveryFee)
	insuranceFee := Round2(in.InsuranceFee)

	guestServiceFee := Round2(baseRental.Mul(c.settings.ServiceFeeRate))
	subtotalBeforeTax := baseRental.Add(deliveryFee).Add(insuranceFee).Add(guestServiceFee)
	taxAmount := Round2(subtotalBeforeTax.Mul(tax.CombinedRate))
	guestTotal := subtotalBeforeTax.Add(taxAmount)

	platformCommission := Round2(baseRental.Mul(tier.Rate))
	insuranceRevenue := Round2(insuranceFee.Mul(c.settings.InsurancePlatformShare))
	totalPlatformRevenue := guestServiceFee.Add(platformCommission).Add(insuranceRevenue)

	processingFee := c.settings.ProcessingFeeFixed
	hostGrossEarnings := baseRental
	hostNetPayout := hostGrossEarnings.Sub(platformCommission).Sub(processingFee)

	return &BookingFinancials{
		BaseRental:        baseRental,
		DeliveryFee:       deliveryFee,
		InsuranceFee:      insuranceFee,
		GuestServiceFee:   guestServiceFee,
		SubtotalBeforeTax: subtotalBeforeTax,
		TaxAmount:         taxAmount,
		GuestTotal:        guestTotal,

		PlatformCommission:   platformCommission,
		InsuranceRevenue:     insuranceRevenue,
		TotalPlatformRevenue: totalPlatformRevenue,
		ProcessingFee:        processingFee,

		HostGrossEarnings: hostGrossEarnings,
		HostNetPayout:     hostNetPayout,
		TaxableHostIncome: hostGrossEarnings,

		DeliveryPassThrough: deliveryFee,
		InsurerShare:        insuranceFee.Sub(insuranceRevenue),

		Tax:  tax,
		Tier: tier,
	}, nil
}

// =============================================================================
// HOST PAYOUT
// =============================================================================

// PayoutBreakdown applies the commission and processing-fee logic to an
// aggregate gross amount across one or more bookings.
type PayoutBreakdown struct {
	BookingIDs     []BookingID
	GrossEarnings  decimal.Decimal
	CommissionRate decimal.Decimal
	PlatformFee    decimal.Decimal
	ProcessingFee  decimal.Decimal
	NetPayout      decimal.Decimal
	Tier           CommissionTier
}

// CalculateHostPayout computes the payout split for an aggregate gross
// earnings figure at the host's current fleet size.
func (c *Calculator) CalculateHostPayout(bookingIDs []BookingID, grossEarnings decimal.Decimal, fleetSize int) (*PayoutBreakdown, error) {
	if grossEarnings.IsNegative() {
		return nil, fmt.Errorf("%w: gross earnings must be non-negative", ErrInvalidBookingInput)
	}

	tier := c.tiers.Resolve(fleetSize)
	gross := Round2(grossEarnings)
	platformFee := Round2(gross.Mul(tier.Rate))
	processingFee := c.settings.ProcessingFeeFixed
	net := gross.Sub(platformFee).Sub(processingFee)

	return &PayoutBreakdown{
		BookingIDs:     bookingIDs,
		GrossEarnings:  gross,
		CommissionRate: tier.Rate,
		PlatformFee:    platformFee,
		ProcessingFee:  processingFee,
		NetPayout:      net,
		Tier:           tier,
	}, nil
}

// =============================================================================
// INSURANCE
// =============================================================================

// CalculateInsuranceFee returns dailyRate(type) * numberOfDays. The "none"
// type is always zero regardless of duration.
func (c *Calculator) CalculateInsuranceFee(insuranceType InsuranceType, numberOfDays int) (decimal.Decimal, error) {
	if insuranceType == InsuranceNone {
		return decimal.Zero, nil
	}
	if numberOfDays <= 0 {
		return decimal.Zero, fmt.Errorf("%w: number of days must be positive, got %d", ErrInvalidBookingInput, numberOfDays)
	}
	rate, ok := c.settings.InsuranceDailyRates[insuranceType]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownInsuranceType, insuranceType)
	}
	return Round2(rate.Mul(decimal.NewFromInt(int64(numberOfDays)))), nil
}
