package fare

import (
	"fmt"
	"math"

	"ridefare/internal/domain"
)

// Rates are the per-tier pricing constants in major units.
type Rates struct {
	Base      float64
	PerKm     float64
	PerMinute float64
}

// Config holds every pricing input the calculator needs.
type Config struct {
	Tiers      map[domain.VehicleTier]Rates
	BookingFee float64
	TaxRate    float64
	Currency   string
}

// DefaultConfig returns the standard price list.
func DefaultConfig() Config {
	return Config{
		Tiers: map[domain.VehicleTier]Rates{
			domain.VehicleTierEconomy: {Base: 2.50, PerKm: 1.20, PerMinute: 0.25},
			domain.VehicleTierComfort: {Base: 3.50, PerKm: 1.50, PerMinute: 0.30},
			domain.VehicleTierPremium: {Base: 5.00, PerKm: 2.00, PerMinute: 0.40},
			domain.VehicleTierSUV:     {Base: 4.00, PerKm: 1.75, PerMinute: 0.35},
		},
		BookingFee: 1.00,
		TaxRate:    0.08,
		Currency:   "usd",
	}
}

// Validate checks that every tier is priced and all constants are sane.
func (c Config) Validate() error {
	for _, tier := range domain.VehicleTiers {
		r, ok := c.Tiers[tier]
		if !ok {
			return fmt.Errorf("%w: no rates for tier %q", ErrInvalidConfig, tier)
		}
		if !nonNegative(r.Base) || !nonNegative(r.PerKm) || !nonNegative(r.PerMinute) {
			return fmt.Errorf("%w: negative rate for tier %q", ErrInvalidConfig, tier)
		}
	}
	if !nonNegative(c.BookingFee) {
		return fmt.Errorf("%w: negative booking fee", ErrInvalidConfig)
	}
	if !nonNegative(c.TaxRate) || c.TaxRate >= 1 {
		return fmt.Errorf("%w: tax rate must be in [0, 1)", ErrInvalidConfig)
	}
	if c.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidConfig)
	}
	return nil
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
