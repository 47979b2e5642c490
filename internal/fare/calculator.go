package fare

import (
	"errors"
	"fmt"
	"math"

	"ridefare/internal/domain"
)

var (
	// ErrInvalidInput is returned for negative distance or duration, a
	// non-positive surge multiplier, or an unknown tier.
	ErrInvalidInput = errors.New("invalid fare input")

	// ErrInvalidTier is the unknown-tier case of ErrInvalidInput.
	ErrInvalidTier = fmt.Errorf("%w: unknown vehicle tier", ErrInvalidInput)

	// ErrInvalidConfig is returned by New for an unusable price list.
	ErrInvalidConfig = errors.New("invalid fare config")
)

// Calculator prices trips against a fixed Config. It holds no mutable state
// and is safe for concurrent use.
type Calculator struct {
	cfg Config
}

// New validates cfg and returns a Calculator bound to it.
func New(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tiers := make(map[domain.VehicleTier]Rates, len(cfg.Tiers))
	for k, v := range cfg.Tiers {
		tiers[k] = v
	}
	cfg.Tiers = tiers
	return &Calculator{cfg: cfg}, nil
}

// Config returns the calculator's price list.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Rates returns the pricing constants for tier.
func (c *Calculator) Rates(tier domain.VehicleTier) (Rates, error) {
	r, ok := c.cfg.Tiers[tier]
	if !ok {
		return Rates{}, fmt.Errorf("%w %q", ErrInvalidTier, tier)
	}
	return r, nil
}

// Calculate prices a trip. Every money field is rounded to cents on its
// own, so TotalAmount can differ by a cent from the sum of the rounded
// parts.
func (c *Calculator) Calculate(distanceKm, durationMin float64, tier domain.VehicleTier, surge float64) (domain.FareBreakdown, error) {
	if !nonNegative(distanceKm) {
		return domain.FareBreakdown{}, fmt.Errorf("%w: distance must be >= 0, got %v", ErrInvalidInput, distanceKm)
	}
	if !nonNegative(durationMin) {
		return domain.FareBreakdown{}, fmt.Errorf("%w: duration must be >= 0, got %v", ErrInvalidInput, durationMin)
	}
	if !(surge > 0) || math.IsInf(surge, 0) {
		return domain.FareBreakdown{}, fmt.Errorf("%w: surge multiplier must be > 0, got %v", ErrInvalidInput, surge)
	}
	rates, err := c.Rates(tier)
	if err != nil {
		return domain.FareBreakdown{}, err
	}

	baseFare := rates.Base
	distanceFare := distanceKm * rates.PerKm
	timeFare := durationMin * rates.PerMinute
	preSurge := baseFare + distanceFare + timeFare
	subtotal := preSurge * surge
	bookingFee := c.cfg.BookingFee
	taxes := subtotal * c.cfg.TaxRate
	total := subtotal + bookingFee + taxes
	surgeFare := subtotal - preSurge

	return domain.FareBreakdown{
		BaseFare:        round2(baseFare),
		DistanceFare:    round2(distanceFare),
		TimeFare:        round2(timeFare),
		SurgeFare:       round2(surgeFare),
		BookingFee:      round2(bookingFee),
		Taxes:           round2(taxes),
		Subtotal:        round2(subtotal),
		TotalAmount:     round2(total),
		SurgeMultiplier: surge,
		Currency:        c.cfg.Currency,
	}, nil
}

// ToMinorUnits converts a major-unit amount to integer cents.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts integer cents to a major-unit amount.
func FromMinorUnits(cents int64) float64 {
	return float64(cents) / 100
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
