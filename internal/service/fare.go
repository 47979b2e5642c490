package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ridefare/internal/domain"
	"ridefare/internal/fare"
	"ridefare/internal/metrics"
)

// FareService prices trips for estimates and ride requests.
type FareService struct {
	calculator *fare.Calculator
	surge      *SurgeService
	log        *slog.Logger
}

// NewFareService creates a new FareService. surge may be nil, in which
// case quotes without an explicit level use no surge.
func NewFareService(calculator *fare.Calculator, surge *SurgeService, log *slog.Logger) *FareService {
	return &FareService{
		calculator: calculator,
		surge:      surge,
		log:        log,
	}
}

// QuoteRequest contains the trip parameters to price.
type QuoteRequest struct {
	Pickup      domain.Location
	DistanceKm  float64
	DurationMin float64
	VehicleTier string // empty quotes every tier
	SurgeLevel  string // estimates only; empty derives the level from the pickup area
}

// Quote is the price of a trip in one tier.
type Quote struct {
	VehicleTier domain.VehicleTier
	SurgeLevel  fare.SurgeLevel
	Fare        domain.FareBreakdown
	AmountCents int64
}

// TierQuote describes a tier and its price list.
type TierQuote struct {
	Info  domain.TierInfo
	Rates fare.Rates
}

// Estimate prices the trip in the requested tier, or in every tier when
// none is given.
func (s *FareService) Estimate(ctx context.Context, req QuoteRequest) ([]Quote, error) {
	tiers := domain.VehicleTiers
	if strings.TrimSpace(req.VehicleTier) != "" {
		tier, err := parseTier(req.VehicleTier)
		if err != nil {
			return nil, err
		}
		tiers = []domain.VehicleTier{tier}
	}

	level, err := s.surgeLevel(ctx, req)
	if err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(tiers))
	for _, tier := range tiers {
		q, err := s.quote(req.DistanceKm, req.DurationMin, tier, level)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// QuoteTier prices the trip in a single tier.
func (s *FareService) QuoteTier(ctx context.Context, req QuoteRequest) (Quote, error) {
	tier, err := parseTier(req.VehicleTier)
	if err != nil {
		return Quote{}, err
	}
	level, err := s.surgeLevel(ctx, req)
	if err != nil {
		return Quote{}, err
	}
	return s.quote(req.DistanceKm, req.DurationMin, tier, level)
}

// Tiers lists every vehicle tier with its rates.
func (s *FareService) Tiers() []TierQuote {
	out := make([]TierQuote, 0, len(domain.VehicleTiers))
	for _, tier := range domain.VehicleTiers {
		info, ok := tier.Info()
		if !ok {
			continue
		}
		rates, err := s.calculator.Rates(tier)
		if err != nil {
			continue
		}
		out = append(out, TierQuote{Info: info, Rates: rates})
	}
	return out
}

// BookingFee returns the flat fee added to every trip.
func (s *FareService) BookingFee() float64 {
	return s.calculator.Config().BookingFee
}

func (s *FareService) quote(distanceKm, durationMin float64, tier domain.VehicleTier, level fare.SurgeLevel) (Quote, error) {
	breakdown, err := s.calculator.Calculate(distanceKm, durationMin, tier, level.Multiplier())
	metrics.RecordFare(string(tier), breakdown.TotalAmount, err)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		VehicleTier: tier,
		SurgeLevel:  level,
		Fare:        breakdown,
		AmountCents: fare.ToMinorUnits(breakdown.TotalAmount),
	}, nil
}

func (s *FareService) surgeLevel(ctx context.Context, req QuoteRequest) (fare.SurgeLevel, error) {
	if req.SurgeLevel != "" {
		return fare.ParseSurgeLevel(strings.ToLower(req.SurgeLevel))
	}
	if s.surge == nil {
		return fare.SurgeLow, nil
	}
	return s.surge.LevelAt(ctx, req.Pickup.Lat, req.Pickup.Lng), nil
}

func parseTier(name string) (domain.VehicleTier, error) {
	tier, err := domain.ParseVehicleTier(name)
	if err != nil {
		return "", fmt.Errorf("%w %q", fare.ErrInvalidTier, name)
	}
	return tier, nil
}
