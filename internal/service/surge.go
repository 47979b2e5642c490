package service

import (
	"context"
	"log/slog"
	"math"

	"ridefare/internal/fare"
	"ridefare/internal/redis"
	"ridefare/internal/repository"
)

// SurgeService picks a surge preset from supply and demand around a pickup.
type SurgeService struct {
	locationStore redis.LocationStoreInterface
	rideRepo      repository.RideRepository
	config        SurgeConfig
	log           *slog.Logger
}

// NewSurgeService creates a new SurgeService.
func NewSurgeService(
	locationStore redis.LocationStoreInterface,
	rideRepo repository.RideRepository,
	log *slog.Logger,
) *SurgeService {
	return &SurgeService{
		locationStore: locationStore,
		rideRepo:      rideRepo,
		config:        DefaultSurgeConfig(),
		log:           log,
	}
}

// SurgeConfig contains surge pricing configuration.
type SurgeConfig struct {
	RadiusKm    float64 // Radius to check for supply/demand
	MediumRatio float64 // Demand/supply ratio for the medium preset
	HighRatio   float64 // Demand/supply ratio for the high preset
	PeakRatio   float64 // Demand/supply ratio for the peak preset
}

// DefaultSurgeConfig returns the default surge configuration.
func DefaultSurgeConfig() SurgeConfig {
	return SurgeConfig{
		RadiusKm:    5.0,
		MediumRatio: 1.2,
		HighRatio:   1.5,
		PeakRatio:   2.0,
	}
}

const kmPerDegree = 111.0

// LevelAt returns the surge preset for a pickup point. Lookup failures
// fall back to no surge.
func (s *SurgeService) LevelAt(ctx context.Context, lat, lng float64) fare.SurgeLevel {
	drivers, err := s.locationStore.FindNearbyDrivers(ctx, lat, lng, s.config.RadiusKm)
	if err != nil {
		s.log.WarnContext(ctx, "surge supply lookup failed", "error", err)
		return fare.SurgeLow
	}

	dLat := s.config.RadiusKm / kmPerDegree
	dLng := s.config.RadiusKm / (kmPerDegree * math.Max(math.Cos(lat*math.Pi/180), 0.01))
	demand, err := s.rideRepo.CountOpenNear(ctx, lat-dLat, lat+dLat, lng-dLng, lng+dLng)
	if err != nil {
		s.log.WarnContext(ctx, "surge demand lookup failed", "error", err)
		return fare.SurgeLow
	}

	return levelFor(len(drivers), demand, s.config)
}

// levelFor maps a demand/supply ratio onto a preset.
func levelFor(supply, demand int, config SurgeConfig) fare.SurgeLevel {
	if supply == 0 {
		if demand > 0 {
			return fare.SurgePeak
		}
		return fare.SurgeLow
	}

	ratio := float64(demand) / float64(supply)
	switch {
	case ratio >= config.PeakRatio:
		return fare.SurgePeak
	case ratio >= config.HighRatio:
		return fare.SurgeHigh
	case ratio >= config.MediumRatio:
		return fare.SurgeMedium
	default:
		return fare.SurgeLow
	}
}
