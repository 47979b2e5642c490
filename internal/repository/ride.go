package repository

import (
	"context"

	"ridefare/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// ListByRider retrieves a rider's most recent rides, newest first.
	ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error)

	// CountOpenNear counts requested rides whose pickup lies inside the
	// given bounding box.
	CountOpenNear(ctx context.Context, minLat, maxLat, minLng, maxLng float64) (int, error)

	// UpdateStatus writes the ride's lifecycle fields only if the stored
	// ride still has the expected ride and payment status. Returns
	// ErrConflict when it does not and ErrNotFound when the ride is gone.
	UpdateStatus(ctx context.Context, ride *domain.Ride, expected domain.RideStatus, expectedPayment domain.PaymentStatus) error

	// SetRating records the rider's rating and review once.
	SetRating(ctx context.Context, id string, rating int, review string) error
}
