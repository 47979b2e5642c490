package repository

import (
	"context"

	"ridefare/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByUserID retrieves the driver profile owned by a user.
	GetByUserID(ctx context.Context, userID string) (*domain.Driver, error)

	// GetAll retrieves all drivers.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// UpdateStatus updates the status of a driver.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error

	// ClaimForRide moves an online driver to on_trip. It fails with
	// ErrConflict when the driver is no longer online.
	ClaimForRide(ctx context.Context, id string) error

	// CompleteRide marks the driver available again and bumps their ride count.
	CompleteRide(ctx context.Context, id string) error
}
