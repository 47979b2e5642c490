package repository

import (
	"context"

	"ridefare/internal/domain"
)

// UserRepository defines the persistence operations for users.
type UserRepository interface {
	// Upsert inserts the user or refreshes their profile fields.
	Upsert(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// SetPaymentCustomer stores the payment processor's customer ID.
	SetPaymentCustomer(ctx context.Context, id, customerID string) error
}
