package repository

import (
	"context"

	"ridefare/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by its processor intent ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByIdempotencyKey retrieves a payment by its idempotency key.
	// Returns nil if no payment exists with the given key.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)

	// UpdateStatus moves a payment from expected to status. Returns
	// ErrConflict if the stored status is no longer expected.
	UpdateStatus(ctx context.Context, id string, expected, status domain.PaymentStatus) error

	// AddRefund records a refunded amount in cents.
	AddRefund(ctx context.Context, id string, cents int64) error
}
