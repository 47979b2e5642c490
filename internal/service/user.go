package service

import (
	"context"
	"log/slog"

	"ridefare/internal/domain"
	"ridefare/internal/payment"
	"ridefare/internal/repository"
)

// UserService keeps local user records in step with the identity provider.
type UserService struct {
	userRepo repository.UserRepository
	gateway  payment.Gateway
	log      *slog.Logger
}

// NewUserService creates a new UserService. gateway may be nil.
func NewUserService(userRepo repository.UserRepository, gateway payment.Gateway, log *slog.Logger) *UserService {
	return &UserService{userRepo: userRepo, gateway: gateway, log: log}
}

// Sync upserts the authenticated user and, on first sight, creates their
// customer record at the payment processor. A processor failure is logged
// and retried on the next sync.
func (s *UserService) Sync(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil || user.ID == "" {
		return nil, ErrInvalidRiderID
	}

	u := *user
	if err := s.userRepo.Upsert(ctx, &u); err != nil {
		return nil, err
	}

	if u.PaymentCustomerID == "" && s.gateway != nil && u.Email != "" {
		customerID, err := s.gateway.CreateCustomer(ctx, u.Email, u.Name)
		if err != nil {
			s.log.WarnContext(ctx, "create payment customer failed", "user_id", u.ID, "error", err)
			return &u, nil
		}
		if err := s.userRepo.SetPaymentCustomer(ctx, u.ID, customerID); err != nil {
			return nil, err
		}
		u.PaymentCustomerID = customerID
	}

	return &u, nil
}
