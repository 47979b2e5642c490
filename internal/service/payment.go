package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ridefare/internal/domain"
	"ridefare/internal/fare"
	"ridefare/internal/lifecycle"
	"ridefare/internal/payment"
	"ridefare/internal/repository"
)

// PaymentService handles payment intents, their settlement and refunds.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	userRepo    repository.UserRepository
	rides       *RideService
	gateway     payment.Gateway
	log         *slog.Logger
	now         func() time.Time
}

// NewPaymentService creates a new PaymentService. userRepo may be nil.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	rides *RideService,
	gateway payment.Gateway,
	log *slog.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		rides:       rides,
		gateway:     gateway,
		log:         log,
		now:         time.Now,
	}
}

// IntentResult is a payment together with the secret the client needs to
// confirm it.
type IntentResult struct {
	Payment      *domain.Payment
	ClientSecret string
}

// RefundResult is a processed refund and the updated payment.
type RefundResult struct {
	Refund  *payment.Refund
	Payment *domain.Payment
}

// CreateIntent opens a payment intent for the ride's fare. There is at most
// one intent per ride; repeating the call returns the existing one.
func (s *PaymentService) CreateIntent(ctx context.Context, riderID, rideID string) (*IntentResult, error) {
	ride, err := s.rides.GetRide(ctx, riderID, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RiderID != riderID {
		return nil, ErrForbidden
	}

	// Generate idempotency key based on ride ID.
	key := fmt.Sprintf("payment:%s", rideID)

	existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.resume(ctx, existing)
	}

	if err := lifecycle.ValidatePaymentTransition(ride.PaymentStatus, domain.PaymentStatusProcessing); err != nil {
		return nil, err
	}

	customerID := ""
	if s.userRepo != nil {
		if user, err := s.userRepo.GetByID(ctx, riderID); err == nil {
			customerID = user.PaymentCustomerID
		}
	}

	amount := fare.ToMinorUnits(ride.Fare.TotalAmount)
	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		AmountCents:    amount,
		Currency:       ride.Fare.Currency,
		RideID:         ride.ID,
		RiderID:        ride.RiderID,
		DriverID:       ride.DriverID,
		CustomerID:     customerID,
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	now := s.now().UTC()
	p := &domain.Payment{
		ID:             intent.ID,
		RideID:         ride.ID,
		AmountCents:    amount,
		Currency:       ride.Fare.Currency,
		Status:         domain.PaymentStatusProcessing,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.paymentRepo.Create(ctx, p); err != nil {
		// A concurrent request may have stored the same intent first.
		if again, _ := s.paymentRepo.GetByIdempotencyKey(ctx, key); again != nil {
			return s.resume(ctx, again)
		}
		return nil, err
	}

	if _, err := s.rides.AttachPaymentIntent(ctx, ride.ID, intent.ID); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "payment intent created", "ride_id", ride.ID, "intent_id", intent.ID, "amount_cents", amount)
	return &IntentResult{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

// resume returns an existing payment with a fresh client secret and makes
// sure the ride points at it.
func (s *PaymentService) resume(ctx context.Context, p *domain.Payment) (*IntentResult, error) {
	intent, err := s.gateway.GetPaymentIntent(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	if p.Status == domain.PaymentStatusProcessing {
		if _, err := s.rides.AttachPaymentIntent(ctx, p.RideID, p.ID); err != nil {
			return nil, err
		}
	}
	return &IntentResult{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

// Confirm asks the processor for the intent's current status and records
// it on the payment and the ride.
func (s *PaymentService) Confirm(ctx context.Context, callerID, paymentID string) (*domain.Payment, error) {
	p, err := s.authorized(ctx, callerID, paymentID)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.GetPaymentIntent(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	if err := s.sync(ctx, p, intent.Status); err != nil {
		return nil, err
	}
	return p, nil
}

// HandleWebhook verifies a processor notification and applies the status
// it reports. Events for unknown intents, events without a status, and
// stale events are acknowledged and dropped.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.VerifyWebhook(payload, signature)
	if errors.Is(err, payment.ErrUnhandledEvent) {
		if ev != nil {
			s.log.DebugContext(ctx, "ignoring webhook event", "event_id", ev.ID, "type", ev.Type)
		}
		return nil
	}
	if err != nil {
		return err
	}

	p, err := s.paymentRepo.GetByID(ctx, ev.IntentID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.WarnContext(ctx, "webhook for unknown intent", "event_id", ev.ID, "intent_id", ev.IntentID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.sync(ctx, p, ev.Status); err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			s.log.WarnContext(ctx, "stale webhook event", "event_id", ev.ID, "intent_id", ev.IntentID, "error", err)
			return nil
		}
		return err
	}

	s.log.InfoContext(ctx, "webhook applied", "event_id", ev.ID, "intent_id", ev.IntentID, "status", ev.Status)
	return nil
}

// sync moves the payment record to status and mirrors it onto the ride.
// The ride update runs even when the record already matches, which repairs
// a ride left behind by an earlier partial failure.
func (s *PaymentService) sync(ctx context.Context, p *domain.Payment, status domain.PaymentStatus) error {
	if status == domain.PaymentStatusPending {
		// Waiting on the rider; nothing to record.
		return nil
	}

	if p.Status != status {
		if err := lifecycle.ValidatePaymentTransition(p.Status, status); err != nil {
			return err
		}
		if err := s.paymentRepo.UpdateStatus(ctx, p.ID, p.Status, status); err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				return err
			}
			fresh, ferr := s.paymentRepo.GetByID(ctx, p.ID)
			if ferr != nil {
				return ferr
			}
			if fresh.Status != status {
				return err
			}
		}
		p.Status = status
		p.UpdatedAt = s.now().UTC()
	}

	_, err := s.rides.ApplyPaymentStatus(ctx, p.RideID, status)
	return err
}

// Refund returns money from a succeeded payment. A nil amount refunds what
// is left. Refunds do not change the payment status.
func (s *PaymentService) Refund(ctx context.Context, callerID, paymentID string, amountCents *int64, reason string) (*RefundResult, error) {
	p, err := s.authorized(ctx, callerID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentStatusSucceeded {
		return nil, ErrPaymentNotRefundable
	}

	remaining := p.AmountCents - p.RefundedCents
	amount := remaining
	if amountCents != nil {
		amount = *amountCents
	}
	if amount <= 0 || amount > remaining {
		return nil, ErrInvalidRefundAmount
	}

	refund, err := s.gateway.Refund(ctx, p.ID, &amount, reason)
	if err != nil {
		return nil, fmt.Errorf("refund payment: %w", err)
	}
	if err := s.paymentRepo.AddRefund(ctx, p.ID, refund.AmountCents); err != nil {
		return nil, err
	}
	p.RefundedCents += refund.AmountCents

	s.log.InfoContext(ctx, "payment refunded", "intent_id", p.ID, "amount_cents", refund.AmountCents, "reason", reason)
	return &RefundResult{Refund: refund, Payment: p}, nil
}

// GetPayment retrieves a payment visible to the caller.
func (s *PaymentService) GetPayment(ctx context.Context, callerID, paymentID string) (*domain.Payment, error) {
	return s.authorized(ctx, callerID, paymentID)
}

// authorized loads a payment for the rider or assigned driver of its ride.
func (s *PaymentService) authorized(ctx context.Context, callerID, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.rides.GetPartyRide(ctx, callerID, p.RideID); err != nil {
		return nil, err
	}
	return p, nil
}
