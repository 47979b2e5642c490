// Package payment adapts external payment processors. Amounts crossing this
// boundary are always integer minor units (cents).
package payment

import (
	"context"
	"errors"

	"ridefare/internal/domain"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrIntentNotFound is returned when the processor has no such intent.
	ErrIntentNotFound = errors.New("payment intent not found")

	// ErrUnhandledEvent is returned for webhook events that carry no
	// payment status change.
	ErrUnhandledEvent = errors.New("unhandled webhook event")
)

// IntentRequest describes a new payment intent for a ride.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	RideID         string
	RiderID        string
	DriverID       string
	CustomerID     string
	IdempotencyKey string
}

// Intent is the processor's view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       domain.PaymentStatus
}

// Refund is the result of a refund request.
type Refund struct {
	ID          string
	IntentID    string
	AmountCents int64
	Status      string
}

// Event is a verified webhook notification about an intent.
type Event struct {
	ID       string
	Type     string
	IntentID string
	Status   domain.PaymentStatus
}

// Gateway is the payment processor collaborator.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
	// Refund returns money to the rider. A nil amount refunds the remainder.
	Refund(ctx context.Context, intentID string, amountCents *int64, reason string) (*Refund, error)
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}

// Webhook event types that change a payment's status.
const (
	EventIntentProcessing = "payment_intent.processing"
	EventIntentSucceeded  = "payment_intent.succeeded"
	EventIntentFailed     = "payment_intent.payment_failed"
	EventIntentCanceled   = "payment_intent.canceled"
)

var eventStatus = map[string]domain.PaymentStatus{
	EventIntentProcessing: domain.PaymentStatusProcessing,
	EventIntentSucceeded:  domain.PaymentStatusSucceeded,
	EventIntentFailed:     domain.PaymentStatusFailed,
	EventIntentCanceled:   domain.PaymentStatusCanceled,
}

// StatusForEvent maps a webhook event type to the payment status it reports.
func StatusForEvent(eventType string) (domain.PaymentStatus, bool) {
	s, ok := eventStatus[eventType]
	return s, ok
}
