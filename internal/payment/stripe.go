package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"ridefare/internal/domain"
)

// StripeGateway implements Gateway on top of the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	description   string
}

// NewStripeGateway creates a gateway using secretKey for API calls and
// webhookSecret for signature checks.
func NewStripeGateway(secretKey, webhookSecret, description string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		description:   description,
	}
}

// CreatePaymentIntent creates an intent with automatic payment methods.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(fmt.Sprintf("%s - %s", g.description, req.RideID)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("ride_id", req.RideID)
	params.AddMetadata("rider_id", req.RiderID)
	if req.DriverID != "" {
		params.AddMetadata("driver_id", req.DriverID)
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// GetPaymentIntent retrieves the intent's current status.
func (g *StripeGateway) GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, wrapStripeError("retrieve payment intent", err)
	}
	return intentFromStripe(pi), nil
}

// CancelPaymentIntent cancels an intent that has not yet succeeded.
func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return wrapStripeError("cancel payment intent", err)
	}
	return nil
}

// Refund refunds all or part of a succeeded intent.
func (g *StripeGateway) Refund(ctx context.Context, intentID string, amountCents *int64, reason string) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	if amountCents != nil {
		params.Amount = stripe.Int64(*amountCents)
	}
	if reason != "" {
		params.Reason = stripe.String(reason)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, wrapStripeError("create refund", err)
	}
	return &Refund{
		ID:          r.ID,
		IntentID:    intentID,
		AmountCents: r.Amount,
		Status:      string(r.Status),
	}, nil
}

// CreateCustomer registers a customer so saved cards can be reused.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return c.ID, nil
}

// VerifyWebhook checks the Stripe-Signature header and decodes the event.
// Only the intent id is read from the payload, so endpoints pinned to a
// different API version than the library are accepted.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	eventType := string(ev.Type)
	status, ok := StatusForEvent(eventType)
	if !ok {
		return &Event{ID: ev.ID, Type: eventType}, ErrUnhandledEvent
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	return &Event{ID: ev.ID, Type: eventType, IntentID: pi.ID, Status: status}, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       statusFromStripe(pi),
	}
}

// statusFromStripe collapses Stripe's intent states onto PaymentStatus.
// Stripe reports a declined card as requires_payment_method with a last
// error, which is a failure here.
func statusFromStripe(pi *stripe.PaymentIntent) domain.PaymentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return domain.PaymentStatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return domain.PaymentStatusFailed
		}
		return domain.PaymentStatusProcessing
	default:
		return domain.PaymentStatusProcessing
	}
}

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrIntentNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
