package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ridefare/internal/domain"
)

// MockGateway is an in-memory Gateway for local development and tests.
// When AutoSucceed is set, intents report succeeded on the first status
// lookup, which stands in for the rider confirming the card.
type MockGateway struct {
	mu          sync.Mutex
	intents     map[string]*Intent
	byKey       map[string]string
	refunded    map[string]int64
	secret      []byte
	AutoSucceed bool

	// Error injection
	CreateError error
	CancelError error
	RefundError error
}

// NewMockGateway creates a mock gateway that signs webhooks with secret.
func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{
		intents:  make(map[string]*Intent),
		byKey:    make(map[string]string),
		refunded: make(map[string]int64),
		secret:   []byte(secret),
	}
}

// CreatePaymentIntent records a new intent in the processing state.
func (m *MockGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		in := *m.intents[id]
		return &in, nil
	}

	id := "pi_" + uuid.New().String()
	in := &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Status:       domain.PaymentStatusProcessing,
	}
	m.intents[id] = in
	if req.IdempotencyKey != "" {
		m.byKey[req.IdempotencyKey] = id
	}
	out := *in
	return &out, nil
}

// GetPaymentIntent returns the stored intent.
func (m *MockGateway) GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[intentID]
	if !ok {
		return nil, ErrIntentNotFound
	}
	if m.AutoSucceed && in.Status == domain.PaymentStatusProcessing {
		in.Status = domain.PaymentStatusSucceeded
	}
	out := *in
	return &out, nil
}

// CancelPaymentIntent marks an unsettled intent canceled.
func (m *MockGateway) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if m.CancelError != nil {
		return m.CancelError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[intentID]
	if !ok {
		return ErrIntentNotFound
	}
	if in.Status == domain.PaymentStatusSucceeded {
		return fmt.Errorf("cannot cancel succeeded intent %s", intentID)
	}
	in.Status = domain.PaymentStatusCanceled
	return nil
}

// Refund records a refund against a succeeded intent.
func (m *MockGateway) Refund(ctx context.Context, intentID string, amountCents *int64, reason string) (*Refund, error) {
	if m.RefundError != nil {
		return nil, m.RefundError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[intentID]
	if !ok {
		return nil, ErrIntentNotFound
	}
	if in.Status != domain.PaymentStatusSucceeded {
		return nil, fmt.Errorf("intent %s is %s, not succeeded", intentID, in.Status)
	}
	amount := in.AmountCents - m.refunded[intentID]
	if amountCents != nil {
		amount = *amountCents
	}
	if amount <= 0 || m.refunded[intentID]+amount > in.AmountCents {
		return nil, fmt.Errorf("refund of %d exceeds remaining balance", amount)
	}
	m.refunded[intentID] += amount
	return &Refund{
		ID:          "re_" + uuid.New().String(),
		IntentID:    intentID,
		AmountCents: amount,
		Status:      "succeeded",
	}, nil
}

// CreateCustomer returns a fresh customer ID.
func (m *MockGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	return "cus_" + uuid.New().String(), nil
}

// SetStatus forces an intent's status, simulating processor-side changes.
func (m *MockGateway) SetStatus(intentID string, status domain.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.intents[intentID]; ok {
		in.Status = status
	}
}

type mockEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// Sign returns the signature VerifyWebhook expects for payload.
func (m *MockGateway) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// EventPayload builds a webhook body in the processor's event shape.
func EventPayload(eventID, eventType, intentID string) []byte {
	var ev mockEvent
	ev.ID = eventID
	ev.Type = eventType
	ev.Data.Object.ID = intentID
	body, _ := json.Marshal(ev)
	return body
}

// VerifyWebhook checks an HMAC-SHA256 signature and decodes the event.
func (m *MockGateway) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	want := m.Sign(payload)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	var ev mockEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	status, ok := StatusForEvent(ev.Type)
	if !ok {
		return &Event{ID: ev.ID, Type: ev.Type}, ErrUnhandledEvent
	}

	m.mu.Lock()
	if in, ok := m.intents[ev.Data.Object.ID]; ok {
		in.Status = status
	}
	m.mu.Unlock()

	return &Event{ID: ev.ID, Type: ev.Type, IntentID: ev.Data.Object.ID, Status: status}, nil
}
