package tests

import (
	"context"
	"errors"
	"testing"

	"ridefare/internal/domain"
	"ridefare/internal/lifecycle"
	"ridefare/internal/payment"
	"ridefare/internal/service"
)

// ──────────────────────────────────────────────
// 6. PAYMENT INTENTS
// ──────────────────────────────────────────────

func TestPayment_CreateIntentMovesRideToProcessing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	ride := h.requestRide(t)

	res, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if res.Payment.AmountCents != 2071 {
		t.Errorf("expected 2071 cents, got %d", res.Payment.AmountCents)
	}
	if res.Payment.Status != domain.PaymentStatusProcessing {
		t.Errorf("expected processing, got %s", res.Payment.Status)
	}
	if res.Payment.IdempotencyKey != "payment:"+ride.ID {
		t.Errorf("unexpected idempotency key %q", res.Payment.IdempotencyKey)
	}
	if res.ClientSecret == "" {
		t.Error("expected a client secret")
	}

	stored := h.rides.GetRide(ride.ID)
	if stored.PaymentStatus != domain.PaymentStatusProcessing {
		t.Errorf("expected ride payment processing, got %s", stored.PaymentStatus)
	}
	if stored.PaymentIntentID != res.Payment.ID {
		t.Errorf("expected intent %s on ride, got %s", res.Payment.ID, stored.PaymentIntentID)
	}
}

func TestPayment_CreateIntentIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	ride := h.requestRide(t)

	first, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID)
	if err != nil {
		t.Fatalf("first CreateIntent: %v", err)
	}
	second, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID)
	if err != nil {
		t.Fatalf("second CreateIntent: %v", err)
	}

	if first.Payment.ID != second.Payment.ID {
		t.Errorf("expected the same intent, got %s and %s", first.Payment.ID, second.Payment.ID)
	}
	if h.payments.CountPayments() != 1 {
		t.Errorf("expected 1 payment, got %d", h.payments.CountPayments())
	}
}

func TestPayment_CreateIntentRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.addDriver("driver-1", "driver-user-1", domain.VehicleTierEconomy)
	ride := h.requestRide(t)

	if _, err := h.paymentSvc.CreateIntent(ctx, "stranger", ride.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("stranger: expected ErrForbidden, got %v", err)
	}
	// A driver can see a requested ride but does not pay for it.
	if _, err := h.paymentSvc.CreateIntent(ctx, "driver-user-1", ride.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("driver: expected ErrForbidden, got %v", err)
	}

	if _, err := h.rideSvc.CancelRide(ctx, riderID, ride.ID, ""); err != nil {
		t.Fatalf("CancelRide: %v", err)
	}
	if _, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Errorf("canceled ride: expected ErrInvalidTransition, got %v", err)
	}
	if h.payments.CountPayments() != 0 {
		t.Errorf("expected no payments, got %d", h.payments.CountPayments())
	}
}

func TestPayment_GatewayFailureLeavesRidePending(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ride := h.requestRide(t)
	h.gateway.CreateError = errors.New("card network down")

	if _, err := h.paymentSvc.CreateIntent(context.Background(), riderID, ride.ID); err == nil {
		t.Fatal("expected an error")
	}
	if got := h.rides.GetRide(ride.ID).PaymentStatus; got != domain.PaymentStatusPending {
		t.Errorf("expected ride payment pending, got %s", got)
	}
}

func TestPayment_ConfirmUsesProcessorStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	ride := h.requestRide(t)
	res, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	// Still processing at the processor: nothing changes.
	p, err := h.paymentSvc.Confirm(ctx, riderID, res.Payment.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if p.Status != domain.PaymentStatusProcessing {
		t.Errorf("expected processing, got %s", p.Status)
	}

	h.gateway.AutoSucceed = true
	p, err = h.paymentSvc.Confirm(ctx, riderID, res.Payment.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if p.Status != domain.PaymentStatusSucceeded {
		t.Errorf("expected succeeded, got %s", p.Status)
	}
	if got := h.rides.GetRide(ride.ID).PaymentStatus; got != domain.PaymentStatusSucceeded {
		t.Errorf("expected ride payment succeeded, got %s", got)
	}

	if _, err := h.paymentSvc.Confirm(ctx, "stranger", res.Payment.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("stranger: expected ErrForbidden, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 7. WEBHOOKS
// ──────────────────────────────────────────────

func TestPayment_WebhookSettlesRideAndIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	ride := h.requestRide(t)
	res, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	body := payment.EventPayload("evt_1", payment.EventIntentSucceeded, res.Payment.ID)
	sig := h.gateway.Sign(body)

	if err := h.paymentSvc.HandleWebhook(ctx, body, sig); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if got := h.payments.GetPayment(res.Payment.ID).Status; got != domain.PaymentStatusSucceeded {
		t.Errorf("expected payment succeeded, got %s", got)
	}
	if got := h.rides.GetRide(ride.ID).PaymentStatus; got != domain.PaymentStatusSucceeded {
		t.Errorf("expected ride payment succeeded, got %s", got)
	}

	writes := h.rides.UpdateStatusCallCount
	events := len(h.publisher.Events())

	// Redelivery of the same event changes nothing.
	if err := h.paymentSvc.HandleWebhook(ctx, body, sig); err != nil {
		t.Fatalf("redelivered HandleWebhook: %v", err)
	}
	if h.rides.UpdateStatusCallCount != writes {
		t.Errorf("redelivery wrote the ride again (%d -> %d)", writes, h.rides.UpdateStatusCallCount)
	}
	if len(h.publisher.Events()) != events {
		t.Error("redelivery should not publish a notification")
	}
}

func TestPayment_WebhookIgnoresStaleAndUnknownEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	ride := h.requestRide(t)
	p := h.payRide(t, ride.ID)

	tests := []struct {
		name string
		body []byte
	}{
		{"stale processing after success", payment.EventPayload("evt_2", payment.EventIntentProcessing, p.ID)},
		{"failure after success", payment.EventPayload("evt_3", payment.EventIntentFailed, p.ID)},
		{"unknown intent", payment.EventPayload("evt_4", payment.EventIntentSucceeded, "pi_unknown")},
		{"unhandled event type", payment.EventPayload("evt_5", "charge.dispute.created", p.ID)},
	}

	for _, tt := range tests {
		if err := h.paymentSvc.HandleWebhook(ctx, tt.body, h.gateway.Sign(tt.body)); err != nil {
			t.Errorf("%s: expected the event to be acknowledged, got %v", tt.name, err)
		}
	}

	if got := h.payments.GetPayment(p.ID).Status; got != domain.PaymentStatusSucceeded {
		t.Errorf("expected payment to stay succeeded, got %s", got)
	}
	if got := h.rides.GetRide(ride.ID).PaymentStatus; got != domain.PaymentStatusSucceeded {
		t.Errorf("expected ride payment to stay succeeded, got %s", got)
	}
}

func TestPayment_WebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	ride := h.requestRide(t)
	res, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	body := payment.EventPayload("evt_1", payment.EventIntentSucceeded, res.Payment.ID)
	err = h.paymentSvc.HandleWebhook(ctx, body, "deadbeef")
	if !errors.Is(err, payment.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if got := h.rides.GetRide(ride.ID).PaymentStatus; got != domain.PaymentStatusProcessing {
		t.Errorf("expected ride payment processing, got %s", got)
	}
}

func TestPayment_FailedPaymentBlocksCompletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.addDriver("driver-1", "driver-user-1", domain.VehicleTierEconomy)
	ride := h.requestRide(t)
	res, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	h.driveToInProgress(t, "driver-user-1", ride.ID)

	body := payment.EventPayload("evt_1", payment.EventIntentFailed, res.Payment.ID)
	if err := h.paymentSvc.HandleWebhook(ctx, body, h.gateway.Sign(body)); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	_, err = h.rideSvc.CompleteRide(ctx, "driver-user-1", ride.ID, service.CompleteRideRequest{})
	if !errors.Is(err, lifecycle.ErrPaymentNotSettled) {
		t.Fatalf("expected ErrPaymentNotSettled, got %v", err)
	}

	// The trip can still be abandoned; a failed payment stays failed.
	canceled, err := h.rideSvc.CancelRide(ctx, "driver-user-1", ride.ID, "payment declined")
	if err != nil {
		t.Fatalf("CancelRide: %v", err)
	}
	if canceled.PaymentStatus != domain.PaymentStatusFailed {
		t.Errorf("expected payment failed, got %s", canceled.PaymentStatus)
	}
}

// ──────────────────────────────────────────────
// 8. REFUNDS
// ──────────────────────────────────────────────

func TestPayment_RefundLimits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	ride := h.requestRide(t)

	res, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if _, err := h.paymentSvc.Refund(ctx, riderID, res.Payment.ID, nil, ""); !errors.Is(err, service.ErrPaymentNotRefundable) {
		t.Errorf("unsettled refund: expected ErrPaymentNotRefundable, got %v", err)
	}

	h.gateway.SetStatus(res.Payment.ID, domain.PaymentStatusSucceeded)
	if _, err := h.paymentSvc.Confirm(ctx, riderID, res.Payment.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	for _, amount := range []int64{0, -5, 2072} {
		a := amount
		if _, err := h.paymentSvc.Refund(ctx, riderID, res.Payment.ID, &a, ""); !errors.Is(err, service.ErrInvalidRefundAmount) {
			t.Errorf("amount %d: expected ErrInvalidRefundAmount, got %v", amount, err)
		}
	}

	partial := int64(500)
	out, err := h.paymentSvc.Refund(ctx, riderID, res.Payment.ID, &partial, "detour")
	if err != nil {
		t.Fatalf("partial Refund: %v", err)
	}
	if out.Refund.AmountCents != 500 || out.Payment.RefundedCents != 500 {
		t.Errorf("unexpected partial refund: %+v / %d", out.Refund, out.Payment.RefundedCents)
	}
	if out.Payment.Status != domain.PaymentStatusSucceeded {
		t.Errorf("refund must not change payment status, got %s", out.Payment.Status)
	}

	out, err = h.paymentSvc.Refund(ctx, riderID, res.Payment.ID, nil, "")
	if err != nil {
		t.Fatalf("remaining Refund: %v", err)
	}
	if out.Refund.AmountCents != 1571 {
		t.Errorf("expected the remaining 1571 cents, got %d", out.Refund.AmountCents)
	}
	if got := h.payments.GetPayment(res.Payment.ID).RefundedCents; got != 2071 {
		t.Errorf("expected 2071 refunded, got %d", got)
	}

	if _, err := h.paymentSvc.Refund(ctx, riderID, res.Payment.ID, nil, ""); !errors.Is(err, service.ErrInvalidRefundAmount) {
		t.Errorf("fully refunded: expected ErrInvalidRefundAmount, got %v", err)
	}
}

func TestPayment_GetPaymentAuthorization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	ride := h.requestRide(t)
	res, err := h.paymentSvc.CreateIntent(ctx, riderID, ride.ID)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	got, err := h.paymentSvc.GetPayment(ctx, riderID, res.Payment.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.RideID != ride.ID {
		t.Errorf("expected ride %s, got %s", ride.ID, got.RideID)
	}
	if _, err := h.paymentSvc.GetPayment(ctx, "stranger", res.Payment.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("stranger: expected ErrForbidden, got %v", err)
	}
	if _, err := h.paymentSvc.GetPayment(ctx, riderID, ""); !errors.Is(err, service.ErrInvalidPaymentID) {
		t.Errorf("empty id: expected ErrInvalidPaymentID, got %v", err)
	}
}

func TestPayment_OnlyRidePartiesReachPayment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	h.addDriver("driver-1", "driver-user-1", domain.VehicleTierEconomy)
	h.addDriver("driver-2", "driver-user-2", domain.VehicleTierEconomy)
	ride := h.requestRide(t)
	p := h.payRide(t, ride.ID)

	// An open request is visible to drivers of its tier, its payment is not.
	if _, err := h.rideSvc.GetRide(ctx, "driver-user-2", ride.ID); err != nil {
		t.Fatalf("open ride should be visible to a matching driver: %v", err)
	}
	if _, err := h.paymentSvc.Refund(ctx, "driver-user-2", p.ID, nil, "requested_by_customer"); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("unassigned driver refund: expected ErrForbidden, got %v", err)
	}
	if _, err := h.paymentSvc.Confirm(ctx, "driver-user-2", p.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("unassigned driver confirm: expected ErrForbidden, got %v", err)
	}
	if _, err := h.paymentSvc.GetPayment(ctx, "driver-user-2", p.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("unassigned driver read: expected ErrForbidden, got %v", err)
	}
	if got := h.payments.GetPayment(p.ID); got.RefundedCents != 0 {
		t.Errorf("expected no refund, got %d cents", got.RefundedCents)
	}

	if _, err := h.rideSvc.AssignDriver(ctx, "driver-user-1", ride.ID); err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}
	if _, err := h.paymentSvc.GetPayment(ctx, "driver-user-1", p.ID); err != nil {
		t.Errorf("assigned driver read: unexpected error %v", err)
	}
	if _, err := h.paymentSvc.GetPayment(ctx, "driver-user-2", p.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("other driver read after assignment: expected ErrForbidden, got %v", err)
	}
}
