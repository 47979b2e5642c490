package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridefare/internal/domain"
	"ridefare/internal/service"
)

// SignatureHeader carries the processor's webhook signature.
const SignatureHeader = "Stripe-Signature"

// maxWebhookBytes bounds the webhook body read into memory.
const maxWebhookBytes = 64 << 10

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RefundRequest is the HTTP request body for a refund. Without an amount
// the remaining balance is refunded.
type RefundRequest struct {
	AmountCents *int64 `json:"amount_cents,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID             string    `json:"id"`
	RideID         string    `json:"ride_id"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	RefundedCents  int64     `json:"refunded_cents"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IntentResponse is a payment plus the secret the client confirms it with.
type IntentResponse struct {
	Payment      PaymentResponse `json:"payment"`
	ClientSecret string          `json:"client_secret"`
}

// RefundResponse describes a processed refund.
type RefundResponse struct {
	RefundID    string          `json:"refund_id"`
	AmountCents int64           `json:"amount_cents"`
	Status      string          `json:"status"`
	Payment     PaymentResponse `json:"payment"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		RideID:         p.RideID,
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
		Status:         string(p.Status),
		RefundedCents:  p.RefundedCents,
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// CreateIntent handles POST /v1/rides/:id/payment-intent
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	result, err := h.paymentService.CreateIntent(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, IntentResponse{
		Payment:      toPaymentResponse(result.Payment),
		ClientSecret: result.ClientSecret,
	})
}

// Confirm handles POST /v1/payments/:id/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	payment, err := h.paymentService.Confirm(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// Refund handles POST /v1/payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.paymentService.Refund(c.Request.Context(), callerID(c), c.Param("id"), req.AmountCents, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, RefundResponse{
		RefundID:    result.Refund.ID,
		AmountCents: result.Refund.AmountCents,
		Status:      result.Refund.Status,
		Payment:     toPaymentResponse(result.Payment),
	})
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// Webhook handles POST /v1/webhooks/payments. The raw body is needed for
// signature verification, so it is read before any binding.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := c.GetRawData()
	if err != nil {
		badRequest(c, "unreadable request body")
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), payload, c.GetHeader(SignatureHeader)); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"received": true})
}
