package domain

import "time"

// PaymentStatus represents the current status of a ride's payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
)

// Terminal reports whether no further transition is possible from s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled:
		return true
	}
	return false
}

// Payment is the local record of a payment intent held by the processor.
// Amounts are in minor units (cents).
type Payment struct {
	ID             string // processor intent id
	RideID         string
	AmountCents    int64
	Currency       string
	Status         PaymentStatus
	IdempotencyKey string
	RefundedCents  int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
