package lifecycle

import (
	"slices"

	"ridefare/internal/domain"
)

// RideTransitions maps each ride status to the statuses it may move to.
var RideTransitions = map[domain.RideStatus][]domain.RideStatus{
	domain.RideStatusRequested:      {domain.RideStatusDriverAssigned, domain.RideStatusCanceled},
	domain.RideStatusDriverAssigned: {domain.RideStatusDriverArrived, domain.RideStatusCanceled},
	domain.RideStatusDriverArrived:  {domain.RideStatusInProgress, domain.RideStatusCanceled},
	domain.RideStatusInProgress:     {domain.RideStatusCompleted, domain.RideStatusCanceled},
	domain.RideStatusCompleted:      {},
	domain.RideStatusCanceled:       {},
}

// PaymentTransitions maps each payment status to the statuses it may move to.
var PaymentTransitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentStatusPending:    {domain.PaymentStatusProcessing, domain.PaymentStatusCanceled},
	domain.PaymentStatusProcessing: {domain.PaymentStatusSucceeded, domain.PaymentStatusFailed, domain.PaymentStatusCanceled},
	domain.PaymentStatusSucceeded:  {},
	domain.PaymentStatusFailed:     {},
	domain.PaymentStatusCanceled:   {},
}

// AllowedTransitions returns the statuses reachable from current.
func AllowedTransitions(current domain.RideStatus) []domain.RideStatus {
	return slices.Clone(RideTransitions[current])
}

// AllowedPaymentTransitions returns the payment statuses reachable from current.
func AllowedPaymentTransitions(current domain.PaymentStatus) []domain.PaymentStatus {
	return slices.Clone(PaymentTransitions[current])
}

// ValidateTransition checks a ride status change against the table alone.
func ValidateTransition(current, next domain.RideStatus) error {
	if !slices.Contains(RideTransitions[current], next) {
		return &TransitionError{Machine: "ride", From: string(current), To: string(next)}
	}
	return nil
}

// ValidatePaymentTransition checks a payment status change.
func ValidatePaymentTransition(current, next domain.PaymentStatus) error {
	if !slices.Contains(PaymentTransitions[current], next) {
		return &TransitionError{Machine: "payment", From: string(current), To: string(next)}
	}
	return nil
}

// ValidateRideTransition checks a ride status change including the rule
// that a ride is only completed once its payment has succeeded.
func ValidateRideTransition(ride *domain.Ride, next domain.RideStatus) error {
	if err := ValidateTransition(ride.Status, next); err != nil {
		return err
	}
	if next == domain.RideStatusCompleted && ride.PaymentStatus != domain.PaymentStatusSucceeded {
		return ErrPaymentNotSettled
	}
	return nil
}
