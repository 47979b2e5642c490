package lifecycle

import (
	"fmt"
	"time"

	"ridefare/internal/domain"
)

// Apply moves ride to next, stamping the matching timestamp. Canceling a
// ride also cancels a payment that has not yet settled. On error the ride
// is left untouched.
func Apply(ride *domain.Ride, next domain.RideStatus, at time.Time) error {
	if err := ValidateRideTransition(ride, next); err != nil {
		return err
	}

	stamp := at
	if last := latest(ride); last.After(stamp) {
		stamp = last
	}

	switch next {
	case domain.RideStatusDriverAssigned:
		ride.AcceptedAt = &stamp
	case domain.RideStatusInProgress:
		ride.PickedUpAt = &stamp
	case domain.RideStatusCompleted:
		ride.CompletedAt = &stamp
	case domain.RideStatusCanceled:
		ride.CanceledAt = &stamp
		if !ride.PaymentStatus.Terminal() {
			ride.PaymentStatus = domain.PaymentStatusCanceled
		}
	}
	ride.Status = next
	ride.UpdatedAt = stamp
	return nil
}

// ApplyPayment moves the ride's payment status to next.
func ApplyPayment(ride *domain.Ride, next domain.PaymentStatus) error {
	if err := ValidatePaymentTransition(ride.PaymentStatus, next); err != nil {
		return err
	}
	ride.PaymentStatus = next
	return nil
}

// latest returns the most recent lifecycle timestamp on the ride.
func latest(ride *domain.Ride) time.Time {
	last := ride.RequestedAt
	for _, ts := range []*time.Time{ride.AcceptedAt, ride.PickedUpAt, ride.CompletedAt, ride.CanceledAt} {
		if ts != nil && ts.After(last) {
			last = *ts
		}
	}
	return last
}

// reached reports whether a ride in status s has passed through target on
// the way there. Canceled rides are handled by the caller.
func reached(s, target domain.RideStatus) bool {
	order := map[domain.RideStatus]int{
		domain.RideStatusRequested:      0,
		domain.RideStatusDriverAssigned: 1,
		domain.RideStatusDriverArrived:  2,
		domain.RideStatusInProgress:     3,
		domain.RideStatusCompleted:      4,
	}
	return order[s] >= order[target]
}

// CheckConsistency verifies that the ride's timestamps agree with its
// status and never go backwards.
func CheckConsistency(ride *domain.Ride) error {
	if ride.RequestedAt.IsZero() {
		return fmt.Errorf("%w: requested_at is not set", ErrInconsistentRide)
	}
	if _, ok := RideTransitions[ride.Status]; !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInconsistentRide, ride.Status)
	}

	canceled := ride.Status == domain.RideStatusCanceled
	if (ride.CompletedAt != nil) != (ride.Status == domain.RideStatusCompleted) {
		return fmt.Errorf("%w: completed_at does not match status %q", ErrInconsistentRide, ride.Status)
	}
	if (ride.CanceledAt != nil) != canceled {
		return fmt.Errorf("%w: canceled_at does not match status %q", ErrInconsistentRide, ride.Status)
	}
	if !canceled {
		if (ride.AcceptedAt != nil) != reached(ride.Status, domain.RideStatusDriverAssigned) {
			return fmt.Errorf("%w: accepted_at does not match status %q", ErrInconsistentRide, ride.Status)
		}
		if (ride.PickedUpAt != nil) != reached(ride.Status, domain.RideStatusInProgress) {
			return fmt.Errorf("%w: picked_up_at does not match status %q", ErrInconsistentRide, ride.Status)
		}
	} else if ride.PickedUpAt != nil && ride.AcceptedAt == nil {
		return fmt.Errorf("%w: picked_up_at set without accepted_at", ErrInconsistentRide)
	}
	if ride.Status == domain.RideStatusCompleted && ride.PaymentStatus != domain.PaymentStatusSucceeded {
		return fmt.Errorf("%w: completed ride with payment %q", ErrInconsistentRide, ride.PaymentStatus)
	}

	prev := ride.RequestedAt
	for _, ts := range []*time.Time{ride.AcceptedAt, ride.PickedUpAt, ride.CompletedAt, ride.CanceledAt} {
		if ts == nil {
			continue
		}
		if ts.Before(prev) {
			return fmt.Errorf("%w: timestamps are not monotonic", ErrInconsistentRide)
		}
		prev = *ts
	}
	return nil
}
