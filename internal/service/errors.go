package service

import "errors"

var (
	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidPaymentID is returned when payment ID is empty.
	ErrInvalidPaymentID = errors.New("invalid payment id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are invalid.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRating is returned for a rating outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrInvalidRefundAmount is returned for a non-positive refund or one
	// larger than what remains on the payment.
	ErrInvalidRefundAmount = errors.New("invalid refund amount")

	// ErrInvalidDriverProfile is returned when registration data is incomplete.
	ErrInvalidDriverProfile = errors.New("name, phone and license plate are required")

	// ErrForbidden is returned when the caller is not a party to the ride.
	ErrForbidden = errors.New("caller may not act on this resource")

	// ErrNotADriver is returned when a driver-only action is called by a
	// user without a driver profile.
	ErrNotADriver = errors.New("caller is not a registered driver")

	// ErrDriverAlreadyRegistered is returned when a user registers twice.
	ErrDriverAlreadyRegistered = errors.New("driver already registered")

	// ErrDriverUnavailable is returned when the driver is offline, on
	// another trip, or locked by a concurrent assignment.
	ErrDriverUnavailable = errors.New("driver unavailable")

	// ErrTierMismatch is returned when the driver's vehicle tier differs
	// from the tier the rider booked.
	ErrTierMismatch = errors.New("driver vehicle tier does not match ride")

	// ErrRideBusy is returned when another request holds the ride lock.
	ErrRideBusy = errors.New("ride is being updated, retry")

	// ErrRideNotCompleted is returned when rating or a receipt is requested
	// before the ride completed.
	ErrRideNotCompleted = errors.New("ride not completed")

	// ErrPaymentNotRefundable is returned when refunding a payment that has
	// not succeeded.
	ErrPaymentNotRefundable = errors.New("payment not refundable")
)
