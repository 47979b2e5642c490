package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested      RideStatus = "requested"
	RideStatusDriverAssigned RideStatus = "driver_assigned"
	RideStatusDriverArrived  RideStatus = "driver_arrived"
	RideStatusInProgress     RideStatus = "in_progress"
	RideStatusCompleted      RideStatus = "completed"
	RideStatusCanceled       RideStatus = "canceled"
)

// Terminal reports whether no further transition is possible from s.
func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCanceled
}

// Location is a geographic point with an optional street address.
type Location struct {
	Lat     float64
	Lng     float64
	Address string
}

// Ride is the aggregate record of one trip request.
type Ride struct {
	ID       string
	RiderID  string
	DriverID string // empty until a driver is assigned

	Pickup      Location
	Dropoff     Location
	VehicleTier VehicleTier

	EstimatedDistanceKm  float64
	EstimatedDurationMin float64
	ActualDistanceKm     *float64
	ActualDurationMin    *float64

	Fare FareBreakdown

	Status          RideStatus
	PaymentStatus   PaymentStatus
	PaymentIntentID string

	Rating *int
	Review string

	RequestedAt  time.Time
	AcceptedAt   *time.Time
	PickedUpAt   *time.Time
	CompletedAt  *time.Time
	CanceledAt   *time.Time
	CancelReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the ride, so callers can mutate the copy
// without touching the original.
func (r *Ride) Clone() *Ride {
	c := *r
	c.ActualDistanceKm = cloneFloat(r.ActualDistanceKm)
	c.ActualDurationMin = cloneFloat(r.ActualDurationMin)
	c.AcceptedAt = cloneTime(r.AcceptedAt)
	c.PickedUpAt = cloneTime(r.PickedUpAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.CanceledAt = cloneTime(r.CanceledAt)
	if r.Rating != nil {
		v := *r.Rating
		c.Rating = &v
	}
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
