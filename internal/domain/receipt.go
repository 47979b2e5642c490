package domain

import "time"

// Receipt represents a completed ride's receipt.
type Receipt struct {
	RideID          string
	RiderID         string
	DriverID        string
	VehicleTier     VehicleTier
	Pickup          Location
	Dropoff         Location
	DistanceKm      float64
	DurationMin     float64
	Fare            FareBreakdown
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	StartedAt       time.Time
	EndedAt         time.Time
	IssuedAt        time.Time
}
