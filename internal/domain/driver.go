package domain

import "time"

// DriverStatus represents the current availability of a driver.
type DriverStatus string

const (
	DriverStatusOnline  DriverStatus = "online"
	DriverStatusOffline DriverStatus = "offline"
	DriverStatusOnTrip  DriverStatus = "on_trip"
)

// Driver represents a driver in the system.
type Driver struct {
	ID           string
	UserID       string
	Name         string
	Phone        string
	LicensePlate string
	VehicleTier  VehicleTier
	Status       DriverStatus
	Rating       float64
	TotalRides   int
	CreatedAt    time.Time
}
