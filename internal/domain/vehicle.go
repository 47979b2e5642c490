package domain

import (
	"errors"
	"strings"
)

// VehicleTier is a named vehicle service class with its own pricing.
type VehicleTier string

const (
	VehicleTierEconomy VehicleTier = "economy"
	VehicleTierComfort VehicleTier = "comfort"
	VehicleTierPremium VehicleTier = "premium"
	VehicleTierSUV     VehicleTier = "suv"
)

// ErrUnknownVehicleTier is returned when a tier name is not recognised.
var ErrUnknownVehicleTier = errors.New("unknown vehicle tier")

// VehicleTiers lists every tier in display order.
var VehicleTiers = []VehicleTier{
	VehicleTierEconomy,
	VehicleTierComfort,
	VehicleTierPremium,
	VehicleTierSUV,
}

// Valid reports whether t is a known tier.
func (t VehicleTier) Valid() bool {
	switch t {
	case VehicleTierEconomy, VehicleTierComfort, VehicleTierPremium, VehicleTierSUV:
		return true
	}
	return false
}

// ParseVehicleTier converts a client-supplied name into a VehicleTier.
func ParseVehicleTier(s string) (VehicleTier, error) {
	t := VehicleTier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrUnknownVehicleTier
	}
	return t, nil
}

// TierInfo is the rider-facing description of a tier.
type TierInfo struct {
	Tier          VehicleTier
	Name          string
	Description   string
	MinPassengers int
	MaxPassengers int
	ETAMin        int // typical pickup wait, minutes
	ETAMax        int
}

var tierInfo = map[VehicleTier]TierInfo{
	VehicleTierEconomy: {VehicleTierEconomy, "Economy", "Affordable rides for everyday trips", 1, 4, 2, 5},
	VehicleTierComfort: {VehicleTierComfort, "Comfort", "Newer cars with extra legroom", 1, 4, 3, 7},
	VehicleTierPremium: {VehicleTierPremium, "Premium", "High-end vehicles and top drivers", 1, 4, 5, 10},
	VehicleTierSUV:     {VehicleTierSUV, "SUV", "Extra space for groups and luggage", 1, 6, 4, 8},
}

// Info returns display information for t.
func (t VehicleTier) Info() (TierInfo, bool) {
	info, ok := tierInfo[t]
	return info, ok
}
