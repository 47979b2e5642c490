package fare

import "fmt"

// SurgeLevel is a named surge preset.
type SurgeLevel string

const (
	SurgeLow    SurgeLevel = "low"
	SurgeMedium SurgeLevel = "medium"
	SurgeHigh   SurgeLevel = "high"
	SurgePeak   SurgeLevel = "peak"
)

var surgeMultipliers = map[SurgeLevel]float64{
	SurgeLow:    1.0,
	SurgeMedium: 1.5,
	SurgeHigh:   2.0,
	SurgePeak:   2.5,
}

// Multiplier returns the preset's multiplier, or 1.0 for an unknown level.
func (l SurgeLevel) Multiplier() float64 {
	if m, ok := surgeMultipliers[l]; ok {
		return m
	}
	return 1.0
}

// ParseSurgeLevel converts a preset name into a SurgeLevel.
func ParseSurgeLevel(s string) (SurgeLevel, error) {
	l := SurgeLevel(s)
	if _, ok := surgeMultipliers[l]; !ok {
		return "", fmt.Errorf("%w: unknown surge level %q", ErrInvalidInput, s)
	}
	return l, nil
}
