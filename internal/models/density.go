package models

import "fmt"

// DensityLevel is the three-bucket traffic density classification
type DensityLevel int

// DensityLevel constants, ordered from lightest to heaviest traffic
const (
	DensityLow DensityLevel = iota
	DensityMedium
	DensityHigh
)

// DensityLevels lists every level in ascending order
var DensityLevels = []DensityLevel{DensityLow, DensityMedium, DensityHigh}

// String returns Low, Medium or High
func (d DensityLevel) String() string {
	switch d {
	case DensityLow:
		return "Low"
	case DensityMedium:
		return "Medium"
	case DensityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// IdleTime returns the idling multiplier applied to pollution and fuel estimates
func (d DensityLevel) IdleTime() int {
	switch d {
	case DensityMedium:
		return 3
	case DensityHigh:
		return 6
	default:
		return 1
	}
}

// ParseDensityLevel parses the string form written to the observation log
func ParseDensityLevel(s string) (DensityLevel, error) {
	for _, d := range DensityLevels {
		if d.String() == s {
			return d, nil
		}
	}
	return DensityLow, fmt.Errorf("unknown density level: %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (d DensityLevel) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *DensityLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseDensityLevel(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
