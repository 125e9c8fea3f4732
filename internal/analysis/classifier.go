package analysis

import "github.com/jengzang/traffic-density-go/internal/models"

// Density thresholds, lower bounds inclusive
const (
	MediumDensityThreshold = 10
	HighDensityThreshold   = 25
)

// Classify maps a vehicle total (or a per-frame average) to a density level
func Classify(total float64) models.DensityLevel {
	switch {
	case total < MediumDensityThreshold:
		return models.DensityLow
	case total < HighDensityThreshold:
		return models.DensityMedium
	default:
		return models.DensityHigh
	}
}
