package analysis

import (
	"strconv"

	"github.com/montanaflynn/stats"

	"github.com/jengzang/traffic-density-go/internal/models"
)

// fuelPerIdleVehicle is liters wasted per vehicle per idle unit
const fuelPerIdleVehicle = 0.01

// Round2 rounds to two decimal places using the exact decimal value of x,
// ties to even. 1.305 is stored as 1.30499... and rounds to 1.3.
func Round2(x float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	if err != nil {
		return x
	}
	return rounded
}

// WeightedEmission sums count times emission factor in class order
func WeightedEmission(counts models.CountVector) float64 {
	var sum float64
	for _, class := range models.VehicleClasses {
		sum += float64(counts.Get(class)) * class.EmissionFactor()
	}
	return sum
}

// Pollution estimates kg CO2 for a single image. The weighted sum is rounded
// before the idle multiplier and the product is not rounded again.
func Pollution(counts models.CountVector, idle int) float64 {
	return Round2(WeightedEmission(counts)) * float64(idle)
}

// VideoPollution averages per-frame emissions and applies the idle multiplier
// of the whole run. An empty timeline yields 0.
func VideoPollution(emissions []float64, idle int) float64 {
	if len(emissions) == 0 {
		return 0
	}
	return Round2(mean(emissions)) * float64(idle)
}

// FuelWaste estimates liters of fuel burnt idling
func FuelWaste(total float64, idle int) float64 {
	return Round2(total * float64(idle) * fuelPerIdleVehicle)
}

// AverageTotal is the rounded mean of per-frame totals, 0 when there are none
func AverageTotal(totals []int) float64 {
	if len(totals) == 0 {
		return 0
	}
	values := make([]float64, len(totals))
	for i, t := range totals {
		values[i] = float64(t)
	}
	return Round2(mean(values))
}

func mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}
