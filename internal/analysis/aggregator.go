package analysis

import "github.com/jengzang/traffic-density-go/internal/models"

// Accumulate adds one detection's labels to counts and returns how many
// labels matched a vehicle class. Other labels are dropped.
func Accumulate(counts *models.CountVector, labels []string) int {
	matched := 0
	for _, label := range labels {
		class, ok := models.ParseVehicleLabel(label)
		if !ok {
			continue
		}
		counts.Inc(class)
		matched++
	}
	return matched
}

// FrameEmission sums the emission factors of the matched labels in detection order
func FrameEmission(labels []string) float64 {
	var emission float64
	for _, label := range labels {
		if class, ok := models.ParseVehicleLabel(label); ok {
			emission += class.EmissionFactor()
		}
	}
	return emission
}
