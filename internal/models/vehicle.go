package models

import (
	"encoding/json"
	"strings"
)

// VehicleClass is one of the vehicle categories the detector output is counted into
type VehicleClass int

// VehicleClass constants, in the column order of the observation log
const (
	Car VehicleClass = iota
	Motorcycle
	Bus
	Truck

	numVehicleClasses
)

// VehicleClasses lists every class in log column order
var VehicleClasses = [numVehicleClasses]VehicleClass{Car, Motorcycle, Bus, Truck}

var vehicleClassNames = [numVehicleClasses]string{
	Car:        "car",
	Motorcycle: "motorcycle",
	Bus:        "bus",
	Truck:      "truck",
}

// vehicleLabels maps detector labels to classes. The custom traffic model
// emits Indonesian labels (mobil, motor, truk); COCO models emit English ones.
var vehicleLabels = map[string]VehicleClass{
	"car":        Car,
	"mobil":      Car,
	"motorcycle": Motorcycle,
	"motor":      Motorcycle,
	"bike":       Motorcycle,
	"bus":        Bus,
	"truck":      Truck,
	"truk":       Truck,
}

// String returns the canonical class name
func (c VehicleClass) String() string {
	if c < 0 || c >= numVehicleClasses {
		return "unknown"
	}
	return vehicleClassNames[c]
}

// ParseVehicleLabel maps a raw detector label to a VehicleClass.
// ok is false for labels outside the closed set; callers ignore those.
func ParseVehicleLabel(label string) (VehicleClass, bool) {
	c, ok := vehicleLabels[strings.ToLower(strings.TrimSpace(label))]
	return c, ok
}

// EmissionFactor returns the per-vehicle CO2 weight for the class
func (c VehicleClass) EmissionFactor() float64 {
	switch c {
	case Car:
		return 0.12
	case Motorcycle:
		return 0.02
	case Bus:
		return 0.80
	case Truck:
		return 1.00
	default:
		return 0
	}
}

// CountVector holds per-class vehicle counts. Every class is always present.
type CountVector [numVehicleClasses]int

// Get returns the count for a class
func (v CountVector) Get(c VehicleClass) int {
	return v[c]
}

// Inc increments the count for a class by one
func (v *CountVector) Inc(c VehicleClass) {
	v[c]++
}

// Total returns the sum over all classes
func (v CountVector) Total() int {
	total := 0
	for _, n := range v {
		total += n
	}
	return total
}

// MarshalJSON encodes the vector as an object keyed by class name
func (v CountVector) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, numVehicleClasses)
	for _, c := range VehicleClasses {
		m[c.String()] = v[c]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by class name or label alias
func (v *CountVector) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*v = CountVector{}
	for label, n := range m {
		if c, ok := ParseVehicleLabel(label); ok {
			v[c] += n
		}
	}
	return nil
}
