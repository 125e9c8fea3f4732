package models

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"
)

func TestParseVehicleLabel(t *testing.T) {
	cases := map[string]VehicleClass{
		"car":        Car,
		"mobil":      Car,
		"Motorcycle": Motorcycle,
		"motor":      Motorcycle,
		"bike":       Motorcycle,
		"bus":        Bus,
		" truk ":     Truck,
		"truck":      Truck,
	}
	for label, want := range cases {
		got, ok := ParseVehicleLabel(label)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, got, test.ShouldEqual, want)
	}

	for _, label := range []string{"person", "traffic light", "", "bicycle"} {
		_, ok := ParseVehicleLabel(label)
		test.That(t, ok, test.ShouldBeFalse)
	}
}

func TestEmissionFactors(t *testing.T) {
	test.That(t, Car.EmissionFactor(), test.ShouldEqual, 0.12)
	test.That(t, Motorcycle.EmissionFactor(), test.ShouldEqual, 0.02)
	test.That(t, Bus.EmissionFactor(), test.ShouldEqual, 0.80)
	test.That(t, Truck.EmissionFactor(), test.ShouldEqual, 1.00)
}

func TestCountVectorJSON(t *testing.T) {
	var v CountVector
	v.Inc(Car)
	v.Inc(Car)
	v.Inc(Truck)
	test.That(t, v.Total(), test.ShouldEqual, 3)

	data, err := json.Marshal(v)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, `{"bus":0,"car":2,"motorcycle":0,"truck":1}`)

	var back CountVector
	test.That(t, json.Unmarshal([]byte(`{"mobil":4,"motor":1,"bus":2}`), &back), test.ShouldBeNil)
	test.That(t, back.Get(Car), test.ShouldEqual, 4)
	test.That(t, back.Get(Motorcycle), test.ShouldEqual, 1)
	test.That(t, back.Get(Bus), test.ShouldEqual, 2)
	test.That(t, back.Get(Truck), test.ShouldEqual, 0)
}

func TestDensityLevel(t *testing.T) {
	test.That(t, DensityLow.IdleTime(), test.ShouldEqual, 1)
	test.That(t, DensityMedium.IdleTime(), test.ShouldEqual, 3)
	test.That(t, DensityHigh.IdleTime(), test.ShouldEqual, 6)

	for _, d := range DensityLevels {
		parsed, err := ParseDensityLevel(d.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, d)
	}

	_, err := ParseDensityLevel("Gridlock")
	test.That(t, err, test.ShouldNotBeNil)
}
