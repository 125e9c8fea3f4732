package analysis

import (
	"testing"

	"go.viam.com/test"

	"github.com/jengzang/traffic-density-go/internal/models"
)

func counts(car, motorcycle, bus, truck int) models.CountVector {
	var v models.CountVector
	v[models.Car] = car
	v[models.Motorcycle] = motorcycle
	v[models.Bus] = bus
	v[models.Truck] = truck
	return v
}

func TestAccumulate(t *testing.T) {
	var v models.CountVector
	matched := Accumulate(&v, []string{"mobil", "car", "person", "motor", "traffic light", "truk", "bus", "dog"})
	test.That(t, matched, test.ShouldEqual, 5)
	test.That(t, v, test.ShouldResemble, counts(2, 1, 1, 1))

	matched = Accumulate(&v, []string{"bicycle", "person"})
	test.That(t, matched, test.ShouldEqual, 0)
	test.That(t, v.Total(), test.ShouldEqual, 5)

	matched = Accumulate(&v, nil)
	test.That(t, matched, test.ShouldEqual, 0)
	test.That(t, v.Total(), test.ShouldEqual, 5)
}

func TestFrameEmission(t *testing.T) {
	test.That(t, FrameEmission([]string{"bus", "person", "truk"}), test.ShouldAlmostEqual, 1.8)
	test.That(t, FrameEmission(nil), test.ShouldEqual, 0)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		total float64
		want  models.DensityLevel
	}{
		{0, models.DensityLow},
		{9, models.DensityLow},
		{9.99, models.DensityLow},
		{10, models.DensityMedium},
		{24, models.DensityMedium},
		{24.99, models.DensityMedium},
		{25, models.DensityHigh},
		{300, models.DensityHigh},
	}
	for _, tc := range cases {
		test.That(t, Classify(tc.total), test.ShouldEqual, tc.want)
	}
}

func TestRound2(t *testing.T) {
	test.That(t, Round2(1.3), test.ShouldEqual, 1.3)
	test.That(t, Round2(0.0867), test.ShouldEqual, 0.09)
	test.That(t, Round2(2.0/3.0), test.ShouldEqual, 0.67)
	// 1.305 and 2.675 sit just below the half in binary
	test.That(t, Round2(1.305), test.ShouldEqual, 1.3)
	test.That(t, Round2(2.675), test.ShouldEqual, 2.67)
	test.That(t, Round2(0.125), test.ShouldEqual, 0.12)
	test.That(t, Round2(0), test.ShouldEqual, 0)
}

func TestPollution(t *testing.T) {
	v := counts(2, 3, 0, 1)
	test.That(t, Round2(WeightedEmission(v)), test.ShouldEqual, 1.3)
	test.That(t, Pollution(v, models.DensityLow.IdleTime()), test.ShouldEqual, 1.3)

	// The product is not rounded again.
	want := 1.32
	want *= 3
	test.That(t, Pollution(counts(11, 0, 0, 0), 3), test.ShouldEqual, want)

	test.That(t, Pollution(models.CountVector{}, 6), test.ShouldEqual, 0)
}

func TestFuelWaste(t *testing.T) {
	test.That(t, FuelWaste(6, 1), test.ShouldEqual, 0.06)
	test.That(t, FuelWaste(12, 3), test.ShouldEqual, 0.36)
	test.That(t, FuelWaste(8.67, 1), test.ShouldEqual, 0.09)
	test.That(t, FuelWaste(0, 1), test.ShouldEqual, 0)
}

func TestVideoAverages(t *testing.T) {
	test.That(t, AverageTotal(nil), test.ShouldEqual, 0)
	test.That(t, AverageTotal([]int{12, 12, 2}), test.ShouldEqual, 8.67)
	test.That(t, AverageTotal([]int{5, 20}), test.ShouldEqual, 12.5)

	test.That(t, VideoPollution(nil, 6), test.ShouldEqual, 0)
	test.That(t, VideoPollution([]float64{0.6, 2.4}, 3), test.ShouldEqual, 4.5)
}
