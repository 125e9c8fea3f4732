package service

import (
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/jengzang/traffic-density-go/internal/models"
	"github.com/jengzang/traffic-density-go/internal/repository"
)

func seedHistory(t *testing.T) *HistoryService {
	t.Helper()
	repo := repository.NewObservationRepository(filepath.Join(t.TempDir(), "traffic_data.csv"), nil)
	rows := []struct {
		location  string
		total     float64
		density   models.DensityLevel
		pollution float64
		fuel      float64
	}{
		{"Junction-1", 6, models.DensityLow, 1.3, 0.06},
		{"Junction-1", 25, models.DensityHigh, 40.8, 1.5},
		{"Junction-2", 12, models.DensityMedium, 3.9, 0.36},
		{"Junction-1", 25, models.DensityHigh, 36, 1.5},
	}
	for i, r := range rows {
		obs := models.Observation{
			Date:      "2026-03-14",
			Time:      []string{"08:00", "08:15", "08:30", "08:45"}[i],
			Location:  r.location,
			Total:     r.total,
			Density:   r.density,
			Pollution: r.pollution,
			FuelWaste: r.fuel,
		}
		test.That(t, repo.Append(obs), test.ShouldBeNil)
	}
	return NewHistoryService(repo)
}

func TestHistoryList(t *testing.T) {
	svc := seedHistory(t)

	rows, err := svc.List(models.ObservationFilter{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rows, test.ShouldHaveLength, 4)

	rows, err = svc.List(models.ObservationFilter{Location: "Junction-1", Limit: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rows, test.ShouldHaveLength, 2)
	test.That(t, rows[0].Time, test.ShouldEqual, "08:15")
	test.That(t, rows[1].Time, test.ShouldEqual, "08:45")
}

func TestHistoryPeak(t *testing.T) {
	svc := seedHistory(t)

	peak, err := svc.Peak(models.ObservationFilter{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, peak, test.ShouldHaveLength, 2)
	for _, obs := range peak {
		test.That(t, obs.Total, test.ShouldEqual, 25.0)
	}

	peak, err = svc.Peak(models.ObservationFilter{Location: "Junction-2"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, peak, test.ShouldHaveLength, 1)
	test.That(t, peak[0].Total, test.ShouldEqual, 12.0)
}

func TestHistoryDensityDistribution(t *testing.T) {
	svc := seedHistory(t)

	dist, err := svc.DensityDistribution(models.ObservationFilter{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dist, test.ShouldResemble, []models.DensityCount{
		{Density: models.DensityLow, Count: 1},
		{Density: models.DensityMedium, Count: 1},
		{Density: models.DensityHigh, Count: 2},
	})
}

func TestHistorySummary(t *testing.T) {
	svc := seedHistory(t)

	summary, err := svc.Summary(models.ObservationFilter{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Observations, test.ShouldEqual, 4)
	test.That(t, summary.MeanTotal, test.ShouldEqual, 17.0)
	test.That(t, summary.MaxTotal, test.ShouldEqual, 25.0)
	test.That(t, summary.TotalPollution, test.ShouldAlmostEqual, 82.0)
	test.That(t, summary.TotalFuelWaste, test.ShouldAlmostEqual, 3.42)
	test.That(t, summary.Locations, test.ShouldEqual, 2)
}

func TestHistoryEmptyLog(t *testing.T) {
	svc := NewHistoryService(repository.NewObservationRepository(filepath.Join(t.TempDir(), "none.csv"), nil))

	rows, err := svc.List(models.ObservationFilter{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rows, test.ShouldBeEmpty)

	peak, err := svc.Peak(models.ObservationFilter{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, peak, test.ShouldBeEmpty)

	summary, err := svc.Summary(models.ObservationFilter{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Observations, test.ShouldEqual, 0)

	dist, err := svc.DensityDistribution(models.ObservationFilter{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dist, test.ShouldHaveLength, 3)
}
