package service

import (
	"github.com/montanaflynn/stats"

	"github.com/jengzang/traffic-density-go/internal/models"
	"github.com/jengzang/traffic-density-go/internal/repository"
)

// HistoryService serves read-only views over the observation log
type HistoryService struct {
	repo *repository.ObservationRepository
}

// NewHistoryService creates a new history service
func NewHistoryService(repo *repository.ObservationRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// List returns logged observations in file order (newest last).
// A positive Limit keeps only the newest rows.
func (s *HistoryService) List(filter models.ObservationFilter) ([]models.Observation, error) {
	rows, err := s.filtered(filter.Location)
	if err != nil {
		return nil, err
	}
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[len(rows)-filter.Limit:]
	}
	return rows, nil
}

// Peak returns every observation whose total equals the maximum total
func (s *HistoryService) Peak(filter models.ObservationFilter) ([]models.Observation, error) {
	rows, err := s.filtered(filter.Location)
	if err != nil {
		return nil, err
	}

	peak := []models.Observation{}
	if len(rows) == 0 {
		return peak, nil
	}
	highest, err := stats.Max(totals(rows))
	if err != nil {
		return nil, err
	}
	for _, obs := range rows {
		if obs.Total == highest {
			peak = append(peak, obs)
		}
	}
	return peak, nil
}

// DensityDistribution counts observations per density level. All levels are present.
func (s *HistoryService) DensityDistribution(filter models.ObservationFilter) ([]models.DensityCount, error) {
	rows, err := s.filtered(filter.Location)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.DensityLevel]int, len(models.DensityLevels))
	for _, obs := range rows {
		counts[obs.Density]++
	}

	dist := make([]models.DensityCount, 0, len(models.DensityLevels))
	for _, level := range models.DensityLevels {
		dist = append(dist, models.DensityCount{Density: level, Count: counts[level]})
	}
	return dist, nil
}

// Summary aggregates the observation log
func (s *HistoryService) Summary(filter models.ObservationFilter) (*models.ObservationSummary, error) {
	rows, err := s.filtered(filter.Location)
	if err != nil {
		return nil, err
	}

	summary := &models.ObservationSummary{Observations: len(rows)}
	if len(rows) == 0 {
		return summary, nil
	}

	data := totals(rows)
	if summary.MeanTotal, err = stats.Mean(data); err != nil {
		return nil, err
	}
	if summary.MaxTotal, err = stats.Max(data); err != nil {
		return nil, err
	}

	locations := make(map[string]struct{})
	var pollution, fuel stats.Float64Data
	for _, obs := range rows {
		pollution = append(pollution, obs.Pollution)
		fuel = append(fuel, obs.FuelWaste)
		locations[obs.Location] = struct{}{}
	}
	summary.TotalPollution, _ = stats.Sum(pollution)
	summary.TotalFuelWaste, _ = stats.Sum(fuel)
	summary.Locations = len(locations)
	return summary, nil
}

func (s *HistoryService) filtered(location string) ([]models.Observation, error) {
	rows, err := s.repo.ReadAll()
	if err != nil {
		return nil, err
	}
	if location == "" {
		return rows, nil
	}

	out := make([]models.Observation, 0, len(rows))
	for _, obs := range rows {
		if obs.Location == location {
			out = append(out, obs)
		}
	}
	return out, nil
}

func totals(rows []models.Observation) stats.Float64Data {
	data := make(stats.Float64Data, len(rows))
	for i, obs := range rows {
		data[i] = obs.Total
	}
	return data
}
