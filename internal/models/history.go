package models

// ObservationFilter narrows historical observation queries
type ObservationFilter struct {
	Location string `form:"location"`
	Limit    int    `form:"limit"`
}

// DensityCount is one bar of the density distribution
type DensityCount struct {
	Density DensityLevel `json:"density"`
	Count   int          `json:"count"`
}

// ObservationSummary aggregates the observation log
type ObservationSummary struct {
	Observations   int     `json:"observations"`
	MeanTotal      float64 `json:"mean_total"`
	MaxTotal       float64 `json:"max_total"`
	TotalPollution float64 `json:"total_pollution"`
	TotalFuelWaste float64 `json:"total_fuel_waste"`
	Locations      int     `json:"locations"`
}
