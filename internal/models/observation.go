package models

// DefaultLocation is used when a caller does not name the junction
const DefaultLocation = "Junction-1"

// Observation log date and time layouts
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Observation is one row of the observation log: a single image or a whole video summary
type Observation struct {
	Date     string       `json:"date"`
	Time     string       `json:"time"`
	Location string       `json:"location"`
	Counts   CountVector  `json:"counts"`
	Total    float64      `json:"total"` // vehicle count for images, average per sampled frame for videos
	Density  DensityLevel `json:"density"`

	// Averaged marks Total as a per-frame mean; the log then writes it as a float ("6.0", not "6")
	Averaged bool `json:"averaged,omitempty"`

	Pollution float64 `json:"pollution"`  // kg CO2 equivalent
	FuelWaste float64 `json:"fuel_waste"` // liters
}

// ImageResult is the presentation view of an analysed image
type ImageResult struct {
	Car         int          `json:"car"`
	Bike        int          `json:"bike"`
	Bus         int          `json:"bus"`
	Truck       int          `json:"truck"`
	Total       int          `json:"total"`
	Density     DensityLevel `json:"density"`
	Pollution   float64      `json:"pollution"`
	FuelWaste   float64      `json:"fuel_waste"`
	Observation Observation  `json:"observation"`
}

// Timeline holds per-sampled-frame totals and emissions of one video
type Timeline struct {
	Totals    []int     `json:"timeline"`
	Pollution []float64 `json:"pollution_timeline"`
}

// Append records one sampled frame
func (t *Timeline) Append(total int, pollution float64) {
	t.Totals = append(t.Totals, total)
	t.Pollution = append(t.Pollution, pollution)
}

// Len returns the number of sampled frames
func (t Timeline) Len() int {
	return len(t.Totals)
}

// VideoSummary is the presentation view of an analysed video
type VideoSummary struct {
	FinalCounts CountVector `json:"final_counts"`
	Timeline
	Average   float64      `json:"average"`
	Density   DensityLevel `json:"density"`
	Pollution float64      `json:"pollution"`
	Fuel      float64      `json:"fuel"`

	FramesRead    int         `json:"frames_read"`
	FramesSampled int         `json:"frames_sampled"`
	Observation   Observation `json:"observation"`
}
