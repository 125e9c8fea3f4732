package models

import "time"

// AnalysisRun records one invocation of the image or video pipeline
type AnalysisRun struct {
	ID string `json:"id" db:"id"`

	// Input
	Kind      string `json:"kind" db:"kind"` // image, video
	InputPath string `json:"input_path" db:"input_path"`
	Location  string `json:"location" db:"location"`
	FrameSkip int    `json:"frame_skip,omitempty" db:"frame_skip"`

	// Status
	Status        string `json:"status" db:"status"` // pending, running, completed, failed
	ErrorMessage  string `json:"error_message,omitempty" db:"error_message"`
	ResultSummary string `json:"result_summary,omitempty" db:"result_summary"` // JSON of the written observation

	// Metadata
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Run kinds
const (
	RunKindImage = "image"
	RunKindVideo = "video"
)

// Run status constants
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
