// Package publisher emits observation events after an analysis run has been logged.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/traffic-density-go/internal/models"
)

// ObservationPublisher delivers logged observations to downstream consumers.
type ObservationPublisher interface {
	Publish(ctx context.Context, runID string, kind string, obs models.Observation) error
	Close() error
}

// ObservationEvent is the message body sent for each logged observation.
type ObservationEvent struct {
	EventID     string             `json:"event_id"`
	RunID       string             `json:"run_id"`
	Kind        string             `json:"kind"`
	PublishedAt time.Time          `json:"published_at"`
	Observation models.Observation `json:"observation"`
}

// NewObservationEvent stamps an observation with a fresh event ID.
func NewObservationEvent(runID, kind string, obs models.Observation, now time.Time) ObservationEvent {
	return ObservationEvent{
		EventID:     uuid.New().String(),
		RunID:       runID,
		Kind:        kind,
		PublishedAt: now.UTC(),
		Observation: obs,
	}
}

// ToJSON serializes the event.
func (e ObservationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, models.Observation) error { return nil }

func (NopPublisher) Close() error { return nil }
