// Package detector adapts external object detectors to a label-list contract.
//
// A detector receives one decoded frame and returns one class label per
// bounding box whose confidence is at least the given threshold. Counting,
// classification and persistence happen elsewhere.
package detector

import (
	"context"
	"image"
)

// DefaultConfidence is the minimum box confidence used by the pipelines
const DefaultConfidence = 0.25

// Detector runs object detection on a single frame
type Detector interface {
	Detect(ctx context.Context, frame image.Image, confidence float64) ([]string, error)
}

// Func adapts an ordinary function to the Detector interface
type Func func(ctx context.Context, frame image.Image, confidence float64) ([]string, error)

// Detect calls f
func (f Func) Detect(ctx context.Context, frame image.Image, confidence float64) ([]string, error) {
	return f(ctx, frame, confidence)
}
