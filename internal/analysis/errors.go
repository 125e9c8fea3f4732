package analysis

import "github.com/pkg/errors"

// Pipeline failure kinds. Callers match them with errors.Is.
var (
	// ErrNotFound means the input image or video path does not exist
	ErrNotFound = errors.New("input not found")

	// ErrOpen means the input exists but cannot be decoded
	ErrOpen = errors.New("cannot open input")

	// ErrWrite means the observation could not be appended to the log
	ErrWrite = errors.New("cannot write observation")
)
