package analysis

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jengzang/traffic-density-go/internal/detector"
	"github.com/jengzang/traffic-density-go/internal/framesource"
	"github.com/jengzang/traffic-density-go/internal/models"
)

// DefaultFrameSkip samples every 15th video frame
const DefaultFrameSkip = 15

// ObservationLog is the append-only store observations are written to
type ObservationLog interface {
	Append(obs models.Observation) error
}

// Options configures a Pipeline. Detector and Log are required.
type Options struct {
	Detector   detector.Detector
	Opener     framesource.Opener
	Log        ObservationLog
	Confidence float64
	FrameSkip  int
	Location   string
	Now        func() time.Time
	Logger     *zap.SugaredLogger
}

// Pipeline turns images and videos into persisted observations.
// It is safe to share between callers; it holds no per-call state.
type Pipeline struct {
	detector   detector.Detector
	opener     framesource.Opener
	log        ObservationLog
	confidence float64
	frameSkip  int
	location   string
	now        func() time.Time
	logger     *zap.SugaredLogger
}

// NewPipeline creates a pipeline, filling unset options with defaults
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Detector == nil {
		return nil, errors.New("pipeline requires a detector")
	}
	if opts.Log == nil {
		return nil, errors.New("pipeline requires an observation log")
	}

	p := &Pipeline{
		detector:   opts.Detector,
		opener:     opts.Opener,
		log:        opts.Log,
		confidence: opts.Confidence,
		frameSkip:  opts.FrameSkip,
		location:   opts.Location,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if p.opener == nil {
		p.opener = framesource.NewFFmpegOpener(opts.Logger)
	}
	if p.confidence <= 0 {
		p.confidence = detector.DefaultConfidence
	}
	if p.frameSkip <= 0 {
		p.frameSkip = DefaultFrameSkip
	}
	if p.location == "" {
		p.location = models.DefaultLocation
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = zap.NewNop().Sugar()
	}
	return p, nil
}

// DefaultLocation is the location recorded when a caller passes none
func (p *Pipeline) DefaultLocation() string {
	return p.location
}

// ProcessImage counts vehicles in one image and appends its observation
func (p *Pipeline) ProcessImage(ctx context.Context, path, location string) (*models.ImageResult, error) {
	if err := checkExists(path); err != nil {
		return nil, err
	}

	img, err := framesource.LoadImage(path)
	if err != nil {
		return nil, errors.Wrapf(ErrOpen, "%v", err)
	}

	labels, err := p.detector.Detect(ctx, img, p.confidence)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to detect vehicles in %s", path)
	}

	var counts models.CountVector
	Accumulate(&counts, labels)

	total := counts.Total()
	density := Classify(float64(total))
	idle := density.IdleTime()

	obs := p.observation(location, counts, float64(total), density,
		Pollution(counts, idle), FuelWaste(float64(total), idle))
	if err := p.append(obs); err != nil {
		return nil, err
	}

	p.logger.Infow("image analysed",
		"path", path, "location", obs.Location, "total", total,
		"density", density, "pollution", obs.Pollution, "fuel_waste", obs.FuelWaste)

	return &models.ImageResult{
		Car:         counts.Get(models.Car),
		Bike:        counts.Get(models.Motorcycle),
		Bus:         counts.Get(models.Bus),
		Truck:       counts.Get(models.Truck),
		Total:       total,
		Density:     density,
		Pollution:   obs.Pollution,
		FuelWaste:   obs.FuelWaste,
		Observation: obs,
	}, nil
}

// ProcessVideo samples every frameSkip-th frame, accumulates counts over the
// whole video and appends one summary observation. frameSkip <= 0 uses the
// pipeline default.
//
// The summary pollution is the mean per-frame emission multiplied by the
// idle time of the average-total density, not a per-frame idle time.
func (p *Pipeline) ProcessVideo(ctx context.Context, path string, frameSkip int, location string) (*models.VideoSummary, error) {
	if err := checkExists(path); err != nil {
		return nil, err
	}
	if frameSkip <= 0 {
		frameSkip = p.frameSkip
	}

	src, err := p.opener.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(ErrOpen, "%v", err)
	}

	summary := &models.VideoSummary{}
	if err := p.scan(ctx, src, frameSkip, summary); err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", path)
	}

	summary.FramesSampled = summary.Timeline.Len()
	summary.Average = AverageTotal(summary.Timeline.Totals)
	summary.Density = Classify(summary.Average)
	idle := summary.Density.IdleTime()
	summary.Pollution = VideoPollution(summary.Timeline.Pollution, idle)
	summary.Fuel = FuelWaste(summary.Average, idle)

	obs := p.observation(location, summary.FinalCounts, summary.Average, summary.Density,
		summary.Pollution, summary.Fuel)
	obs.Averaged = summary.FramesSampled > 0
	if err := p.append(obs); err != nil {
		return nil, err
	}
	summary.Observation = obs

	p.logger.Infow("video analysed",
		"path", path, "location", obs.Location, "frames", summary.FramesRead,
		"sampled", summary.FramesSampled, "average", summary.Average,
		"density", summary.Density, "pollution", summary.Pollution, "fuel_waste", summary.Fuel)

	return summary, nil
}

// scan drains src into summary and always closes it
func (p *Pipeline) scan(ctx context.Context, src framesource.Source, frameSkip int, summary *models.VideoSummary) (err error) {
	defer func() {
		err = multierr.Append(err, src.Close())
	}()

	for frame, readErr := range framesource.Frames(src) {
		if readErr != nil {
			return errors.Wrapf(readErr, "failed to read frame %d", frame.Index)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.FramesRead = frame.Index

		if !framesource.Sampled(frame.Index, frameSkip) {
			continue
		}

		labels, err := p.detector.Detect(ctx, framesource.Materialize(frame.Image), p.confidence)
		if err != nil {
			return errors.Wrapf(err, "failed to detect vehicles in frame %d", frame.Index)
		}

		total := Accumulate(&summary.FinalCounts, labels)
		summary.Timeline.Append(total, FrameEmission(labels))
	}
	return nil
}

func (p *Pipeline) observation(location string, counts models.CountVector, total float64,
	density models.DensityLevel, pollution, fuelWaste float64,
) models.Observation {
	if location == "" {
		location = p.location
	}
	now := p.now()
	return models.Observation{
		Date:      now.Format(models.DateLayout),
		Time:      now.Format(models.TimeLayout),
		Location:  location,
		Counts:    counts,
		Total:     total,
		Density:   density,
		Pollution: pollution,
		FuelWaste: fuelWaste,
	}
}

func (p *Pipeline) append(obs models.Observation) error {
	err := p.log.Append(obs)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrWrite) {
		return err
	}
	return errors.Wrapf(ErrWrite, "%v", err)
}

// checkExists treats any stat failure as a missing input
func checkExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(ErrNotFound, "%s", path)
	}
	return nil
}
