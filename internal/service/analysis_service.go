package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jengzang/traffic-density-go/internal/analysis"
	"github.com/jengzang/traffic-density-go/internal/models"
	"github.com/jengzang/traffic-density-go/internal/publisher"
	"github.com/jengzang/traffic-density-go/internal/repository"
)

// AnalysisService runs the pipelines and records each call in the run ledger
type AnalysisService struct {
	pipeline  *analysis.Pipeline
	runs      *repository.RunRepository
	publisher publisher.ObservationPublisher
	logger    *zap.SugaredLogger
	inputDir  string
}

// NewAnalysisService creates a new analysis service. runs and pub may be nil.
func NewAnalysisService(pipeline *analysis.Pipeline, runs *repository.RunRepository,
	pub publisher.ObservationPublisher, logger *zap.SugaredLogger,
) *AnalysisService {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AnalysisService{
		pipeline:  pipeline,
		runs:      runs,
		publisher: pub,
		logger:    logger,
	}
}

// ImageAnalysis is the outcome of one image run
type ImageAnalysis struct {
	RunID  string              `json:"run_id,omitempty"`
	Result *models.ImageResult `json:"result"`
}

// VideoAnalysis is the outcome of one video run
type VideoAnalysis struct {
	RunID   string               `json:"run_id,omitempty"`
	Summary *models.VideoSummary `json:"summary"`
}

// AnalyzeImage processes one image. Pipeline errors are returned unchanged.
func (s *AnalysisService) AnalyzeImage(ctx context.Context, path, location string) (*ImageAnalysis, error) {
	path, err := s.resolveInput(path)
	if err != nil {
		s.logger.Warnw("rejected input", "kind", models.RunKindImage, "error", err)
		return nil, err
	}
	run := s.startRun(models.RunKindImage, path, location, 0)

	result, err := s.pipeline.ProcessImage(ctx, path, location)
	if err != nil {
		s.failRun(run, err)
		return nil, err
	}

	s.completeRun(ctx, run, models.RunKindImage, result.Observation)
	return &ImageAnalysis{RunID: runID(run), Result: result}, nil
}

// AnalyzeVideo processes one video, sampling every frameSkip-th frame.
func (s *AnalysisService) AnalyzeVideo(ctx context.Context, path string, frameSkip int, location string) (*VideoAnalysis, error) {
	path, err := s.resolveInput(path)
	if err != nil {
		s.logger.Warnw("rejected input", "kind", models.RunKindVideo, "error", err)
		return nil, err
	}
	run := s.startRun(models.RunKindVideo, path, location, frameSkip)

	summary, err := s.pipeline.ProcessVideo(ctx, path, frameSkip, location)
	if err != nil {
		s.failRun(run, err)
		return nil, err
	}

	s.completeRun(ctx, run, models.RunKindVideo, summary.Observation)
	return &VideoAnalysis{RunID: runID(run), Summary: summary}, nil
}

// GetRun retrieves a ledger entry by ID
func (s *AnalysisService) GetRun(id string) (*models.AnalysisRun, error) {
	if s.runs == nil {
		return nil, repository.ErrRunNotFound
	}
	return s.runs.GetByID(id)
}

// ListRuns retrieves ledger entries, newest first
func (s *AnalysisService) ListRuns(status string, limit, offset int) ([]*models.AnalysisRun, error) {
	if s.runs == nil {
		return []*models.AnalysisRun{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.runs.List(status, limit, offset)
}

// startRun records a pending run. Ledger failures are logged and the run continues untracked.
func (s *AnalysisService) startRun(kind, path, location string, frameSkip int) *models.AnalysisRun {
	if s.runs == nil {
		return nil
	}
	if location == "" {
		location = s.pipeline.DefaultLocation()
	}

	run := &models.AnalysisRun{
		ID:        uuid.New().String(),
		Kind:      kind,
		InputPath: path,
		Location:  location,
		FrameSkip: frameSkip,
		Status:    models.RunStatusPending,
	}
	if err := s.runs.Create(run); err != nil {
		s.logger.Warnw("failed to record analysis run", "kind", kind, "path", path, "error", err)
		return nil
	}
	if err := s.runs.MarkAsRunning(run.ID); err != nil {
		s.logger.Warnw("failed to mark run as running", "run_id", run.ID, "error", err)
	}
	return run
}

func (s *AnalysisService) failRun(run *models.AnalysisRun, cause error) {
	s.logger.Infow("analysis failed", "run_id", runID(run), "error", cause)
	if run == nil {
		return
	}
	if err := s.runs.MarkAsFailed(run.ID, cause.Error()); err != nil {
		s.logger.Warnw("failed to mark run as failed", "run_id", run.ID, "error", err)
	}
}

func (s *AnalysisService) completeRun(ctx context.Context, run *models.AnalysisRun, kind string, obs models.Observation) {
	id := runID(run)
	if run != nil {
		summary, err := json.Marshal(obs)
		if err != nil {
			s.logger.Warnw("failed to serialize observation", "run_id", id, "error", err)
		}
		if err := s.runs.MarkAsCompleted(run.ID, string(summary)); err != nil {
			s.logger.Warnw("failed to mark run as completed", "run_id", id, "error", err)
		}
	}

	if err := s.publisher.Publish(ctx, id, kind, obs); err != nil {
		s.logger.Warnw("failed to publish observation", "run_id", id, "error", err)
	}
	s.logger.Infow("analysis completed",
		"run_id", id, "kind", kind, "location", obs.Location,
		"total", obs.Total, "density", obs.Density.String())
}

func runID(run *models.AnalysisRun) string {
	if run == nil {
		return ""
	}
	return run.ID
}
