package repository

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jengzang/traffic-density-go/internal/models"
)

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("analysis run not found")

// RunRepository handles database operations for analysis runs
type RunRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db, now: time.Now}
}

const runColumns = `id, kind, input_path, location, frame_skip, status,
	error_message, result_summary, created_at, updated_at, completed_at`

// Create inserts a new run. CreatedAt and UpdatedAt are set from the clock.
func (r *RunRepository) Create(run *models.AnalysisRun) error {
	now := r.now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	query := `
		INSERT INTO analysis_runs (
			id, kind, input_path, location, frame_skip, status,
			error_message, result_summary, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		run.ID,
		run.Kind,
		run.InputPath,
		run.Location,
		run.FrameSkip,
		run.Status,
		run.ErrorMessage,
		run.ResultSummary,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create analysis run")
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(id string) (*models.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get analysis run")
	}
	return run, nil
}

// List retrieves runs, newest first, optionally filtered by status
func (r *RunRepository) List(status string, limit, offset int) ([]*models.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE 1=1`

	args := []interface{}{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list analysis runs")
	}
	defer rows.Close()

	var runs []*models.AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan analysis run")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkAsRunning marks a run as running
func (r *RunRepository) MarkAsRunning(id string) error {
	return r.updateStatus(id, models.RunStatusRunning, "", "", false)
}

// MarkAsCompleted marks a run as completed with the JSON summary of its observation
func (r *RunRepository) MarkAsCompleted(id, resultSummary string) error {
	return r.updateStatus(id, models.RunStatusCompleted, "", resultSummary, true)
}

// MarkAsFailed marks a run as failed with an error message
func (r *RunRepository) MarkAsFailed(id, errorMsg string) error {
	return r.updateStatus(id, models.RunStatusFailed, errorMsg, "", true)
}

func (r *RunRepository) updateStatus(id, status, errorMsg, resultSummary string, finished bool) error {
	now := r.now().UTC()
	var completedAt interface{}
	if finished {
		completedAt = now
	}

	query := `
		UPDATE analysis_runs
		SET status = ?,
		    error_message = ?,
		    result_summary = ?,
		    updated_at = ?,
		    completed_at = ?
		WHERE id = ?
	`

	res, err := r.db.Exec(query, status, errorMsg, resultSummary, now, completedAt, id)
	if err != nil {
		return errors.Wrapf(err, "failed to mark run %s as %s", id, status)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.AnalysisRun, error) {
	run := &models.AnalysisRun{}
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.InputPath,
		&run.Location,
		&run.FrameSkip,
		&run.Status,
		&run.ErrorMessage,
		&run.ResultSummary,
		&run.CreatedAt,
		&run.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}
