package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/easydeed/reportscompany-sub005/internal/models"
)

const runColumns = `id, schedule_id, account_id, report_type, status, scheduled_for, artifact_url, recipients, error_message, started_at, finished_at, created_at`

// RunRepository persists report run history.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs the repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run row with generated defaults.
func (r *RunRepository) Create(ctx context.Context, run *models.ReportRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_runs (` + runColumns + `)
VALUES (:id, :schedule_id, :account_id, :report_type, :status, :scheduled_for, :artifact_url, :recipients, :error_message, :started_at, :finished_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create report run: %w", err)
	}
	return nil
}

// GetByID returns a run row by its identifier.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.ReportRun, error) {
	const query = `SELECT ` + runColumns + ` FROM report_runs WHERE id = $1`
	var run models.ReportRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, fmt.Errorf("get report run: %w", err)
	}
	return &run, nil
}

// UpdateRunParams defines the mutable fields.
type UpdateRunParams struct {
	Status       *models.RunStatus
	ArtifactURL  *string
	Recipients   *int
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Update persists the provided changes for a run row.
func (r *RunRepository) Update(ctx context.Context, id string, params UpdateRunParams) error {
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.ArtifactURL != nil {
		set = append(set, fmt.Sprintf("artifact_url = $%d", argPos))
		args = append(args, *params.ArtifactURL)
		argPos++
	}
	if params.Recipients != nil {
		set = append(set, fmt.Sprintf("recipients = $%d", argPos))
		args = append(args, *params.Recipients)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.StartedAt != nil {
		set = append(set, fmt.Sprintf("started_at = $%d", argPos))
		args = append(args, *params.StartedAt)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE report_runs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update report run: %w", err)
	}
	return nil
}

// ListBySchedule returns run history for one schedule, newest first.
func (r *RunRepository) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]models.ReportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + runColumns + ` FROM report_runs WHERE schedule_id = $1 ORDER BY created_at DESC LIMIT $2`
	var runs []models.ReportRun
	if err := r.db.SelectContext(ctx, &runs, query, scheduleID, limit); err != nil {
		return nil, fmt.Errorf("list schedule runs: %w", err)
	}
	return runs, nil
}

// ListQueued fetches queued runs (used for cold start recovery).
func (r *RunRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + runColumns + ` FROM report_runs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	var runs []models.ReportRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued runs: %w", err)
	}
	return runs, nil
}

// ListFinishedBefore retrieves sent runs prior to cutoff for artifact cleanup.
func (r *RunRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportRun, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT ` + runColumns + ` FROM report_runs WHERE status = 'SENT' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`
	var runs []models.ReportRun
	if err := r.db.SelectContext(ctx, &runs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished runs: %w", err)
	}
	return runs, nil
}
