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

const scheduleColumns = `id, account_id, report_type, area, lookback_days, cadence, weekly_dow, monthly_dom, send_hour, send_minute, timezone, recipients, active, last_run_at, next_run_at, created_at, updated_at`

// ScheduleRepository provides persistence for report schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a new schedule row with generated defaults.
func (r *ScheduleRepository) Create(ctx context.Context, s *models.Schedule) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	const query = `INSERT INTO schedules (` + scheduleColumns + `)
VALUES (:id, :account_id, :report_type, :area, :lookback_days, :cadence, :weekly_dow, :monthly_dom, :send_hour, :send_minute, :timezone, :recipients, :active, :last_run_at, :next_run_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// GetByID loads a schedule by id.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	const query = `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	var s models.Schedule
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return &s, nil
}

// List returns schedules with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	base := "FROM schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.AccountID != "" {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", len(args)+1))
		args = append(args, filter.AccountID)
	}
	if filter.ReportType != "" {
		conditions = append(conditions, fmt.Sprintf("report_type = $%d", len(args)+1))
		args = append(args, filter.ReportType)
	}
	if filter.Cadence != "" {
		conditions = append(conditions, fmt.Sprintf("cadence = $%d", len(args)+1))
		args = append(args, filter.Cadence)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"created_at":  true,
		"next_run_at": true,
		"report_type": true,
		"cadence":     true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", scheduleColumns, base, sortBy, order, size, offset)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// Update persists an edited schedule row.
func (r *ScheduleRepository) Update(ctx context.Context, s *models.Schedule) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET report_type = :report_type, area = :area, lookback_days = :lookback_days, cadence = :cadence, weekly_dow = :weekly_dow, monthly_dom = :monthly_dom, send_hour = :send_hour, send_minute = :send_minute, timezone = :timezone, recipients = :recipients, active = :active, next_run_at = :next_run_at, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update schedule: no row for id %s", s.ID)
	}
	return nil
}

// SetActive toggles the active flag. nextRun carries the recomputed fire time
// on resume and nil on pause.
func (r *ScheduleRepository) SetActive(ctx context.Context, id string, active bool, nextRun *time.Time) error {
	const query = `UPDATE schedules SET active = $1, next_run_at = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, active, nextRun, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set schedule active: %w", err)
	}
	return nil
}

// Delete removes a schedule row.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// ListDue fetches active schedules whose next fire time has arrived.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + scheduleColumns + ` FROM schedules WHERE active = TRUE AND next_run_at IS NOT NULL AND next_run_at <= $1 ORDER BY next_run_at ASC LIMIT $2`
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	return schedules, nil
}

// MarkExecuted advances last_run_at/next_run_at in a single optimistic UPDATE
// conditioned on the previously observed next_run_at. A false return means
// another runner claimed the slot first.
func (r *ScheduleRepository) MarkExecuted(ctx context.Context, id string, ranAt time.Time, observedNextRun time.Time, nextRun time.Time) (bool, error) {
	const query = `UPDATE schedules SET last_run_at = $1, next_run_at = $2, updated_at = $3 WHERE id = $4 AND next_run_at = $5`
	result, err := r.db.ExecContext(ctx, query, ranAt, nextRun, time.Now().UTC(), id, observedNextRun)
	if err != nil {
		return false, fmt.Errorf("mark schedule executed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark schedule executed: %w", err)
	}
	return affected > 0, nil
}
