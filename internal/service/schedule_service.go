package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/easydeed/reportscompany-sub005/internal/dto"
	"github.com/easydeed/reportscompany-sub005/internal/models"
	"github.com/easydeed/reportscompany-sub005/internal/recurrence"
	appErrors "github.com/easydeed/reportscompany-sub005/pkg/errors"
)

type scheduleStore interface {
	Create(ctx context.Context, s *models.Schedule) error
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	Update(ctx context.Context, s *models.Schedule) error
	SetActive(ctx context.Context, id string, active bool, nextRun *time.Time) error
	Delete(ctx context.Context, id string) error
}

// ScheduleServiceConfig carries defaults applied to new schedules.
type ScheduleServiceConfig struct {
	DefaultTimezone string
	PreviewCount    int
	ListCacheTTL    time.Duration
}

// ScheduleService owns the schedule lifecycle: wizard conversion, validation,
// next-run computation, and persistence.
type ScheduleService struct {
	repo     scheduleStore
	cache    *CacheService
	validate *validator.Validate
	logger   *zap.Logger
	cfg      ScheduleServiceConfig
}

// NewScheduleService constructs the schedule service.
func NewScheduleService(repo scheduleStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg ScheduleServiceConfig) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "America/Los_Angeles"
	}
	if cfg.PreviewCount <= 0 {
		cfg.PreviewCount = 3
	}
	return &ScheduleService{repo: repo, cache: cache, validate: validate, logger: logger, cfg: cfg}
}

// listPayload is the cached shape of one listing page.
type listPayload struct {
	Schedules []models.Schedule `json:"schedules"`
	Total     int               `json:"total"`
}

func wizardStateFromRequest(req dto.ScheduleWizardRequest) recurrence.WizardState {
	return recurrence.WizardState{
		ReportType:   req.ReportType,
		AreaMode:     req.AreaMode,
		City:         req.City,
		ZipCodes:     req.ZipCodes,
		LookbackDays: req.LookbackDays,
		Cadence:      req.Cadence,
		Weekday:      req.Weekday,
		DayOfMonth:   req.DayOfMonth,
		SendTime:     req.SendTime,
		Timezone:     req.Timezone,
		Recipients:   req.Recipients,
	}
}

// buildCanonical converts the wizard payload for accountID and fills in the
// configured default timezone when the form omitted one.
func (s *ScheduleService) buildCanonical(accountID string, req dto.ScheduleWizardRequest) models.Schedule {
	schedule := recurrence.ToCanonical(wizardStateFromRequest(req))
	schedule.AccountID = accountID
	if schedule.Timezone == "" {
		schedule.Timezone = s.cfg.DefaultTimezone
	}
	return schedule
}

// Create validates the wizard payload, computes the first fire time, and
// persists the schedule. A non-empty violation slice means the payload was
// rejected; the error return covers infrastructure failures only.
func (s *ScheduleService) Create(ctx context.Context, accountID string, req dto.ScheduleWizardRequest) (*models.Schedule, []recurrence.Violation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	schedule := s.buildCanonical(accountID, req)
	if violations := recurrence.Validate(schedule); len(violations) > 0 {
		return nil, violations, nil
	}

	next, err := recurrence.NextOccurrence(schedule, time.Now())
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "compute next run")
	}
	schedule.NextRunAt = &next

	if err := s.repo.Create(ctx, &schedule); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create schedule")
	}

	s.cache.InvalidateAccount(ctx, accountID)
	s.logger.Info("schedule created",
		zap.String("schedule_id", schedule.ID),
		zap.String("account_id", accountID),
		zap.String("report_type", string(schedule.ReportType)),
		zap.Time("next_run_at", next))

	return &schedule, nil, nil
}

// Get fetches one schedule scoped to the account.
func (s *ScheduleService) Get(ctx context.Context, accountID, id string) (*models.Schedule, error) {
	schedule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "get schedule")
	}
	if schedule.AccountID != accountID {
		// Do not leak existence of other accounts' schedules.
		return nil, appErrors.ErrNotFound
	}
	return schedule, nil
}

// List returns the account's schedules with pagination, served from cache
// when a fresh page is available.
func (s *ScheduleService) List(ctx context.Context, accountID string, query dto.ScheduleListQuery) ([]models.Schedule, *models.Pagination, error) {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	sortKey := fmt.Sprintf("%s.%s", query.SortBy, query.SortOrder)
	cacheKey := ScheduleListKey(accountID, query.ReportType, query.Cadence, query.Active, page, pageSize, sortKey)

	var cached listPayload
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached.Schedules, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: cached.Total}, nil
	}

	schedules, total, err := s.repo.List(ctx, models.ScheduleFilter{
		AccountID:  accountID,
		ReportType: query.ReportType,
		Cadence:    query.Cadence,
		Active:     query.Active,
		Page:       page,
		PageSize:   pageSize,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list schedules")
	}

	_ = s.cache.Set(ctx, cacheKey, listPayload{Schedules: schedules, Total: total}, s.cfg.ListCacheTTL)

	return schedules, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update replaces the schedule's definition with the wizard payload while
// preserving identity, run history, and the active flag. The next run is
// recomputed from the new definition when the schedule is active.
func (s *ScheduleService) Update(ctx context.Context, accountID, id string, req dto.ScheduleWizardRequest) (*models.Schedule, []recurrence.Violation, error) {
	existing, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, nil, err
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	updated := s.buildCanonical(accountID, req)
	updated.ID = existing.ID
	updated.Active = existing.Active
	updated.LastRunAt = existing.LastRunAt
	updated.CreatedAt = existing.CreatedAt

	if violations := recurrence.Validate(updated); len(violations) > 0 {
		return nil, violations, nil
	}

	if updated.Active {
		next, err := recurrence.NextOccurrence(updated, time.Now())
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "compute next run")
		}
		updated.NextRunAt = &next
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update schedule")
	}

	s.cache.InvalidateAccount(ctx, accountID)
	return &updated, nil, nil
}

// Pause deactivates the schedule and clears its pending fire time.
func (s *ScheduleService) Pause(ctx context.Context, accountID, id string) (*models.Schedule, error) {
	schedule, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if !schedule.Active {
		return schedule, nil
	}

	if err := s.repo.SetActive(ctx, id, false, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pause schedule")
	}

	schedule.Active = false
	schedule.NextRunAt = nil
	s.cache.InvalidateAccount(ctx, accountID)
	s.logger.Info("schedule paused", zap.String("schedule_id", id))
	return schedule, nil
}

// Resume reactivates the schedule and computes a fresh fire time from now,
// so a long pause never produces a burst of stale sends.
func (s *ScheduleService) Resume(ctx context.Context, accountID, id string) (*models.Schedule, error) {
	schedule, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if schedule.Active {
		return schedule, nil
	}

	resumed := *schedule
	resumed.Active = true
	next, err := recurrence.NextOccurrence(resumed, time.Now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "compute next run")
	}

	if err := s.repo.SetActive(ctx, id, true, &next); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resume schedule")
	}

	schedule.Active = true
	schedule.NextRunAt = &next
	s.cache.InvalidateAccount(ctx, accountID)
	s.logger.Info("schedule resumed", zap.String("schedule_id", id), zap.Time("next_run_at", next))
	return schedule, nil
}

// Delete removes the schedule.
func (s *ScheduleService) Delete(ctx context.Context, accountID, id string) error {
	if _, err := s.Get(ctx, accountID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete schedule")
	}
	s.cache.InvalidateAccount(ctx, accountID)
	return nil
}

// Preview computes the upcoming fire times for a draft payload without
// persisting anything. Validation failures surface as violations the same
// way Create reports them.
func (s *ScheduleService) Preview(ctx context.Context, accountID string, req dto.PreviewRequest) (*dto.PreviewResponse, []recurrence.Violation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preview payload")
	}

	schedule := s.buildCanonical(accountID, req.ScheduleWizardRequest)
	if violations := recurrence.Validate(schedule); len(violations) > 0 {
		return nil, violations, nil
	}

	count := req.Count
	if count <= 0 {
		count = s.cfg.PreviewCount
	}

	runs, err := recurrence.NextOccurrences(schedule, time.Now(), count)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "compute preview")
	}

	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, "resolve timezone")
	}

	display := make([]string, len(runs))
	for i, run := range runs {
		display[i] = run.In(loc).Format("Monday, Jan 2 2006 at 3:04 PM MST")
	}

	return &dto.PreviewResponse{
		Timezone: schedule.Timezone,
		NextRuns: runs,
		Display:  display,
	}, nil, nil
}
