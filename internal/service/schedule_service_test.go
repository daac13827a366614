package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/easydeed/reportscompany-sub005/internal/dto"
	"github.com/easydeed/reportscompany-sub005/internal/models"
	appErrors "github.com/easydeed/reportscompany-sub005/pkg/errors"
)

type scheduleStoreStub struct {
	schedules map[string]*models.Schedule
	listErr   error
}

func newScheduleStoreStub() *scheduleStoreStub {
	return &scheduleStoreStub{schedules: map[string]*models.Schedule{}}
}

func (s *scheduleStoreStub) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.CreatedAt = time.Now().UTC()
	copied := *schedule
	s.schedules[schedule.ID] = &copied
	return nil
}

func (s *scheduleStoreStub) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, ok := s.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *schedule
	return &copied, nil
}

func (s *scheduleStoreStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	var out []models.Schedule
	for _, schedule := range s.schedules {
		if schedule.AccountID == filter.AccountID {
			out = append(out, *schedule)
		}
	}
	return out, len(out), nil
}

func (s *scheduleStoreStub) Update(ctx context.Context, schedule *models.Schedule) error {
	if _, ok := s.schedules[schedule.ID]; !ok {
		return errors.New("no row")
	}
	copied := *schedule
	s.schedules[schedule.ID] = &copied
	return nil
}

func (s *scheduleStoreStub) SetActive(ctx context.Context, id string, active bool, nextRun *time.Time) error {
	schedule, ok := s.schedules[id]
	if !ok {
		return errors.New("no row")
	}
	schedule.Active = active
	schedule.NextRunAt = nextRun
	return nil
}

func (s *scheduleStoreStub) Delete(ctx context.Context, id string) error {
	delete(s.schedules, id)
	return nil
}

func validWizardRequest() dto.ScheduleWizardRequest {
	return dto.ScheduleWizardRequest{
		ReportType:   models.ReportTypeMarketSnapshot,
		AreaMode:     models.AreaKindCity,
		City:         "Pasadena",
		LookbackDays: 30,
		Cadence:      models.CadenceWeekly,
		Weekday:      "wednesday",
		SendTime:     "09:30",
		Timezone:     "America/Los_Angeles",
		Recipients: models.RecipientList{
			{Kind: models.RecipientKindEmail, Email: "agent@example.com"},
		},
	}
}

func newScheduleServiceForTest(t *testing.T) (*ScheduleService, *scheduleStoreStub) {
	t.Helper()
	store := newScheduleStoreStub()
	svc := NewScheduleService(store, nil, nil, zap.NewNop(), ScheduleServiceConfig{
		DefaultTimezone: "America/Los_Angeles",
		PreviewCount:    3,
	})
	return svc, store
}

func TestScheduleServiceCreate(t *testing.T) {
	svc, store := newScheduleServiceForTest(t)

	schedule, violations, err := svc.Create(context.Background(), "acct-1", validWizardRequest())
	require.NoError(t, err)
	require.Empty(t, violations)
	require.NotNil(t, schedule)

	assert.Equal(t, "acct-1", schedule.AccountID)
	assert.True(t, schedule.Active)
	require.NotNil(t, schedule.NextRunAt)
	assert.True(t, schedule.NextRunAt.After(time.Now()))
	require.NotNil(t, schedule.WeeklyDayOfWeek)
	assert.Equal(t, 3, *schedule.WeeklyDayOfWeek)
	assert.Nil(t, schedule.MonthlyDayOfMonth)
	assert.Len(t, store.schedules, 1)
}

func TestScheduleServiceCreateAppliesDefaultTimezone(t *testing.T) {
	svc, _ := newScheduleServiceForTest(t)

	req := validWizardRequest()
	req.Timezone = ""

	schedule, violations, err := svc.Create(context.Background(), "acct-1", req)
	require.NoError(t, err)
	require.Empty(t, violations)
	assert.Equal(t, "America/Los_Angeles", schedule.Timezone)
}

func TestScheduleServiceCreateReturnsViolations(t *testing.T) {
	svc, store := newScheduleServiceForTest(t)

	req := validWizardRequest()
	req.LookbackDays = 45 // not in the offered set

	schedule, violations, err := svc.Create(context.Background(), "acct-1", req)
	require.NoError(t, err)
	require.Nil(t, schedule)
	require.NotEmpty(t, violations)
	assert.Equal(t, "lookback_days", violations[0].Field)
	assert.Empty(t, store.schedules)
}

func TestScheduleServiceCreateRejectsMalformedPayload(t *testing.T) {
	svc, _ := newScheduleServiceForTest(t)

	req := validWizardRequest()
	req.Recipients = nil

	_, _, err := svc.Create(context.Background(), "acct-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestScheduleServiceGetScopesToAccount(t *testing.T) {
	svc, _ := newScheduleServiceForTest(t)

	created, _, err := svc.Create(context.Background(), "acct-1", validWizardRequest())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "acct-2", created.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	fetched, err := svc.Get(context.Background(), "acct-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
}

func TestScheduleServiceUpdatePreservesRunState(t *testing.T) {
	svc, store := newScheduleServiceForTest(t)

	created, _, err := svc.Create(context.Background(), "acct-1", validWizardRequest())
	require.NoError(t, err)

	lastRun := time.Now().Add(-24 * time.Hour).UTC()
	store.schedules[created.ID].LastRunAt = &lastRun

	req := validWizardRequest()
	req.Cadence = models.CadenceMonthly
	req.Weekday = ""
	req.DayOfMonth = 15

	updated, violations, err := svc.Update(context.Background(), "acct-1", created.ID, req)
	require.NoError(t, err)
	require.Empty(t, violations)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, models.CadenceMonthly, updated.Cadence)
	require.NotNil(t, updated.MonthlyDayOfMonth)
	assert.Equal(t, 15, *updated.MonthlyDayOfMonth)
	assert.Nil(t, updated.WeeklyDayOfWeek)
	require.NotNil(t, updated.LastRunAt)
	assert.True(t, updated.LastRunAt.Equal(lastRun))
	require.NotNil(t, updated.NextRunAt)
}

func TestScheduleServicePauseAndResume(t *testing.T) {
	svc, store := newScheduleServiceForTest(t)

	created, _, err := svc.Create(context.Background(), "acct-1", validWizardRequest())
	require.NoError(t, err)

	paused, err := svc.Pause(context.Background(), "acct-1", created.ID)
	require.NoError(t, err)
	assert.False(t, paused.Active)
	assert.Nil(t, paused.NextRunAt)
	assert.Nil(t, store.schedules[created.ID].NextRunAt)

	// Pausing twice is a no-op.
	paused, err = svc.Pause(context.Background(), "acct-1", created.ID)
	require.NoError(t, err)
	assert.False(t, paused.Active)

	resumed, err := svc.Resume(context.Background(), "acct-1", created.ID)
	require.NoError(t, err)
	assert.True(t, resumed.Active)
	require.NotNil(t, resumed.NextRunAt)
	assert.True(t, resumed.NextRunAt.After(time.Now()))
}

func TestScheduleServiceDelete(t *testing.T) {
	svc, store := newScheduleServiceForTest(t)

	created, _, err := svc.Create(context.Background(), "acct-1", validWizardRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "acct-1", created.ID))
	assert.Empty(t, store.schedules)

	err = svc.Delete(context.Background(), "acct-1", created.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestScheduleServicePreview(t *testing.T) {
	svc, store := newScheduleServiceForTest(t)

	preview, violations, err := svc.Preview(context.Background(), "acct-1", dto.PreviewRequest{
		ScheduleWizardRequest: validWizardRequest(),
		Count:                 4,
	})
	require.NoError(t, err)
	require.Empty(t, violations)
	require.Len(t, preview.NextRuns, 4)
	require.Len(t, preview.Display, 4)
	assert.Equal(t, "America/Los_Angeles", preview.Timezone)

	for i := 1; i < len(preview.NextRuns); i++ {
		assert.True(t, preview.NextRuns[i].After(preview.NextRuns[i-1]))
	}

	// Preview never persists.
	assert.Empty(t, store.schedules)
}

func TestScheduleServicePreviewReportsViolations(t *testing.T) {
	svc, _ := newScheduleServiceForTest(t)

	req := validWizardRequest()
	req.City = ""
	req.ZipCodes = []string{"91101"}

	preview, violations, err := svc.Preview(context.Background(), "acct-1", dto.PreviewRequest{ScheduleWizardRequest: req})
	require.NoError(t, err)
	require.Nil(t, preview)
	require.NotEmpty(t, violations)
}

func TestScheduleServiceListPaginates(t *testing.T) {
	svc, _ := newScheduleServiceForTest(t)

	for i := 0; i < 3; i++ {
		_, _, err := svc.Create(context.Background(), "acct-1", validWizardRequest())
		require.NoError(t, err)
	}
	_, _, err := svc.Create(context.Background(), "acct-2", validWizardRequest())
	require.NoError(t, err)

	schedules, pagination, err := svc.List(context.Background(), "acct-1", dto.ScheduleListQuery{})
	require.NoError(t, err)
	assert.Len(t, schedules, 3)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 3, pagination.TotalCount)
}
