package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/easydeed/reportscompany-sub005/internal/models"
	"github.com/easydeed/reportscompany-sub005/internal/repository"
	"github.com/easydeed/reportscompany-sub005/pkg/jobs"
	"github.com/easydeed/reportscompany-sub005/pkg/mailer"
	"github.com/easydeed/reportscompany-sub005/pkg/storage"
)

type dueStoreStub struct {
	mu        sync.Mutex
	schedules map[string]*models.Schedule
	claims    int
}

func newDueStoreStub() *dueStoreStub {
	return &dueStoreStub{schedules: map[string]*models.Schedule{}}
}

func (s *dueStoreStub) add(schedule *models.Schedule) {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	s.schedules[schedule.ID] = schedule
}

func (s *dueStoreStub) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *schedule
	return &copied, nil
}

func (s *dueStoreStub) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.Schedule
	for _, schedule := range s.schedules {
		if schedule.Active && schedule.NextRunAt != nil && !schedule.NextRunAt.After(now) {
			due = append(due, *schedule)
		}
	}
	return due, nil
}

func (s *dueStoreStub) MarkExecuted(ctx context.Context, id string, ranAt, observedNextRun, nextRun time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return false, errors.New("not found")
	}
	if schedule.NextRunAt == nil || !schedule.NextRunAt.Equal(observedNextRun) {
		return false, nil
	}
	schedule.LastRunAt = &ranAt
	schedule.NextRunAt = &nextRun
	s.claims++
	return true, nil
}

func (s *dueStoreStub) SetActive(ctx context.Context, id string, active bool, nextRun *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return errors.New("not found")
	}
	schedule.Active = active
	schedule.NextRunAt = nextRun
	return nil
}

type runStoreStub struct {
	mu   sync.Mutex
	runs map[string]*models.ReportRun
}

func newRunStoreStub() *runStoreStub {
	return &runStoreStub{runs: map[string]*models.ReportRun{}}
}

func (s *runStoreStub) Create(ctx context.Context, run *models.ReportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *runStoreStub) GetByID(ctx context.Context, id string) (*models.ReportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *run
	return &copied, nil
}

func (s *runStoreStub) Update(ctx context.Context, id string, params repository.UpdateRunParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		run.Status = *params.Status
	}
	if params.ArtifactURL != nil {
		run.ArtifactURL = params.ArtifactURL
	}
	if params.Recipients != nil {
		run.Recipients = *params.Recipients
	}
	if params.ErrorMessage != nil {
		run.ErrorMessage = params.ErrorMessage
	}
	if params.StartedAt != nil {
		run.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		run.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *runStoreStub) ListQueued(ctx context.Context, limit int) ([]models.ReportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var queued []models.ReportRun
	for _, run := range s.runs {
		if run.Status == models.RunStatusQueued {
			queued = append(queued, *run)
		}
	}
	return queued, nil
}

type dispatcherStub struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type artifactStoreStub struct {
	saved map[string][]byte
}

func newArtifactStoreStub() *artifactStoreStub {
	return &artifactStoreStub{saved: map[string][]byte{}}
}

func (s *artifactStoreStub) Save(filename string, data []byte) (string, error) {
	s.saved[filename] = data
	return filename, nil
}

func (s *artifactStoreStub) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

type senderStub struct {
	messages []mailer.Message
	err      error
}

func (s *senderStub) Send(msg mailer.Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func dueWeeklySchedule(nextRun time.Time) *models.Schedule {
	dow := 3
	return &models.Schedule{
		ID:              uuid.NewString(),
		AccountID:       "acct-1",
		ReportType:      models.ReportTypeNewListings,
		Area:            models.CityArea("Pasadena"),
		LookbackDays:    30,
		Cadence:         models.CadenceWeekly,
		WeeklyDayOfWeek: &dow,
		SendHour:        9,
		SendMinute:      30,
		Timezone:        "UTC",
		Recipients: models.RecipientList{
			{Kind: models.RecipientKindEmail, Email: "agent@example.com"},
			{Kind: models.RecipientKindContact, ContactID: "contact-9"},
		},
		Active:    true,
		NextRunAt: &nextRun,
	}
}

func newRunnerForTest(t *testing.T) (*RunnerService, *dueStoreStub, *runStoreStub, *dispatcherStub, *artifactStoreStub, *senderStub) {
	t.Helper()
	schedules := newDueStoreStub()
	runs := newRunStoreStub()
	dispatcher := &dispatcherStub{}
	artifacts := newArtifactStoreStub()
	sender := &senderStub{}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	runner := NewRunnerService(
		schedules, runs, dispatcher, nil, nil,
		NewStubListingSource(), nil, artifacts, signer, sender,
		zap.NewNop(), RunnerServiceConfig{APIPrefix: "/api/v1"},
	)
	return runner, schedules, runs, dispatcher, artifacts, sender
}

func TestRunnerTickClaimsDueSchedule(t *testing.T) {
	runner, schedules, runs, dispatcher, _, _ := newRunnerForTest(t)

	slot := time.Now().Add(-time.Minute).UTC()
	schedule := dueWeeklySchedule(slot)
	schedules.add(schedule)

	require.NoError(t, runner.Tick(context.Background(), time.Now()))

	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, schedule.ID, dispatcher.jobs[0].ScheduleID)

	queued, err := runs.ListQueued(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.True(t, queued[0].ScheduledFor.Equal(slot))

	stored := schedules.schedules[schedule.ID]
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, stored.NextRunAt.After(time.Now()))
	require.NotNil(t, stored.LastRunAt)
}

func TestRunnerTickIsIdempotentPerSlot(t *testing.T) {
	runner, schedules, _, dispatcher, _, _ := newRunnerForTest(t)

	schedule := dueWeeklySchedule(time.Now().Add(-time.Minute).UTC())
	schedules.add(schedule)

	now := time.Now()
	require.NoError(t, runner.Tick(context.Background(), now))
	require.NoError(t, runner.Tick(context.Background(), now))

	assert.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, 1, schedules.claims)
}

func TestRunnerTickPausesInconsistentSchedule(t *testing.T) {
	runner, schedules, _, dispatcher, _, _ := newRunnerForTest(t)

	schedule := dueWeeklySchedule(time.Now().Add(-time.Minute).UTC())
	schedule.WeeklyDayOfWeek = nil // weekly without a day can never fire
	schedules.add(schedule)

	require.NoError(t, runner.Tick(context.Background(), time.Now()))

	assert.Empty(t, dispatcher.jobs)
	stored := schedules.schedules[schedule.ID]
	assert.False(t, stored.Active)
	assert.Nil(t, stored.NextRunAt)
}

func TestRunnerDeliverSendsReport(t *testing.T) {
	runner, schedules, runs, _, artifacts, sender := newRunnerForTest(t)

	schedule := dueWeeklySchedule(time.Now().Add(-time.Minute).UTC())
	schedules.add(schedule)

	run := &models.ReportRun{
		ScheduleID:   schedule.ID,
		AccountID:    schedule.AccountID,
		ReportType:   schedule.ReportType,
		ScheduledFor: *schedule.NextRunAt,
	}
	require.NoError(t, runs.Create(context.Background(), run))

	require.NoError(t, runner.Deliver(context.Background(), jobs.Job{RunID: run.ID, ScheduleID: schedule.ID}))

	stored, err := runs.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSent, stored.Status)
	require.NotNil(t, stored.ArtifactURL)
	assert.Contains(t, *stored.ArtifactURL, "/api/v1/reports/"+run.ID+"/artifact?token=")
	assert.Equal(t, 1, stored.Recipients) // contact entry is skipped without a directory
	require.NotNil(t, stored.FinishedAt)

	require.Len(t, sender.messages, 1)
	assert.Equal(t, []string{"agent@example.com"}, sender.messages[0].To)
	require.Len(t, sender.messages[0].Attachments, 2)

	assert.Len(t, artifacts.saved, 2)
}

func TestRunnerDeliverSkipsAlreadySentRun(t *testing.T) {
	runner, schedules, runs, _, _, sender := newRunnerForTest(t)

	schedule := dueWeeklySchedule(time.Now().Add(-time.Minute).UTC())
	schedules.add(schedule)

	run := &models.ReportRun{
		ScheduleID:   schedule.ID,
		AccountID:    schedule.AccountID,
		ReportType:   schedule.ReportType,
		Status:       models.RunStatusSent,
		ScheduledFor: *schedule.NextRunAt,
	}
	require.NoError(t, runs.Create(context.Background(), run))

	require.NoError(t, runner.Deliver(context.Background(), jobs.Job{RunID: run.ID, ScheduleID: schedule.ID}))
	assert.Empty(t, sender.messages)
}

func TestRunnerDeliverRecordsFailure(t *testing.T) {
	runner, schedules, runs, _, _, sender := newRunnerForTest(t)
	sender.err = errors.New("smtp unavailable")

	schedule := dueWeeklySchedule(time.Now().Add(-time.Minute).UTC())
	schedules.add(schedule)

	run := &models.ReportRun{
		ScheduleID:   schedule.ID,
		AccountID:    schedule.AccountID,
		ReportType:   schedule.ReportType,
		ScheduledFor: *schedule.NextRunAt,
	}
	require.NoError(t, runs.Create(context.Background(), run))

	err := runner.Deliver(context.Background(), jobs.Job{RunID: run.ID, ScheduleID: schedule.ID})
	require.Error(t, err)

	stored, getErr := runs.GetByID(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.RunStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "smtp unavailable")
}

func TestRunnerRecoverQueuedRuns(t *testing.T) {
	runner, _, runs, dispatcher, _, _ := newRunnerForTest(t)

	run := &models.ReportRun{ScheduleID: "sched-1", AccountID: "acct-1", ReportType: models.ReportTypeNewListings, ScheduledFor: time.Now().UTC()}
	require.NoError(t, runs.Create(context.Background(), run))

	require.NoError(t, runner.RecoverQueuedRuns(context.Background()))
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, run.ID, dispatcher.jobs[0].RunID)
}
