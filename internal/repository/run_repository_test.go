package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/easydeed/reportscompany-sub005/internal/models"
)

func newRunRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func runRow(id, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "schedule_id", "account_id", "report_type", "status", "scheduled_for",
		"artifact_url", "recipients", "error_message", "started_at", "finished_at", "created_at",
	}).AddRow(
		id, "sched-1", "acct-1", "market_snapshot", status, time.Now(),
		nil, 0, nil, nil, nil, time.Now(),
	)
}

func TestRunRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_runs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.ReportRun{
		ScheduleID:   "sched-1",
		AccountID:    "acct-1",
		ReportType:   models.ReportTypeMarketSnapshot,
		ScheduledFor: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), run))
	require.NotEmpty(t, run.ID)
	require.Equal(t, models.RunStatusQueued, run.Status)
	require.False(t, run.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryUpdatePartial(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	status := models.RunStatusSent
	url := "/api/v1/reports/run-1/artifact?sig=abc"
	recipients := 4
	finished := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_runs SET status = $1, artifact_url = $2, recipients = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(status, url, recipients, finished, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "run-1", UpdateRunParams{
		Status:      &status,
		ArtifactURL: &url,
		Recipients:  &recipients,
		FinishedAt:  &finished,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryUpdateNoFields(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	require.NoError(t, repo.Update(context.Background(), "run-1", UpdateRunParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryListBySchedule(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM report_runs WHERE schedule_id = $1 ORDER BY created_at DESC LIMIT $2")).
		WithArgs("sched-1", 20).
		WillReturnRows(runRow("run-1", "SENT"))

	runs, err := repo.ListBySchedule(context.Background(), "sched-1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, models.RunStatusSent, runs[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM report_runs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(50).
		WillReturnRows(runRow("run-2", "QUEUED"))

	runs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, models.RunStatusQueued, runs[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
