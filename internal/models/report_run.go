package models

import "time"

// RunStatus captures delivery lifecycle states for a single schedule firing.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "QUEUED"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusSent       RunStatus = "SENT"
	RunStatusFailed     RunStatus = "FAILED"
)

// ReportRun records one execution of a schedule: the slot it fired for, the
// rendered artifact, and how delivery went.
type ReportRun struct {
	ID           string     `db:"id" json:"id"`
	ScheduleID   string     `db:"schedule_id" json:"schedule_id"`
	AccountID    string     `db:"account_id" json:"account_id"`
	ReportType   ReportType `db:"report_type" json:"report_type"`
	Status       RunStatus  `db:"status" json:"status"`
	ScheduledFor time.Time  `db:"scheduled_for" json:"scheduled_for"`
	ArtifactURL  *string    `db:"artifact_url" json:"artifact_url,omitempty"`
	Recipients   int        `db:"recipients" json:"recipients"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
