package dto

import (
	"time"

	"github.com/easydeed/reportscompany-sub005/internal/models"
)

// ScheduleWizardRequest is the builder-shaped payload for creating or
// updating a schedule. It mirrors the form exactly; the service converts it
// to the canonical shape before validation and persistence.
type ScheduleWizardRequest struct {
	ReportType   models.ReportType    `json:"report_type" validate:"required"`
	AreaMode     models.AreaKind      `json:"area_mode" validate:"required,oneof=city zips"`
	City         string               `json:"city,omitempty"`
	ZipCodes     []string             `json:"zip_codes,omitempty"`
	LookbackDays int                  `json:"lookback_days" validate:"required,min=1"`
	Cadence      models.Cadence       `json:"cadence" validate:"required,oneof=weekly monthly"`
	Weekday      string               `json:"weekday,omitempty"`
	DayOfMonth   int                  `json:"day_of_month,omitempty" validate:"omitempty,min=1,max=28"`
	SendTime     string               `json:"send_time,omitempty"`
	Timezone     string               `json:"timezone,omitempty"`
	Recipients   models.RecipientList `json:"recipients" validate:"required,min=1"`
}

// ScheduleListQuery filters schedule listings.
type ScheduleListQuery struct {
	ReportType string `form:"report_type" json:"report_type"`
	Cadence    string `form:"cadence" json:"cadence"`
	Active     *bool  `form:"active" json:"active"`
	Page       int    `form:"page" json:"page"`
	PageSize   int    `form:"page_size" json:"page_size"`
	SortBy     string `form:"sort" json:"sort"`
	SortOrder  string `form:"order" json:"order"`
}

// PreviewRequest asks for the upcoming fire times of a draft schedule
// without persisting it.
type PreviewRequest struct {
	ScheduleWizardRequest
	Count int `json:"count,omitempty" validate:"omitempty,min=1,max=12"`
}

// PreviewResponse returns the computed occurrences, both as instants and as
// wall-clock labels in the schedule's zone for direct display.
type PreviewResponse struct {
	Timezone string      `json:"timezone"`
	NextRuns []time.Time `json:"next_runs"`
	Display  []string    `json:"display"`
}

// RunStatusResponse exposes delivery progress for one schedule firing.
type RunStatusResponse struct {
	ID           string           `json:"id"`
	ScheduleID   string           `json:"schedule_id"`
	Status       models.RunStatus `json:"status"`
	ScheduledFor time.Time        `json:"scheduled_for"`
	ArtifactURL  *string          `json:"artifact_url,omitempty"`
	Error        *string          `json:"error,omitempty"`
}
