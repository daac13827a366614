package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/easydeed/reportscompany-sub005/internal/dto"
	"github.com/easydeed/reportscompany-sub005/internal/models"
	appErrors "github.com/easydeed/reportscompany-sub005/pkg/errors"
	"github.com/easydeed/reportscompany-sub005/pkg/response"
)

type runReader interface {
	GetByID(ctx context.Context, id string) (*models.ReportRun, error)
	ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]models.ReportRun, error)
}

type scheduleReader interface {
	Get(ctx context.Context, accountID, id string) (*models.Schedule, error)
}

type artifactOpener interface {
	Open(filename string) (*os.File, error)
}

// ReportHandler exposes run status, run history, and signed artifact downloads.
type ReportHandler struct {
	runs      runReader
	schedules scheduleReader
	artifacts artifactOpener
	verify    func(token string) (runID, relPath string, err error)
}

// NewReportHandler builds a new handler. verify checks a signed artifact
// token and returns the run it was issued for.
func NewReportHandler(runs runReader, schedules scheduleReader, artifacts artifactOpener, verify func(token string) (runID, relPath string, err error)) *ReportHandler {
	return &ReportHandler{runs: runs, schedules: schedules, artifacts: artifacts, verify: verify}
}

// RunStatus godoc
// @Summary Delivery status of one run
// @Tags Reports
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) RunStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	if run.AccountID != claims.AccountID {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	response.JSON(c, http.StatusOK, dto.RunStatusResponse{
		ID:           run.ID,
		ScheduleID:   run.ScheduleID,
		Status:       run.Status,
		ScheduledFor: run.ScheduledFor,
		ArtifactURL:  run.ArtifactURL,
		Error:        run.ErrorMessage,
	}, nil)
}

// ScheduleRuns godoc
// @Summary Run history of one schedule
// @Tags Reports
// @Produce json
// @Param id path string true "Schedule ID"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/runs [get]
func (h *ReportHandler) ScheduleRuns(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	schedule, err := h.schedules.Get(c.Request.Context(), claims.AccountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.runs.ListBySchedule(c.Request.Context(), schedule.ID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, runs, nil)
}

// DownloadArtifact godoc
// @Summary Download a rendered report via signed link
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Run ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reports/{id}/artifact [get]
func (h *ReportHandler) DownloadArtifact(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing token"))
		return
	}

	runID, relPath, err := h.verify(token)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired link"))
		return
	}
	if runID != c.Param("id") {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token does not match run"))
		return
	}

	file, err := h.artifacts.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	contentType := "application/octet-stream"
	switch filepath.Ext(relPath) {
	case ".pdf":
		contentType = "application/pdf"
	case ".csv":
		contentType = "text/csv"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
