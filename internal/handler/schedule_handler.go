package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/easydeed/reportscompany-sub005/internal/dto"
	"github.com/easydeed/reportscompany-sub005/internal/models"
	"github.com/easydeed/reportscompany-sub005/internal/recurrence"
	appErrors "github.com/easydeed/reportscompany-sub005/pkg/errors"
	"github.com/easydeed/reportscompany-sub005/pkg/response"
)

type scheduleService interface {
	Create(ctx context.Context, accountID string, req dto.ScheduleWizardRequest) (*models.Schedule, []recurrence.Violation, error)
	Get(ctx context.Context, accountID, id string) (*models.Schedule, error)
	List(ctx context.Context, accountID string, query dto.ScheduleListQuery) ([]models.Schedule, *models.Pagination, error)
	Update(ctx context.Context, accountID, id string, req dto.ScheduleWizardRequest) (*models.Schedule, []recurrence.Violation, error)
	Pause(ctx context.Context, accountID, id string) (*models.Schedule, error)
	Resume(ctx context.Context, accountID, id string) (*models.Schedule, error)
	Delete(ctx context.Context, accountID, id string) error
	Preview(ctx context.Context, accountID string, req dto.PreviewRequest) (*dto.PreviewResponse, []recurrence.Violation, error)
}

// ScheduleHandler exposes the schedule CRUD and preview endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler builds a new handler.
func NewScheduleHandler(service scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// Create godoc
// @Summary Create a report schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param request body dto.ScheduleWizardRequest true "Wizard payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ScheduleWizardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	schedule, violations, err := h.service.Create(c.Request.Context(), claims.AccountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(violations) > 0 {
		response.ValidationFailed(c, violations)
		return
	}

	response.Created(c, schedule)
}

// List godoc
// @Summary List the account's schedules
// @Tags Schedules
// @Produce json
// @Param report_type query string false "Filter by report type"
// @Param cadence query string false "Filter by cadence"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.ScheduleListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}

	schedules, pagination, err := h.service.List(c.Request.Context(), claims.AccountID, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get one schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	schedule, err := h.service.Get(c.Request.Context(), claims.AccountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, schedule, nil)
}

// Update godoc
// @Summary Replace a schedule's definition
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param request body dto.ScheduleWizardRequest true "Wizard payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ScheduleWizardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	schedule, violations, err := h.service.Update(c.Request.Context(), claims.AccountID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(violations) > 0 {
		response.ValidationFailed(c, violations)
		return
	}

	response.JSON(c, http.StatusOK, schedule, nil)
}

// Pause godoc
// @Summary Pause a schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/pause [post]
func (h *ScheduleHandler) Pause(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	schedule, err := h.service.Pause(c.Request.Context(), claims.AccountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, schedule, nil)
}

// Resume godoc
// @Summary Resume a paused schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/resume [post]
func (h *ScheduleHandler) Resume(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	schedule, err := h.service.Resume(c.Request.Context(), claims.AccountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Delete a schedule
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.AccountID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Preview godoc
// @Summary Preview the next fire times of a draft schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param request body dto.PreviewRequest true "Draft payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules/preview [post]
func (h *ScheduleHandler) Preview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	preview, violations, err := h.service.Preview(c.Request.Context(), claims.AccountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(violations) > 0 {
		response.ValidationFailed(c, violations)
		return
	}

	response.JSON(c, http.StatusOK, preview, nil)
}
