package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/service"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
	"github.com/evaclass/eva-api/pkg/response"
)

// ScheduleHandler exposes per-class chat window endpoints.
type ScheduleHandler struct {
	service *service.ScheduleService
}

// NewScheduleHandler constructs a schedule handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List class schedule windows
// @Tags Schedules
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	schedules, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Create godoc
// @Summary Add a schedule window
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body models.UpsertScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schedule, err := h.service.Create(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Update a schedule window
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param scheduleId path string true "Schedule ID"
// @Param payload body models.UpsertScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/schedules/{scheduleId} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schedule, err := h.service.Update(c.Request.Context(), c.Param("id"), c.Param("scheduleId"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Remove a schedule window
// @Tags Schedules
// @Produce json
// @Param id path string true "Class ID"
// @Param scheduleId path string true "Schedule ID"
// @Success 204
// @Router /classes/{id}/schedules/{scheduleId} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.Param("scheduleId"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Availability godoc
// @Summary Check whether the class chat is currently open
// @Tags Schedules
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/availability [get]
func (h *ScheduleHandler) Availability(c *gin.Context) {
	result, err := h.service.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
