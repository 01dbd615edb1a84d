package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/service"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
	"github.com/evaclass/eva-api/pkg/response"
)

// ClassHandler exposes class CRUD and enrollment endpoints.
type ClassHandler struct {
	service *service.ClassService
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc *service.ClassService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// List godoc
// @Summary List classes visible to the caller
// @Tags Classes
// @Produce json
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ClassFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageFromQuery(c)

	classes, total, err := h.service.List(c.Request.Context(), claims.UserID, claims.Role, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, paginationOf(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	class, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Join godoc
// @Summary Join class by code
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body map[string]string true "Join code"
// @Success 200 {object} response.Envelope
// @Router /classes/join [post]
func (h *ClassHandler) Join(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		JoinCode string `json:"join_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "join code required"))
		return
	}

	class, err := h.service.Join(c.Request.Context(), claims.UserID, payload.JoinCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.service.Update(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
