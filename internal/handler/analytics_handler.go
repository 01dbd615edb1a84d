package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evaclass/eva-api/internal/service"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
	"github.com/evaclass/eva-api/pkg/response"
)

// AnalyticsHandler exposes the instructor dashboard endpoints.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs an analytics handler.
func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// ClassAnalytics godoc
// @Summary Question analytics for a class
// @Description Category breakdown, spike detection and question timeline
// @Tags Analytics
// @Produce json
// @Param id path string true "Class ID"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/analytics [get]
func (h *AnalyticsHandler) ClassAnalytics(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	from, err := timeQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}

	analytics, err := h.service.ClassAnalytics(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}

// SystemMetrics godoc
// @Summary Aggregated runtime metrics
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) SystemMetrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.SystemMetrics(), nil)
}

func timeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, name+" must be an RFC3339 timestamp")
	}
	return &ts, nil
}
