package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/evaclass/eva-api/internal/realtime"
	"github.com/evaclass/eva-api/internal/service"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
	"github.com/evaclass/eva-api/pkg/response"
)

// StreamHandler serves per-class server-sent event streams backed by the
// realtime broker.
type StreamHandler struct {
	broker  *realtime.Broker
	classes *service.ClassService
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *realtime.Broker, classes *service.ClassService) *StreamHandler {
	return &StreamHandler{broker: broker, classes: classes}
}

// Stream godoc
// @Summary Live event stream for a class
// @Description Server-sent events for accepted messages and new threads
// @Tags Messages
// @Produce text/event-stream
// @Param id path string true "Class ID"
// @Success 200
// @Router /classes/{id}/stream [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	classID := c.Param("id")
	member, err := h.classes.IsMember(c.Request.Context(), classID, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !member {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	events, cancel, err := h.broker.Subscribe(c.Request.Context(), classID)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "live updates unavailable"))
		return
	}
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
