package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/policy"
	"github.com/evaclass/eva-api/internal/service"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
	"github.com/evaclass/eva-api/pkg/response"
)

// MessageHandler exposes the class chat endpoints.
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler constructs a message handler.
func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{service: svc}
}

// Send godoc
// @Summary Send a chat message
// @Description Runs the text through content checks, categorizes it and stores it anonymously
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body models.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /classes/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	message, err := h.service.Send(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// Preview godoc
// @Summary Preview how a message would be handled
// @Description Runs the checks without persisting anything
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body models.SendMessageRequest true "Message payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/messages/preview [post]
func (h *MessageHandler) Preview(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}
	response.JSON(c, http.StatusOK, h.service.Preview(req.Text), nil)
}

// List godoc
// @Summary List chat messages
// @Tags Messages
// @Produce json
// @Param id path string true "Class ID"
// @Param category query string false "Filter by category"
// @Param since query string false "Only messages after this RFC3339 timestamp"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.MessageFilter{ClassID: c.Param("id")}
	if raw := c.Query("category"); raw != "" {
		category := policy.Category(raw)
		filter.Category = &category
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "since must be an RFC3339 timestamp"))
			return
		}
		filter.Since = &since
	}
	filter.Page, filter.PageSize = pageFromQuery(c)

	messages, total, err := h.service.List(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, paginationOf(filter.Page, filter.PageSize, total))
}

// Delete godoc
// @Summary Remove a chat message
// @Tags Messages
// @Produce json
// @Param id path string true "Class ID"
// @Param messageId path string true "Message ID"
// @Success 204
// @Router /classes/{id}/messages/{messageId} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.Param("messageId"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
