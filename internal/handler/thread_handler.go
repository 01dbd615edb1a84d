package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/policy"
	"github.com/evaclass/eva-api/internal/service"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
	"github.com/evaclass/eva-api/pkg/response"
)

// ThreadHandler exposes the class forum endpoints.
type ThreadHandler struct {
	service *service.ThreadService
}

// NewThreadHandler constructs a thread handler.
func NewThreadHandler(svc *service.ThreadService) *ThreadHandler {
	return &ThreadHandler{service: svc}
}

// Create godoc
// @Summary Create a forum thread
// @Tags Forum
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body models.CreateThreadRequest true "Thread payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /classes/{id}/threads [post]
func (h *ThreadHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid thread payload"))
		return
	}

	thread, err := h.service.CreateThread(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, thread)
}

// List godoc
// @Summary List forum threads
// @Tags Forum
// @Produce json
// @Param id path string true "Class ID"
// @Param category query string false "Filter by category"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/threads [get]
func (h *ThreadHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ThreadFilter{ClassID: c.Param("id")}
	if raw := c.Query("category"); raw != "" {
		category := policy.Category(raw)
		filter.Category = &category
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageFromQuery(c)

	threads, total, err := h.service.ListThreads(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, threads, paginationOf(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get a thread with its replies
// @Tags Forum
// @Produce json
// @Param id path string true "Class ID"
// @Param threadId path string true "Thread ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/threads/{threadId} [get]
func (h *ThreadHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	thread, replies, err := h.service.GetThread(c.Request.Context(), c.Param("id"), c.Param("threadId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"thread": thread, "replies": replies}, nil)
}

// Upvote godoc
// @Summary Upvote a thread
// @Tags Forum
// @Produce json
// @Param id path string true "Class ID"
// @Param threadId path string true "Thread ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/threads/{threadId}/upvote [post]
func (h *ThreadHandler) Upvote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	upvotes, err := h.service.UpvoteThread(c.Request.Context(), c.Param("id"), c.Param("threadId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"upvotes": upvotes}, nil)
}

// Delete godoc
// @Summary Remove a thread
// @Tags Forum
// @Produce json
// @Param id path string true "Class ID"
// @Param threadId path string true "Thread ID"
// @Success 204
// @Router /classes/{id}/threads/{threadId} [delete]
func (h *ThreadHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteThread(c.Request.Context(), c.Param("id"), c.Param("threadId"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateReply godoc
// @Summary Reply to a thread
// @Tags Forum
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param threadId path string true "Thread ID"
// @Param payload body models.CreateReplyRequest true "Reply payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/threads/{threadId}/replies [post]
func (h *ThreadHandler) CreateReply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reply payload"))
		return
	}

	reply, err := h.service.CreateReply(c.Request.Context(), c.Param("id"), c.Param("threadId"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reply)
}

// UpvoteReply godoc
// @Summary Upvote a reply
// @Tags Forum
// @Produce json
// @Param id path string true "Class ID"
// @Param threadId path string true "Thread ID"
// @Param replyId path string true "Reply ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/threads/{threadId}/replies/{replyId}/upvote [post]
func (h *ThreadHandler) UpvoteReply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	upvotes, err := h.service.UpvoteReply(c.Request.Context(), c.Param("id"), c.Param("threadId"), c.Param("replyId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"upvotes": upvotes}, nil)
}

// ValidateReply godoc
// @Summary Mark a reply as instructor validated
// @Tags Forum
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param threadId path string true "Thread ID"
// @Param replyId path string true "Reply ID"
// @Param payload body map[string]bool true "Validated flag"
// @Success 204
// @Router /classes/{id}/threads/{threadId}/replies/{replyId}/validate [patch]
func (h *ThreadHandler) ValidateReply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Validated *bool `json:"validated" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "validated flag required"))
		return
	}

	err := h.service.ValidateReply(c.Request.Context(), c.Param("id"), c.Param("threadId"), c.Param("replyId"), claims.UserID, claims.Role, *payload.Validated)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteReply godoc
// @Summary Remove a reply
// @Tags Forum
// @Produce json
// @Param id path string true "Class ID"
// @Param threadId path string true "Thread ID"
// @Param replyId path string true "Reply ID"
// @Success 204
// @Router /classes/{id}/threads/{threadId}/replies/{replyId} [delete]
func (h *ThreadHandler) DeleteReply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteReply(c.Request.Context(), c.Param("id"), c.Param("threadId"), c.Param("replyId"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
