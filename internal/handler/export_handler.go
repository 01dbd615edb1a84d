package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evaclass/eva-api/internal/service"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
	"github.com/evaclass/eva-api/pkg/response"
)

// ExportHandler exposes asynchronous analytics export endpoints.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs an export handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Request godoc
// @Summary Request an analytics export
// @Description Queues generation of a CSV or PDF analytics report
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body map[string]string true "Export format"
// @Success 202 {object} response.Envelope
// @Router /classes/{id}/exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Format string `json:"format" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format required"))
		return
	}

	job, err := h.service.Request(c.Request.Context(), c.Param("id"), payload.Format, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// List godoc
// @Summary List export jobs for a class
// @Tags Exports
// @Produce json
// @Param id path string true "Class ID"
// @Param limit query int false "Max jobs"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/exports [get]
func (h *ExportHandler) List(c *gin.Context) {
	_, limit := pageFromQuery(c)
	jobs, err := h.service.List(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}

// Status godoc
// @Summary Export job status
// @Description Returns the job state and, once completed, a signed download link
// @Tags Exports
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{jobId} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	job, download, err := h.service.Status(c.Request.Context(), c.Param("jobId"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{"job": job}
	if download != nil {
		payload["download"] = download
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// Download godoc
// @Summary Download a completed export
// @Description Streams the file referenced by a signed download token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, relPath, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export file"))
		return
	}

	name := filepath.Base(relPath)
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeFor(name), file, headers)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
