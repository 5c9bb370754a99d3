// Package api exposes the distance service over HTTP: a CSV upload endpoint
// that creates an asynchronous task, a polling endpoint for its result, and a
// synchronous "runtime" endpoint that computes distances inline.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lopatinay/dokka/internal/models"
	"github.com/lopatinay/dokka/internal/parser"
	"github.com/lopatinay/dokka/internal/repository"
)

// Service is the orchestrator surface the handlers depend on.
type Service interface {
	Submit(ctx context.Context, raw []byte) (uuid.UUID, error)
	GetResult(ctx context.Context, id uuid.UUID) (models.Task, error)
	RunSync(ctx context.Context, raw []byte) (*models.TaskResult, error)
}

// Handler carries the dependencies of the HTTP endpoints.
type Handler struct {
	log *slog.Logger
	svc Service
}

// NewHandler creates a new Handler with the provided logger and service.
func NewHandler(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

// CalculateDistances handles POST /api/calculateDistances. It accepts a CSV
// file upload, creates a pending task and returns its identifier without
// waiting for the computation.
func (h *Handler) CalculateDistances(c *gin.Context) {
	raw, ok := h.readUpload(c)
	if !ok {
		return
	}

	id, err := h.svc.Submit(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, parser.ErrInvalidInputFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.ErrorContext(c.Request.Context(), "Failed to submit upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "File uploaded and task created successfully",
		"upload_uuid": id.String(),
		"task_status": string(models.StatusPending),
	})
}

// GetResult handles GET /api/getResult/:upload_uuid. It returns the task's
// current status and, once terminal, the result or the failure reason.
func (h *Handler) GetResult(c *gin.Context) {
	id, err := uuid.Parse(c.Param("upload_uuid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	task, err := h.svc.GetResult(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.log.ErrorContext(c.Request.Context(), "Failed to fetch task", "task", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task"})
		return
	}

	response := gin.H{
		"task_id": task.ID.String(),
		"status":  string(task.Status),
	}
	if task.Status == models.StatusCompleted {
		response["data"] = task.Result
	}
	if task.Status == models.StatusFailed {
		response["error"] = task.Error
	}

	c.JSON(http.StatusOK, response)
}

// Runtime handles POST /api/runtime. It accepts the same file format as the
// upload endpoint and returns the computed distances directly in the response
// body; no task is created and the queue is never involved.
func (h *Handler) Runtime(c *gin.Context) {
	raw, ok := h.readUpload(c)
	if !ok {
		return
	}

	result, err := h.svc.RunSync(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, parser.ErrInvalidInputFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.ErrorContext(c.Request.Context(), "Failed to compute synchronously", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute distances"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// readUpload extracts the CSV payload from the multipart "file" part and
// writes the error response itself when the part is missing or not a CSV.
func (h *Handler) readUpload(c *gin.Context) ([]byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file part in the request"})
		return nil, false
	}

	if fileHeader.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file selected"})
		return nil, false
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
		return nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return nil, false
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return nil, false
	}

	return raw, true
}
