package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	httperr "github.com/aevon-lab/growthmart/internal/core/errors"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Handler exposes pipeline runs over HTTP.
type Handler struct {
	runner           *Runner
	jobs             storage.JobStore
	maxBodySizeBytes int64
}

func NewHandler(runner *Runner, jobs storage.JobStore, maxBodySizeMB int) *Handler {
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1
	}
	return &Handler{runner: runner, jobs: jobs, maxBodySizeBytes: int64(maxBodySizeMB) * 1024 * 1024}
}

// RegisterRoutes registers the pipeline run routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/v1/pipeline/runs")
	g.POST("", h.startRun)
	g.GET("", h.listRuns)
	g.GET("/:id", h.getRun)
	g.POST("/:id/retry", h.retryRun)
}

// startRun handles POST /v1/pipeline/runs. An optional JSON array of raw
// records in the body is captured before the rebuild. The run executes
// synchronously and its final state is returned.
func (h *Handler) startRun(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodySizeBytes+1))
	if err != nil {
		writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to read request body", nil)
		return
	}
	if int64(len(body)) > h.maxBodySizeBytes {
		writeError(c, http.StatusRequestEntityTooLarge, httperr.HttpPayloadTooLargeError,
			"Request body exceeds maximum allowed size", nil)
		return
	}

	var records []v1.RawRecord
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			writeError(c, http.StatusBadRequest, httperr.HttpInvalidJsonError,
				"Invalid JSON body: expected an array of raw records", nil)
			return
		}
		for i, el := range elements {
			rec, err := v1.DecodeRawRecord(el)
			if err != nil {
				slog.Warn("[Pipeline] Skipping undecodable record", "index", i, "external_id", rec.ExternalID, "error", err)
				continue
			}
			records = append(records, rec)
		}
	}

	run, err := h.runner.Run(c.Request.Context(), records)
	h.respond(c, run, err)
}

// retryRun handles POST /v1/pipeline/runs/:id/retry.
func (h *Handler) retryRun(c *gin.Context) {
	run, err := h.runner.Retry(c.Request.Context(), c.Param("id"))
	h.respond(c, run, err)
}

// getRun handles GET /v1/pipeline/runs/:id.
func (h *Handler) getRun(c *gin.Context) {
	run, err := h.jobs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// listRuns handles GET /v1/pipeline/runs?limit=N, newest first.
func (h *Handler) listRuns(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, httperr.HttpInvalidParameterError, "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.jobs.ListRuns(c.Request.Context(), h.runner.JobName(), limit)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	if runs == nil {
		runs = []*model.JobRun{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// respond maps a run outcome onto the HTTP response. A run that finished,
// even as FAILED on validation, is a 200 carrying the run.
func (h *Handler) respond(c *gin.Context, run *model.JobRun, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, run)
	case errors.Is(err, storage.ErrNotFound):
		writeError(c, http.StatusNotFound, httperr.HttpNotFoundError, "Job run not found", nil)
	case errors.Is(err, ErrRunInProgress):
		writeError(c, http.StatusConflict, httperr.HttpRunInProgressError, err.Error(), nil)
	case errors.Is(err, model.ErrInvalidTransition):
		writeError(c, http.StatusConflict, httperr.HttpInvalidTransitionError, err.Error(), nil)
	default:
		slog.Error("[Pipeline] Request failed", "error", err)
		var details interface{}
		if run != nil {
			details = map[string]interface{}{"run_id": run.ID, "status": run.Status}
		}
		writeError(c, http.StatusInternalServerError, httperr.HttpInternalError, "Pipeline run failed", details)
	}
}

func writeError(c *gin.Context, status int, errorType, message string, details interface{}) {
	c.JSON(status, httperr.ErrorResponse{
		ErrorType: errorType,
		Message:   message,
		Details:   details,
	})
}
