package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	httperr "github.com/aevon-lab/growthmart/internal/core/errors"
	"github.com/gin-gonic/gin"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body: expected an array of raw records"
	msgPersistFailed  = "Failed to persist raw records"
	msgBodyTooLarge   = "Request body exceeds maximum allowed size"
)

// captureError carries the structured HTTP error shape from a helper back to the handler.
type captureError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *captureError) Error() string {
	return e.message
}

// CaptureHandler handles POST /v1/raw. The body is a JSON array of raw
// records; a single object is accepted as a batch of one.
func (s *Service) CaptureHandler(c *gin.Context) {
	items, payloadSize, cerr := s.parseRecords(c)
	if cerr != nil {
		writeError(c, cerr)
		return
	}

	slog.Info("[RawCapture] Received batch", "records", len(items), "payload_size", payloadSize)

	res, err := s.capture(c.Request.Context(), items)
	if err != nil {
		slog.Error("[RawCapture] Failed to persist raw records", "error", err)
		writeError(c, &captureError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":   "accepted",
		"received": res.Received,
		"written":  res.Written,
		"skipped":  res.Skipped,
	})
}

// parseRecords reads the bounded request body and splits it into batch
// items. Only a body that is not a JSON array or object is rejected; a
// malformed element becomes a skipped item.
func (s *Service) parseRecords(c *gin.Context) ([]batchItem, int, *captureError) {
	maxBytes := int64(s.maxBodySizeBytes)
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("[RawCapture] Failed to read request body", "error", err)
		return nil, 0, &captureError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[RawCapture] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &captureError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpPayloadTooLargeError,
			message:    msgBodyTooLarge,
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	trimmed := bytes.TrimSpace(bodyBytes)
	var elements []json.RawMessage
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		if !json.Valid(trimmed) {
			err = errors.New("invalid JSON object")
		}
		elements = []json.RawMessage{json.RawMessage(trimmed)}
	default:
		err = json.Unmarshal(trimmed, &elements)
	}
	if err != nil {
		slog.Warn("[RawCapture] Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &captureError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	items := make([]batchItem, len(elements))
	for i, el := range elements {
		items[i].rec, items[i].err = v1.DecodeRawRecord(el)
	}
	return items, len(bodyBytes), nil
}

// writeError serializes a captureError as the JSON HTTP response.
func writeError(c *gin.Context, err *captureError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
