package errors

const (
	HttpInternalError          = "internal_error"
	HttpInvalidJsonError       = "invalid_json"
	HttpPayloadTooLargeError   = "payload_too_large"
	HttpNotFoundError          = "not_found"
	HttpInvalidTransitionError = "invalid_transition"
	HttpRunInProgressError     = "run_in_progress"
	HttpInvalidParameterError  = "invalid_parameter"
)

// ErrorResponse is the error response body for every HTTP endpoint.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
