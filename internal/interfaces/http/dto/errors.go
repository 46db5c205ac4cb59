package dto

import "net/http"

// Error code constants
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeNotFound   = "ERR_NOT_FOUND"
	ErrCodeConflict   = "ERR_CONFLICT"

	// ErrCodeRunInProgress is used when a sync run is requested while one is in flight
	ErrCodeRunInProgress = "ERR_SYNC_RUN_IN_PROGRESS"
	// ErrCodeUpstreamFatal is used when the storefront refused the run
	ErrCodeUpstreamFatal = "ERR_UPSTREAM_FATAL"
	// ErrCodeUnavailable is used when a dependency fails its health check
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeValidation:    http.StatusBadRequest,
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeRunInProgress: http.StatusConflict,
	ErrCodeUpstreamFatal: http.StatusBadGateway,
	ErrCodeUnavailable:   http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
