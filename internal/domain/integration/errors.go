package integration

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrProductNotFound         = errors.New("integration: product not found on platform")
)

// ---------------------------------------------------------------------------
// Sync error taxonomy
// ---------------------------------------------------------------------------

// ValidationError reports an order whose preconditions are not met.
// The order is skipped and logged; the run continues.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError creates a ValidationError with the given reason
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// ConfigurationError reports a required mapping or setting that is absent,
// e.g. a storefront tax title with no local tax account.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Setting == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Setting, e.Message)
}

// NewConfigurationError creates a ConfigurationError
func NewConfigurationError(setting, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Message: fmt.Sprintf(format, args...)}
}

// UpstreamFatalError is raised by the storefront adapter when the platform
// signals a hard stop (payment required, rate limit exhausted). It must
// abort the whole run; it is never retried by the runner.
type UpstreamFatalError struct {
	StatusCode int
	Endpoint   string
	Err        error
}

func (e *UpstreamFatalError) Error() string {
	msg := fmt.Sprintf("integration: upstream refused request (HTTP %d)", e.StatusCode)
	if e.Endpoint != "" {
		msg += " on " + e.Endpoint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamFatalError) Unwrap() error {
	return e.Err
}

// TransientDocumentError wraps any other document-layer failure raised while
// materializing a document. The order is skipped; a later run resumes at the
// first missing document.
type TransientDocumentError struct {
	Step string
	Err  error
}

func (e *TransientDocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *TransientDocumentError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies an error against the sync taxonomy
type ErrorKind string

const (
	ErrorKindValidation        ErrorKind = "VALIDATION"
	ErrorKindConfiguration     ErrorKind = "CONFIGURATION"
	ErrorKindUpstreamFatal     ErrorKind = "UPSTREAM_FATAL"
	ErrorKindTransientDocument ErrorKind = "TRANSIENT_DOCUMENT"
	ErrorKindUnknown           ErrorKind = "UNKNOWN"
)

// ClassifyError returns the taxonomy kind of err. Fatal conditions win over
// everything else so a wrapped upstream refusal is never downgraded.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var (
		fatal *UpstreamFatalError
		vErr  *ValidationError
		cErr  *ConfigurationError
		tErr  *TransientDocumentError
	)
	switch {
	case errors.As(err, &fatal):
		return ErrorKindUpstreamFatal
	case errors.As(err, &vErr):
		return ErrorKindValidation
	case errors.As(err, &cErr):
		return ErrorKindConfiguration
	case errors.As(err, &tErr):
		return ErrorKindTransientDocument
	default:
		return ErrorKindUnknown
	}
}

// IsUpstreamFatal reports whether err must abort the run
func IsUpstreamFatal(err error) bool {
	var fatal *UpstreamFatalError
	return errors.As(err, &fatal)
}
