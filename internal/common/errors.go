package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for the pipeline fault taxonomy. The orchestrator's retry
// policy and the job's terminal ErrorInfo are both keyed off errors.Is checks
// against these.
var (
	ErrOCRTimeout       = errors.New("ocr timeout")
	ErrOCREngineFailure = errors.New("ocr engine failure")

	ErrExtractionTimeout = errors.New("extraction timeout")
	ErrExtractionParse   = errors.New("extraction parse failure")

	ErrHallucination = errors.New("hallucination detected")

	ErrMemoryLimit  = errors.New("memory limit exceeded")
	ErrQueueFull    = errors.New("queue full")
	ErrJobCancelled = errors.New("job cancelled")
	ErrJobTimeout   = errors.New("job deadline exceeded")

	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ErrorCode maps an error to the stable code surfaced to callers in a
// terminal job's ErrorInfo.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrOCRTimeout):
		return "OCR_TIMEOUT"
	case errors.Is(err, ErrOCREngineFailure):
		return "OCR_ENGINE_ERROR"
	case errors.Is(err, ErrExtractionTimeout):
		return "EXTRACTION_TIMEOUT"
	case errors.Is(err, ErrExtractionParse):
		return "EXTRACTION_PARSE_ERROR"
	case errors.Is(err, ErrHallucination):
		return "HALLUCINATION_DETECTED"
	case errors.Is(err, ErrMemoryLimit):
		return "MEMORY_LIMIT_EXCEEDED"
	case errors.Is(err, ErrQueueFull):
		return "QUEUE_FULL"
	case errors.Is(err, ErrJobCancelled):
		return "CANCELLED"
	case errors.Is(err, ErrJobTimeout):
		return "JOB_TIMEOUT"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	default:
		return "INTERNAL"
	}
}

// IsTransient reports whether the orchestrator may retry the stage that
// produced err. Parse failures are deterministic (the fallback parser handles
// them) and guard rejections would fail identically on re-run.
func IsTransient(err error) bool {
	return errors.Is(err, ErrOCRTimeout) ||
		errors.Is(err, ErrOCREngineFailure) ||
		errors.Is(err, ErrExtractionTimeout)
}
