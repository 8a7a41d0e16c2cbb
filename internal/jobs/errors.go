package jobs

import (
	"context"
	"errors"
	"strings"

	"survey-insights/internal/analysis"
	"survey-insights/internal/provider"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("job not found")

// ErrCompliance marks a failure of the privacy gate. Jobs failing the gate
// terminate before any provider call.
var ErrCompliance = errors.New("compliance violation")

// ErrQueueFull is returned by Submit when the queue is at capacity.
var ErrQueueFull = errors.New("job queue at capacity")

// ErrInvalidSpec is returned by Submit for malformed submissions.
var ErrInvalidSpec = errors.New("invalid job spec")

// Stable error codes recorded on failed jobs and error events.
const (
	ErrorCodeConfiguration = "CONFIGURATION_ERROR"
	ErrorCodeCompliance    = "COMPLIANCE_VIOLATION"
	ErrorCodeProvider      = "PROVIDER_UNAVAILABLE"
	ErrorCodeMalformed     = "MALFORMED_LLM_OUTPUT"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeCancelled     = "CANCELLED"
)

// classifyFailure maps an error to its stable code. Unknown errors classify
// as provider failures since everything after the gate is an external call.
func classifyFailure(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCompliance):
		return ErrorCodeCompliance
	case errors.Is(err, provider.ErrConfiguration):
		return ErrorCodeConfiguration
	case errors.Is(err, analysis.ErrMalformedOutput):
		return ErrorCodeMalformed
	case errors.Is(err, analysis.ErrValidation), errors.Is(err, ErrInvalidSpec):
		return ErrorCodeValidation
	case errors.Is(err, context.Canceled):
		return ErrorCodeCancelled
	case errors.Is(err, provider.ErrUnavailable):
		return ErrorCodeProvider
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "cancel"):
		return ErrorCodeCancelled
	case strings.Contains(msg, "api key"), strings.Contains(msg, "not configured"):
		return ErrorCodeConfiguration
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid"):
		return ErrorCodeValidation
	default:
		return ErrorCodeProvider
	}
}

// sanitizeError produces a single-line message safe to persist and stream.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	message := strings.TrimSpace(err.Error())
	message = strings.ReplaceAll(message, "\n", " ")
	message = strings.ReplaceAll(message, "\r", " ")
	if len(message) > 500 {
		message = message[:500]
	}
	return message
}
