package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies pipeline failures. Each kind maps to one user-facing message.
type Kind string

const (
	KindInvalidRequest            Kind = "InvalidRequest"
	KindConfiguration             Kind = "ConfigurationError"
	KindAcquisitionFailed         Kind = "AcquisitionFailed"
	KindProbeUnavailable          Kind = "ProbeUnavailable"
	KindNormalizationFailed       Kind = "NormalizationFailed"
	KindEmptyTranscript           Kind = "EmptyTranscript"
	KindProviderQuotaExhausted    Kind = "ProviderQuotaExhausted"
	KindProviderInvalidCredential Kind = "ProviderInvalidCredential"
	KindProviderModelUnavailable  Kind = "ProviderModelUnavailable"
	KindProviderGenericFailure    Kind = "ProviderGenericFailure"
	KindSummaryFailed             Kind = "DerivativeSummaryFailed"
	KindTitleFailed               Kind = "DerivativeTitleFailed"
	KindExternalTimeout           Kind = "ExternalTimeout"
)

// Stage names used in errors and stage callbacks.
const (
	StageAcquiring    = "acquiring"
	StageProbing      = "probing"
	StageNormalizing  = "normalizing"
	StageTranscribing = "transcribing"
	StageGenerating   = "generating"
	StageAssembling   = "assembling"
	StageCleanup      = "cleanup"
)

// Error is a stage-aware pipeline failure. Message is safe to show to callers;
// Err carries the internal cause and is only logged.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

// Unwrap exposes the internal cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a pipeline error.
func NewError(kind Kind, stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// UserMessage returns the caller-facing message for err.
func UserMessage(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return "audio processing failed, please try again later"
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindExternalTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ConfigError is returned before any provider call when the credential is missing.
func ConfigError(stage string) *Error {
	return NewError(KindConfiguration, stage,
		"OpenAI API key is not configured, set a valid OPENAI_API_KEY in .env", nil)
}

// TimeoutError wraps a deadline expiry during stage.
func TimeoutError(stage string, cause error) *Error {
	return NewError(KindExternalTimeout, stage,
		fmt.Sprintf("external service timed out while %s", stage), cause)
}

// IsDeadline reports whether err came from an expired context deadline.
func IsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
