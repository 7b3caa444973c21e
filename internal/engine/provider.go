package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Provider error codes returned by OpenAI-compatible APIs.
const (
	codeInsufficientQuota = "insufficient_quota"
	codeInvalidAPIKey     = "invalid_api_key"
	codeModelNotFound     = "model_not_found"
)

// ProviderFailure describes how to report an unmapped provider error for one call site.
type ProviderFailure struct {
	Stage       string
	GenericKind Kind
	Prefix      string // "transcription failed"
	ModelLabel  string // "Whisper model"
}

// ClassifyProviderError maps a provider error into the pipeline taxonomy.
// Configuration errors pass through untouched.
func ClassifyProviderError(err error, pf ProviderFailure) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if IsDeadline(err) {
		return TimeoutError(pf.Stage, err)
	}

	code, status, cause := providerDetails(err)
	switch {
	case code == codeInsufficientQuota:
		return NewError(KindProviderQuotaExhausted, pf.Stage,
			"OpenAI API quota exhausted, please check your account balance", err)
	case code == codeInvalidAPIKey || status == http.StatusUnauthorized:
		return NewError(KindProviderInvalidCredential, pf.Stage,
			"OpenAI API key is invalid, please check OPENAI_API_KEY in .env", err)
	case code == codeModelNotFound:
		return NewError(KindProviderModelUnavailable, pf.Stage,
			pf.ModelLabel+" is unavailable, please try again later", err)
	}
	if cause == "" {
		cause = "unknown error"
	}
	return NewError(pf.GenericKind, pf.Stage, fmt.Sprintf("%s: %s", pf.Prefix, cause), err)
}

// providerDetails extracts the error code, HTTP status and a short cause.
// go-openai errors are typed; other OpenAI-compatible clients only expose the
// response body in the error text, so codes are matched there as a fallback.
func providerDetails(err error) (code string, status int, cause string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		if code == "" && apiErr.Type == codeInsufficientQuota {
			code = apiErr.Type
		}
		return code, apiErr.HTTPStatusCode, TruncateRunes(apiErr.Message, 200, "...")
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.HTTPStatusCode
	}

	msg := err.Error()
	for _, c := range []string{codeInsufficientQuota, codeInvalidAPIKey, codeModelNotFound} {
		if strings.Contains(msg, c) {
			code = c
			break
		}
	}
	return code, status, TruncateRunes(msg, 200, "...")
}
