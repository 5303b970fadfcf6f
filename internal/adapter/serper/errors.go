package serper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"landowebtool/internal/domain"
)

// APIError is a non-2xx response from the Serper API. It unwraps to
// domain.ErrRequestFailed and to its category: domain.ErrClientRequest (4xx,
// with domain.ErrAuthInvalid and domain.ErrRateLimit refinements) or domain.ErrServer.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", domain.ErrRequestFailed, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() []error { return []error{domain.ErrRequestFailed, e.kind} }

// Retryable reports whether another attempt could succeed.
func (e *APIError) Retryable() bool { return errors.Is(e.kind, domain.ErrServer) }

// newAPIError classifies a failed response. The message is the server-provided
// "message" field when the body carries one, else the status text.
func newAPIError(statusCode int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = strings.TrimSpace(payload.Message)
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	if msg == "" {
		msg = "unknown error"
	}

	var kind error
	switch {
	case statusCode == http.StatusUnauthorized:
		kind = domain.ErrAuthInvalid
	case statusCode == http.StatusTooManyRequests:
		kind = domain.ErrRateLimit
	case isClientError(statusCode):
		kind = domain.ErrClientRequest
	default:
		kind = domain.ErrServer
	}
	return &APIError{StatusCode: statusCode, Message: msg, kind: kind}
}

// transportError classifies a failure with no usable response. A done caller
// context means the call was canceled or hit the host deadline, which is terminal.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrCanceled, ctxErr)
	}
	return fmt.Errorf("%w: %w: %w", domain.ErrRequestFailed, domain.ErrNetwork, err)
}

// authMarkers are substrings (lowercase) that identify an authentication failure
// in an error message.
var authMarkers = []string{"401", "unauthorized", "api key"}

// isAuthFailure reports whether err says the API key was rejected.
func isAuthFailure(err error) bool {
	if errors.Is(err, domain.ErrAuthInvalid) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func isSuccess(code int) bool     { return code >= 200 && code < 300 }
func isClientError(code int) bool { return code >= 400 && code < 500 }
