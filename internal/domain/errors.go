package domain

import (
	"errors"
	"fmt"
)

// Category sentinels for the Serper client and tool layer.
var (
	ErrConfig        = fmt.Errorf("invalid configuration")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrClientRequest = fmt.Errorf("request rejected")
	ErrServer        = fmt.Errorf("server error")
	ErrNetwork       = fmt.Errorf("network error")
	ErrCanceled      = fmt.Errorf("request canceled")
)

// Sentinel errors for the domain layer.
var (
	ErrNoAPIKey       = NewCategoryError(ErrConfig, "no API key provided")
	ErrAPIKeyMissing  = NewCategoryError(ErrConfig, "API key is missing")
	ErrInvalidQuery   = NewCategoryError(ErrInvalidInput, "invalid query format")
	ErrInvalidURL     = NewCategoryError(ErrInvalidInput, "invalid URL format")
	ErrRequestFailed  = fmt.Errorf("API request failed")
	ErrToolNotFound   = fmt.Errorf("tool not found")
	ErrToolDuplicate  = fmt.Errorf("tool already registered")
	ErrConfigLoad     = fmt.Errorf("failed to load configuration")
	ErrDecryption     = fmt.Errorf("decryption failed")
	ErrToolFailure    = fmt.Errorf("tool execution failed")
	ErrHostBusy       = fmt.Errorf("too many concurrent tool calls")
	ErrHostRateLimit  = fmt.Errorf("tool call rate limit exceeded")
	ErrAuthInvalid    = NewCategoryError(ErrClientRequest, "unauthorized")
	ErrRateLimit      = NewCategoryError(ErrClientRequest, "rate limit exceeded")
	ErrResponseFormat = fmt.Errorf("unexpected response format")
)

// categoryError is a sentinel that keeps its own message but also matches a
// category sentinel under errors.Is.
type categoryError struct {
	msg      string
	category error
}

func (e *categoryError) Error() string        { return e.msg }
func (e *categoryError) Is(target error) bool { return target == e.category }

// NewCategoryError returns a sentinel with message msg that errors.Is reports as category.
func NewCategoryError(category error, msg string) error {
	return &categoryError{msg: msg, category: category}
}

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Client.Search")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
// Cancellation is never retryable, even when the underlying cause was a network failure.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, ErrCanceled) {
		return false
	}
	return errors.Is(err, ErrServer) || errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimit)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown        ErrorCode = "UNKNOWN"
	CodeConfig         ErrorCode = "CONFIG"
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeClientRequest  ErrorCode = "CLIENT_REQUEST"
	CodeAuthInvalid    ErrorCode = "AUTH_INVALID"
	CodeRateLimit      ErrorCode = "RATE_LIMIT"
	CodeServer         ErrorCode = "SERVER"
	CodeNetwork        ErrorCode = "NETWORK"
	CodeCanceled       ErrorCode = "CANCELED"
	CodeNoAPIKey       ErrorCode = "NO_API_KEY"
	CodeToolNotFound   ErrorCode = "TOOL_NOT_FOUND"
	CodeToolDuplicate  ErrorCode = "TOOL_DUPLICATE"
	CodeToolFailure    ErrorCode = "TOOL_FAILURE"
	CodeConfigLoad     ErrorCode = "CONFIG_LOAD"
	CodeDecryption     ErrorCode = "DECRYPTION"
	CodeHostBusy       ErrorCode = "HOST_BUSY"
	CodeHostRateLimit  ErrorCode = "HOST_RATE_LIMIT"
	CodeResponseFormat ErrorCode = "RESPONSE_FORMAT"
)

// errorCodeOrder lists sentinels from most to least specific. Category sentinels
// come after the sentinels that match them.
var errorCodeOrder = []struct {
	err  error
	code ErrorCode
}{
	{ErrCanceled, CodeCanceled},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrRateLimit, CodeRateLimit},
	{ErrClientRequest, CodeClientRequest},
	{ErrServer, CodeServer},
	{ErrNetwork, CodeNetwork},
	{ErrNoAPIKey, CodeNoAPIKey},
	{ErrConfig, CodeConfig},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrToolNotFound, CodeToolNotFound},
	{ErrToolDuplicate, CodeToolDuplicate},
	{ErrToolFailure, CodeToolFailure},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrDecryption, CodeDecryption},
	{ErrHostBusy, CodeHostBusy},
	{ErrHostRateLimit, CodeHostRateLimit},
	{ErrResponseFormat, CodeResponseFormat},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It walks the error chain with errors.Is, most specific sentinel first.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, e := range errorCodeOrder {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
