package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"landowebtool/internal/domain"
	"landowebtool/internal/infra/tracer"
)

// Execute is the standard tool execution pipeline: assign call ID -> start trace ->
// parse params -> run handler -> encode result.
//
// The result Content is always a JSON document. A handler value is marshaled as
// is; any failure becomes {"error": msg, "success": false} plus the fields
// attached with WithField. Execute never returns a Go error.
func Execute[P any](
	ctx context.Context,
	name string,
	logger *slog.Logger,
	rawParams json.RawMessage,
	handler func(ctx context.Context, span trace.Span, params P) (any, error),
) (*domain.ToolResult, error) {
	callID := domain.CallIDFromContext(ctx)
	if callID == "" {
		callID = generateULID()
		ctx = domain.ContextWithCallID(ctx, callID)
	}

	ctx, span := tracer.StartSpan(ctx, "tool."+name,
		trace.WithAttributes(
			tracer.StringAttr("tool.name", name),
			tracer.StringAttr("tool.call_id", callID),
		),
	)
	defer span.End()

	start := time.Now()
	logger.Debug("tool invoked", "tool", name, "call_id", callID)

	fail := func(err error) (*domain.ToolResult, error) {
		code := string(domain.ErrorCodeOf(err))
		span.SetAttributes(tracer.StringAttr("tool.error_code", code))
		tracer.RecordError(span, err)
		logger.Info("tool failed",
			"tool", name,
			"call_id", callID,
			"duration_ms", time.Since(start).Milliseconds(),
			"code", code,
			"error", err,
		)
		res := errorResult(err)
		res.ToolCallID = callID
		return res, nil
	}

	var p P
	if err := json.Unmarshal(rawParams, &p); err != nil {
		return fail(fmt.Errorf("%w: invalid params: %w", domain.ErrInvalidInput, err))
	}

	result, err := handler(ctx, span, p)
	if err != nil {
		return fail(err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", domain.ErrResponseFormat, err))
	}

	tracer.SetOK(span)
	logger.Info("tool succeeded",
		"tool", name,
		"call_id", callID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &domain.ToolResult{ToolCallID: callID, Content: string(data)}, nil
}

// errorResult renders err as the tool-boundary error document.
func errorResult(err error) *domain.ToolResult {
	payload := map[string]any{}
	var fe *fieldError
	if errors.As(err, &fe) {
		for k, v := range fe.fields {
			payload[k] = v
		}
	}
	payload["error"] = err.Error()
	payload["success"] = false

	data, mErr := json.Marshal(payload)
	if mErr != nil {
		data, _ = json.Marshal(map[string]any{"error": err.Error(), "success": false})
	}
	return &domain.ToolResult{
		Content:     string(data),
		IsError:     true,
		IsRetryable: classifyToolError(err),
	}
}

// ErrResult creates an error ToolResult without going through Execute.
func ErrResult(err error) (*domain.ToolResult, error) {
	return errorResult(err), nil
}

// fieldError attaches context fields to an error for the error document.
type fieldError struct {
	err    error
	fields map[string]any
}

func (e *fieldError) Error() string { return e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

// WithField returns err annotated with key=value; the pair is copied into the
// tool's JSON error document. A nil err stays nil.
func WithField(err error, key string, value any) error {
	if err == nil {
		return nil
	}
	var fe *fieldError
	if errors.As(err, &fe) {
		fe.fields[key] = value
		return err
	}
	return &fieldError{err: err, fields: map[string]any{key: value}}
}

// generateULID returns a new time-ordered call identifier.
func generateULID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
