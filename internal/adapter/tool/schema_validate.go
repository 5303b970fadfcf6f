package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"landowebtool/internal/domain"
)

// SchemaValidatingTool wraps a Tool with JSON Schema validation.
// On Execute, it validates params against the compiled schema before delegating.
type SchemaValidatingTool struct {
	inner  domain.Tool
	schema *jsonschema.Schema
}

// WithSchemaValidation wraps a tool so that Execute validates params against
// the tool's JSON Schema before forwarding to the inner tool.
// Returns error if the schema fails to compile.
func WithSchemaValidation(t domain.Tool) (domain.Tool, error) {
	raw := t.Schema().Parameters
	if len(raw) == 0 || string(raw) == "null" {
		return t, nil // no schema to validate against
	}

	compiled, err := jsonschema.NewCompiler().Compile([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Name(), err)
	}
	return &SchemaValidatingTool{inner: t, schema: compiled}, nil
}

func (s *SchemaValidatingTool) Name() string              { return s.inner.Name() }
func (s *SchemaValidatingTool) Description() string       { return s.inner.Description() }
func (s *SchemaValidatingTool) Schema() domain.ToolSchema { return s.inner.Schema() }

// Unwrap returns the wrapped tool.
func (s *SchemaValidatingTool) Unwrap() domain.Tool { return s.inner }

func (s *SchemaValidatingTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var v any
	if err := json.Unmarshal(params, &v); err != nil {
		return ErrResult(fmt.Errorf("%w: invalid JSON: %w", domain.ErrInvalidInput, err))
	}

	if result := s.schema.Validate(v); !result.IsValid() {
		return ErrResult(fmt.Errorf("%w: schema validation failed: %s", domain.ErrInvalidInput, result.Error()))
	}

	return s.inner.Execute(ctx, params)
}

// FormatMessage forwards to the wrapped tool when it renders display messages.
func (s *SchemaValidatingTool) FormatMessage(params json.RawMessage) string {
	if f, ok := s.inner.(domain.MessageFormatter); ok {
		return f.FormatMessage(params)
	}
	return ""
}

// ShouldRegister forwards to the wrapped tool's gate; ungated tools always register.
func (s *SchemaValidatingTool) ShouldRegister(ctx context.Context) bool {
	if g, ok := s.inner.(domain.RegistrationGate); ok {
		return g.ShouldRegister(ctx)
	}
	return true
}
