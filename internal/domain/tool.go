package domain

import (
	"context"
	"encoding/json"
)

// ToolSchema describes a tool for the host's function-calling protocol.
type ToolSchema struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name,omitempty"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolResult is the outcome of executing a tool. Content is always a JSON document:
// the normalized result on success, an {"error", "success": false} object otherwise.
type ToolResult struct {
	ToolCallID  string `json:"tool_call_id,omitempty"`
	Content     string `json:"content"`
	IsError     bool   `json:"is_error"`
	IsRetryable bool   `json:"is_retryable,omitempty"`
}

// Tool is the interface every tool must implement.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// MessageFormatter is implemented by tools that render a short, human-readable
// line for the host UI while a call is in flight.
type MessageFormatter interface {
	FormatMessage(params json.RawMessage) string
}

// RegistrationGate is implemented by tools that should only be offered to the
// host when their preconditions hold (e.g. an API key is configured).
type RegistrationGate interface {
	ShouldRegister(ctx context.Context) bool
}

// ToolRegistry is the host-side collection tools are published to.
type ToolRegistry interface {
	Register(t Tool) error
	Unregister(name string) error
}
