// Package mcpserver exposes registered tools to an MCP client over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"landowebtool/internal/adapter/tool"
	"landowebtool/internal/domain"
)

// Defaults for Config fields left zero.
const (
	DefaultCallTimeout   = 60 * time.Second
	DefaultMaxConcurrent = 3
)

// Config controls how tool calls are admitted.
type Config struct {
	Name          string
	Version       string
	CallTimeout   time.Duration // deadline for one tool call, including queueing
	MaxConcurrent int64         // tool calls in flight at once
	RateLimit     float64       // calls per second; 0 disables the limiter
	RateBurst     int
}

// Server is an MCP host that implements domain.ToolRegistry. Tools registered
// here are published to the connected client; unregistering removes them and
// notifies the client.
type Server struct {
	cfg     Config
	mcp     *server.MCPServer
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  *slog.Logger

	mu    sync.RWMutex
	tools map[string]domain.Tool
}

var _ domain.ToolRegistry = (*Server)(nil)

// New creates a server. Zero CallTimeout and MaxConcurrent take the defaults.
func New(cfg Config, logger *slog.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "landowebtool"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg: cfg,
		mcp: server.NewMCPServer(
			cfg.Name,
			cfg.Version,
			server.WithToolCapabilities(true),
			server.WithInstructions("Use search to find current information on the web and scrape to read the full content of a URL."),
			server.WithRecovery(),
		),
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger.With("component", "mcpserver"),
		tools:  make(map[string]domain.Tool),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Register publishes t. Parameters are validated against the tool's schema
// before it runs.
func (s *Server) Register(t domain.Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := t.Name()
	if _, exists := s.tools[name]; exists {
		return domain.NewDomainError("mcpserver.Register", domain.ErrToolDuplicate, name)
	}
	wrapped, err := tool.WithSchemaValidation(t)
	if err != nil {
		s.logger.Warn("schema validation disabled for tool", "tool", name, "error", err)
		wrapped = t
	}

	schema := t.Schema()
	params := schema.Parameters
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object"}`)
	}
	mt := mcp.NewToolWithRawSchema(name, schema.Description, params)
	if schema.DisplayName != "" {
		mcp.WithTitleAnnotation(schema.DisplayName)(&mt)
	}
	mcp.WithReadOnlyHintAnnotation(true)(&mt)
	mcp.WithOpenWorldHintAnnotation(true)(&mt)

	s.tools[name] = wrapped
	s.mcp.AddTool(mt, s.handler(wrapped))
	s.logger.Info("tool published", "tool", name)
	return nil
}

// Unregister withdraws a published tool.
func (s *Server) Unregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tools[name]; !ok {
		return domain.NewDomainError("mcpserver.Unregister", domain.ErrToolNotFound, name)
	}
	delete(s.tools, name)
	s.mcp.DeleteTools(name)
	s.logger.Info("tool withdrawn", "tool", name)
	return nil
}

// Tools returns the names of the published tools, sorted.
func (s *Server) Tools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tools))
	for n := range s.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Serve speaks MCP over in/out until ctx is canceled or the input closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	s.logger.Info("mcp server listening on stdio", "tools", s.Tools())
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

// Call runs a published tool through the same admission path as an MCP request.
func (s *Server) Call(ctx context.Context, name string, params json.RawMessage) (*domain.ToolResult, error) {
	s.mu.RLock()
	t, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NewDomainError("mcpserver.Call", domain.ErrToolNotFound, name)
	}
	return s.run(ctx, t, params), nil
}

func (s *Server) handler(t domain.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params, err := json.Marshal(req.GetRawArguments())
		if err != nil || string(params) == "null" {
			params = json.RawMessage(`{}`)
		}
		res := s.run(ctx, t, params)
		if res.IsError {
			return mcp.NewToolResultError(res.Content), nil
		}
		return mcp.NewToolResultText(res.Content), nil
	}
}

// run admits and executes one call: rate limit, then a concurrency slot, then
// the tool itself, all under the per-call deadline.
func (s *Server) run(ctx context.Context, t domain.Tool, params json.RawMessage) *domain.ToolResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warn("tool call rejected by rate limit", "tool", t.Name())
		res, _ := tool.ErrResult(domain.ErrHostRateLimit)
		return res
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.logger.Warn("tool call timed out waiting for a slot", "tool", t.Name())
		res, _ := tool.ErrResult(fmt.Errorf("%w: %w", domain.ErrHostBusy, err))
		return res
	}
	defer s.sem.Release(1)

	if f, ok := t.(domain.MessageFormatter); ok {
		s.logger.Info(f.FormatMessage(params), "tool", t.Name())
	}

	res, err := t.Execute(ctx, params)
	if err != nil {
		res, _ = tool.ErrResult(fmt.Errorf("%w: %w", domain.ErrToolFailure, err))
	}
	if res == nil {
		res, _ = tool.ErrResult(fmt.Errorf("%w: no result", domain.ErrToolFailure))
	}
	return res
}
