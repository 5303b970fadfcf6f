package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"landowebtool/internal/domain"
)

// ToolManager publishes a fixed set of tools to a host registry, honoring each
// tool's domain.RegistrationGate. It tracks what it registered so that settings
// changes can be applied with Sync.
type ToolManager struct {
	registry domain.ToolRegistry
	tools    []domain.Tool
	logger   *slog.Logger

	mu         sync.Mutex
	registered map[string]bool
}

// NewToolManager creates a manager for tools backed by registry.
func NewToolManager(registry domain.ToolRegistry, logger *slog.Logger, tools ...domain.Tool) *ToolManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolManager{
		registry:   registry,
		tools:      tools,
		logger:     logger.With("component", "tool_manager"),
		registered: make(map[string]bool),
	}
}

// shouldRegister evaluates the tool's gate; ungated tools always register.
func shouldRegister(ctx context.Context, t domain.Tool) bool {
	if g, ok := t.(domain.RegistrationGate); ok {
		return g.ShouldRegister(ctx)
	}
	return true
}

// RegisterAll registers every tool whose gate passes and that is not yet registered.
func (m *ToolManager) RegisterAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("registering tools")
	var errs []error
	for _, t := range m.tools {
		if m.registered[t.Name()] || !shouldRegister(ctx, t) {
			continue
		}
		errs = append(errs, m.register(t))
	}
	m.logger.Info("tools registered", "tools", m.names())
	return errors.Join(errs...)
}

// UnregisterAll removes every tool this manager registered.
func (m *ToolManager) UnregisterAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("unregistering tools")
	var errs []error
	for _, t := range m.tools {
		if m.registered[t.Name()] {
			errs = append(errs, m.unregister(t.Name()))
		}
	}
	return errors.Join(errs...)
}

// Reregister unregisters and registers again, re-evaluating every gate.
func (m *ToolManager) Reregister(ctx context.Context) error {
	return errors.Join(m.UnregisterAll(), m.RegisterAll(ctx))
}

// Sync brings the registry in line with the gates: tools whose gate now passes
// are registered and tools whose gate now fails are removed.
func (m *ToolManager) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, t := range m.tools {
		want := shouldRegister(ctx, t)
		have := m.registered[t.Name()]
		switch {
		case want && !have:
			errs = append(errs, m.register(t))
		case !want && have:
			errs = append(errs, m.unregister(t.Name()))
		}
	}
	m.logger.Debug("tools synced", "tools", m.names())
	return errors.Join(errs...)
}

// Registered returns the names of the tools currently registered, sorted.
func (m *ToolManager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.names()
}

func (m *ToolManager) register(t domain.Tool) error {
	if err := m.registry.Register(t); err != nil {
		m.logger.Warn("tool registration failed", "tool", t.Name(), "error", err)
		return fmt.Errorf("register %s: %w", t.Name(), err)
	}
	m.registered[t.Name()] = true
	m.logger.Debug("tool registered", "tool", t.Name())
	return nil
}

func (m *ToolManager) unregister(name string) error {
	delete(m.registered, name)
	if err := m.registry.Unregister(name); err != nil && !errors.Is(err, domain.ErrToolNotFound) {
		m.logger.Warn("tool unregistration failed", "tool", name, "error", err)
		return fmt.Errorf("unregister %s: %w", name, err)
	}
	m.logger.Debug("tool unregistered", "tool", name)
	return nil
}

func (m *ToolManager) names() []string {
	names := make([]string, 0, len(m.registered))
	for n := range m.registered {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
