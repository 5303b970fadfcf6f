package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"landowebtool/internal/adapter/serper"
	"landowebtool/internal/adapter/tool"
	"landowebtool/internal/domain"
	"landowebtool/internal/infra/config"
	"landowebtool/internal/infra/logger"
	"landowebtool/internal/infra/tracer"
	"landowebtool/internal/usecase"
)

// app holds the components every command shares.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *config.SettingsStore
	serper serper.Config
	tools  []domain.Tool

	closers []func()
}

// newApp loads config and builds logging, tracing, settings and the tools.
// While serving, stdout belongs to the MCP transport and nothing else may write to it.
func newApp(ctx context.Context, cfgPath string, serving bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var logOpts []logger.Option
	if serving {
		logOpts = append(logOpts, logger.ReserveStdout())
		if cfg.Tracer.Exporter == "stdout" {
			cfg.Tracer.Exporter = "stderr"
		}
	}
	log, logCloser, err := logger.New(cfg.Logger, logOpts...)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() { logCloser() })

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", "error", err)
		}
	})

	a.store = config.NewSettingsStore(cfg.Settings().Normalize())
	a.serper = serperConfig(cfg)
	a.tools = []domain.Tool{
		tool.NewWebSearchTool(a.store, a.serper, log),
		tool.NewWebScrapeTool(a.store, a.serper, log),
	}
	return a, nil
}

// serperConfig maps the file config onto the client config. The per-attempt
// timeout comes from the live settings at call time.
func serperConfig(cfg *config.Config) serper.Config {
	return serper.Config{
		SearchURL:  cfg.Serper.SearchURL,
		ScrapeURL:  cfg.Serper.ScrapeURL,
		Timeout:    cfg.Tools.Timeout,
		MaxRetries: cfg.Serper.MaxRetries,
		RetryDelay: cfg.Serper.RetryDelay,
	}
}

// manage returns a tool manager over registry that re-syncs on every settings change.
func (a *app) manage(ctx context.Context, registry domain.ToolRegistry) *usecase.ToolManager {
	m := usecase.NewToolManager(registry, a.log, a.tools...)
	a.store.Subscribe(func(domain.Settings) {
		if err := m.Sync(ctx); err != nil {
			a.log.Error("tool sync failed", "error", err)
		}
	})
	return m
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
