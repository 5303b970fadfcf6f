package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"landowebtool/internal/adapter/mcpserver"
	"landowebtool/internal/domain"
	"landowebtool/internal/infra/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func runServe(ctx context.Context) error {
	path := configPath()
	a, err := newApp(ctx, path, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcpserver.New(mcpserver.Config{
		Version:       version,
		CallTimeout:   a.cfg.Host.CallTimeout,
		MaxConcurrent: a.cfg.Host.MaxConcurrent,
		RateLimit:     a.cfg.Host.RateLimit,
		RateBurst:     a.cfg.Host.RateBurst,
	}, a.log)

	manager := a.manage(ctx, srv)
	if err := manager.Sync(ctx); err != nil {
		a.log.Error("initial tool registration failed", "error", err)
	}
	if len(manager.Registered()) == 0 {
		a.log.Warn("no tools registered; set an API key and reload with SIGHUP")
	}
	defer func() {
		if err := manager.UnregisterAll(); err != nil {
			a.log.Warn("unregister tools", "error", err)
		}
	}()

	go reloadOnHangup(ctx, a, path)

	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

// reloadOnHangup re-reads the config file on SIGHUP and publishes the new tool
// settings. A broken file leaves the current settings in place.
func reloadOnHangup(ctx context.Context, a *app, path string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(path)
			if err != nil {
				a.log.Error("config reload failed", "error", err)
				continue
			}
			next := a.store.Update(func(s *domain.Settings) { *s = cfg.Settings() })
			a.log.Info("settings reloaded",
				"enabled", next.Enabled,
				"has_api_key", next.HasAPIKey(),
				"max_results", next.MaxResults,
				"timeout", next.Timeout,
			)
		}
	}
}
