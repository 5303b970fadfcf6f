package tool

import (
	"context"
	"log/slog"

	"landowebtool/internal/adapter/serper"
	"landowebtool/internal/domain"
)

// serperTool carries what the Serper-backed tools share: the settings source,
// the endpoint/retry configuration and the logger.
type serperTool struct {
	settings domain.SettingsProvider
	base     serper.Config
	logger   *slog.Logger
}

func newSerperTool(settings domain.SettingsProvider, base serper.Config, logger *slog.Logger) serperTool {
	if logger == nil {
		logger = slog.Default()
	}
	return serperTool{settings: settings, base: base, logger: logger}
}

// client builds a per-call client from the current settings. A missing key fails
// before anything touches the network.
func (s serperTool) client() (*serper.Client, domain.Settings, error) {
	st := s.settings.Settings()
	if st.APIKey == "" {
		return nil, st, domain.ErrNoAPIKey
	}
	cfg := s.base
	cfg.Timeout = st.Normalize().Timeout
	c, err := serper.New(st.APIKey, cfg, s.logger)
	if err != nil {
		return nil, st, err
	}
	return c, st, nil
}

// ShouldRegister reports whether a key is configured and the tools are enabled.
func (s serperTool) ShouldRegister(context.Context) bool {
	st := s.settings.Settings()
	return st.HasAPIKey() && st.Enabled
}
