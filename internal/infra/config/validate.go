package config

import (
	"fmt"
	"net/url"
	"strings"

	"landowebtool/internal/domain"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Unwrap lets errors.Is match domain.ErrConfig.
func (v *ValidationError) Unwrap() error { return domain.ErrConfig }

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
// A missing API key is not an error here: the tools stay unregistered instead.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateSerper(cfg, ve)
	validateTools(cfg, ve)
	validateHost(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateSerper(cfg *Config, ve *ValidationError) {
	s := cfg.Serper
	for name, v := range map[string]string{"serper.search_url": s.SearchURL, "serper.scrape_url": s.ScrapeURL} {
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			ve.Add("%s must be an http(s) URL, got %q", name, v)
		}
	}
	if s.MaxRetries < 1 {
		ve.Add("serper.max_retries must be >= 1")
	}
	if s.RetryDelay <= 0 {
		ve.Add("serper.retry_delay must be > 0")
	}
}

func validateTools(cfg *Config, ve *ValidationError) {
	t := cfg.Tools
	if t.MaxResults < domain.MinMaxResults || t.MaxResults > domain.MaxMaxResults {
		ve.Add("tools.max_results must be %d-%d", domain.MinMaxResults, domain.MaxMaxResults)
	}
	if t.Timeout < domain.MinTimeout || t.Timeout > domain.MaxTimeout {
		ve.Add("tools.timeout must be %s-%s", domain.MinTimeout, domain.MaxTimeout)
	}
}

func validateHost(cfg *Config, ve *ValidationError) {
	h := cfg.Host
	if h.CallTimeout <= 0 {
		ve.Add("host.call_timeout must be > 0")
	}
	if h.MaxConcurrent < 1 {
		ve.Add("host.max_concurrent must be >= 1")
	}
	if h.RateLimit < 0 {
		ve.Add("host.rate_limit must be >= 0")
	}
	if h.RateLimit > 0 && h.RateBurst < 0 {
		ve.Add("host.rate_burst must be >= 0")
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is not text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout", "stderr":
	default:
		ve.Add("tracer.exporter %q is not noop, stdout or stderr", cfg.Tracer.Exporter)
	}
}
