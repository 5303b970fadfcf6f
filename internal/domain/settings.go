package domain

import (
	"strings"
	"time"
)

// Settings ranges accepted from the host.
const (
	MinMaxResults     = 1
	MaxMaxResults     = 50
	DefaultMaxResults = 10

	MinTimeout     = 5 * time.Second
	MaxTimeout     = 120 * time.Second
	DefaultTimeout = 30 * time.Second
)

// Settings is the host-persisted configuration the tools read on every call.
type Settings struct {
	APIKey     string
	Enabled    bool
	MaxResults int
	Timeout    time.Duration
}

// DefaultSettings returns the settings a fresh installation starts with.
func DefaultSettings() Settings {
	return Settings{
		Enabled:    true,
		MaxResults: DefaultMaxResults,
		Timeout:    DefaultTimeout,
	}
}

// HasAPIKey reports whether a non-blank API key is configured.
func (s Settings) HasAPIKey() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// Normalize returns a copy with numeric fields clamped into their accepted ranges.
// Zero values take the defaults.
func (s Settings) Normalize() Settings {
	switch {
	case s.MaxResults == 0:
		s.MaxResults = DefaultMaxResults
	case s.MaxResults < MinMaxResults:
		s.MaxResults = MinMaxResults
	case s.MaxResults > MaxMaxResults:
		s.MaxResults = MaxMaxResults
	}
	switch {
	case s.Timeout == 0:
		s.Timeout = DefaultTimeout
	case s.Timeout < MinTimeout:
		s.Timeout = MinTimeout
	case s.Timeout > MaxTimeout:
		s.Timeout = MaxTimeout
	}
	return s
}

// SettingsProvider exposes the current settings snapshot. Implementations must be
// safe for concurrent use; callers never mutate the returned value's source.
type SettingsProvider interface {
	Settings() Settings
}
