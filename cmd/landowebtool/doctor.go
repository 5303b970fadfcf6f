package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"landowebtool/internal/adapter/serper"
	"landowebtool/internal/domain"
	"landowebtool/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

const doctorTimeout = 15 * time.Second

// runDoctor executes all health checks and reports results.
func runDoctor(w io.Writer) error {
	cfgPath := configPath()

	// Some checks work without a loaded config.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "API key", Fn: checkAPIKey},
		{Name: "Tools enabled", Fn: checkToolsEnabled},
		{Name: "Serper API", Fn: checkSerperAPI},
	}
	return report(w, cfg, checks)
}

func report(w io.Writer, cfg *config.Config, checks []Check) error {
	fmt.Fprintln(w, "landowebtool doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

var errConfigNotLoaded = CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}

// checkConfigFile returns a check that verifies the config file loads. A missing
// file is only a warning: defaults and environment variables still apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Fix the reported fields in " + cfgPath,
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults and environment", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

func checkAPIKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return errConfigNotLoaded
	}
	if !cfg.Settings().HasAPIKey() {
		return CheckResult{
			Status:  StatusFail,
			Message: "no Serper API key configured",
			Fix:     "Set serper.api_key in the config file or export SERPER_API_KEY",
		}
	}
	return CheckResult{Status: StatusPass, Message: "API key configured"}
}

func checkToolsEnabled(cfg *config.Config) CheckResult {
	if cfg == nil {
		return errConfigNotLoaded
	}
	if !cfg.Tools.Enabled {
		return CheckResult{
			Status:  StatusWarn,
			Message: "tools are disabled and will not be offered to the host",
			Fix:     "Set tools.enabled: true",
		}
	}
	return CheckResult{Status: StatusPass, Message: "search and scrape are enabled"}
}

// checkSerperAPI runs a one-result search. Unlike validate-key it reports
// outages as failures instead of giving the key the benefit of the doubt.
func checkSerperAPI(cfg *config.Config) CheckResult {
	if cfg == nil {
		return errConfigNotLoaded
	}
	if !cfg.Settings().HasAPIKey() {
		return CheckResult{Status: StatusWarn, Message: "skipped, no API key"}
	}

	client, err := serper.New(cfg.Serper.APIKey, serperConfig(cfg), slog.New(slog.DiscardHandler))
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	start := time.Now()
	_, err = client.Search(ctx, "landowebtool doctor", serper.SearchOptions{Num: 1})
	latency := time.Since(start)

	switch {
	case err == nil:
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("search succeeded (latency: %dms)", latency.Milliseconds()),
		}
	case errors.Is(err, domain.ErrAuthInvalid):
		return CheckResult{
			Status:  StatusFail,
			Message: "the API rejected the key",
			Fix:     "Check the key at https://serper.dev",
		}
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrCanceled):
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", cfg.Serper.SearchURL, err),
			Fix:     "Check your internet connection and firewall settings",
		}
	default:
		return CheckResult{Status: StatusWarn, Message: err.Error()}
	}
}
