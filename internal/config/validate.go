package config

import (
	"fmt"
	"net/url"
)

// Accepted values for enum-like keys.
var (
	validModes     = map[string]bool{"": true, "interactive": true, "service-principal": true}
	validLogLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
)

// Validate checks cross-field constraints on a parsed Config.
// Empty credential fields are fine here; required-field enforcement
// happens after the full credential merge, not at file-parse time.
func Validate(cfg *Config) error {
	if !validModes[cfg.Mode] {
		return fmt.Errorf("invalid mode %q (expected \"interactive\" or \"service-principal\")", cfg.Mode)
	}

	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level %q (expected debug, info, warn, or error)", cfg.LogLevel)
	}

	if cfg.WorkspaceURL != "" {
		if err := validateWorkspaceURL(cfg.WorkspaceURL); err != nil {
			return err
		}
	}

	return nil
}

// validateWorkspaceURL requires an absolute http(s) URL with a host.
func validateWorkspaceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid workspace_url %q: %w", raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid workspace_url %q: scheme must be http or https", raw)
	}

	if u.Host == "" {
		return fmt.Errorf("invalid workspace_url %q: missing host", raw)
	}

	return nil
}
