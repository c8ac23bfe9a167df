// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for modelpush. The config file is the
// lowest-priority credential source: the credential resolver layers cached
// state, environment variables, and CLI flags on top of it.
package config

// Config is the top-level configuration structure parsed from a TOML file.
// All keys are optional; the file itself is optional. Secrets never live
// here: there is deliberately no client_secret key.
type Config struct {
	WorkspaceURL string `toml:"workspace_url"`
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	Mode         string `toml:"mode"`
	ModelName    string `toml:"model_name"`
	LogLevel     string `toml:"log_level"`
}
