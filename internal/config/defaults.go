package config

// DefaultConfig returns the built-in defaults. The TOML decoder writes over
// this, so fields absent from the file keep these values. Credential fields
// stay empty; they come from higher-priority sources or prompting.
func DefaultConfig() *Config {
	return &Config{LogLevel: "info"}
}
