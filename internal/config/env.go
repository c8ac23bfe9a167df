package config

import "os"

// EnvConfig overrides the config file path. Credential environment
// variables are owned by the creds package; this one only locates the file.
const EnvConfig = "MODELPUSH_CONFIG"

// ResolvePath picks the config file path: CLI flag > environment > default.
func ResolvePath(cliPath string) string {
	if cliPath != "" {
		return cliPath
	}

	if envPath := os.Getenv(EnvConfig); envPath != "" {
		return envPath
	}

	return DefaultConfigPath()
}
