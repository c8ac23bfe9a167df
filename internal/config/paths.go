package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName is the per-user directory name on every platform.
const appName = "modelpush"

const configFileName = "config.toml"

// appDir resolves a per-user application directory. Linux honors the
// given XDG variable before the home-relative fallback; macOS keeps
// config and data together under Application Support.
func appDir(xdgVar string, fallback ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	case "linux":
		if dir := os.Getenv(xdgVar); dir != "" {
			return filepath.Join(dir, appName)
		}
	}

	elems := append([]string{home}, fallback...)

	return filepath.Join(append(elems, appName)...)
}

// DefaultConfigDir is ~/.config/modelpush on Linux (XDG_CONFIG_HOME
// aware) and ~/Library/Application Support/modelpush on macOS.
func DefaultConfigDir() string {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir holds the cached auth state, the identity map, and the
// deployment ledger: ~/.local/share/modelpush on Linux (XDG_DATA_HOME
// aware), the Application Support directory on macOS.
func DefaultDataDir() string {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

// DefaultConfigPath is the config file location used when neither
// MODELPUSH_CONFIG nor --config overrides it.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}
