package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load parses the TOML config file at path. Unknown keys refuse the whole
// file: a typo that silently fell back to defaults would be much harder
// to spot than a load error with a hint.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return parse(path, raw)
}

// LoadOrDefault reads the config file when it exists and falls back to
// built-in defaults when it does not, so a fresh install needs no setup.
func LoadOrDefault(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return parse(path, raw)
}

func parse(path string, raw []byte) (*Config, error) {
	cfg := DefaultConfig()

	meta, err := toml.Decode(string(raw), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := checkUnknownKeys(&meta); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	return cfg, nil
}
