package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	idgreperrors "github.com/standardbeagle/idgrep/internal/errors"
)

// LoadTOML loads .idgrep.toml from dir. A missing file yields nil, nil.
func LoadTOML(dir string) (*Config, error) {
	path := filepath.Join(dir, TOMLFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return LoadTOMLFile(path)
}

// LoadTOMLFile parses a TOML configuration file on top of the defaults.
// Unknown keys are rejected so typos surface instead of being ignored.
func LoadTOMLFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := Default()
	cfg.Search.Root = "."

	dec := toml.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, idgreperrors.NewConfigError("file", path, fmt.Errorf("failed to parse TOML config: %w", err))
	}

	resolveRoot(cfg, filepath.Dir(path))
	cfg.Source = path
	return cfg, nil
}

// MarshalTOML renders cfg in the .idgrep.toml format
func MarshalTOML(cfg *Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
