package config

import (
	"strconv"
	"strings"

	"github.com/standardbeagle/idgrep/internal/errors"
)

// Environment variables that override file settings
const (
	EnvListen   = "IDGREP_LISTEN"
	EnvBinary   = "IDGREP_RG_BINARY"
	EnvMaxCount = "IDGREP_MAX_COUNT"
	EnvRoot     = "IDGREP_ROOT"
)

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with any set IDGREP_* variables
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvListen); ok && strings.TrimSpace(v) != "" {
		cfg.Server.Listen = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvBinary); ok && strings.TrimSpace(v) != "" {
		cfg.Search.Binary = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRoot); ok && strings.TrimSpace(v) != "" {
		cfg.Search.Root = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvMaxCount); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.NewConfigError(EnvMaxCount, v, err)
		}
		cfg.Search.MaxCount = n
	}
	return nil
}
