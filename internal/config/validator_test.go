package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/idgrep/internal/errors"
)

func TestValidator_Defaults(t *testing.T) {
	assert.NoError(t, ValidateConfig(Default()))
}

func TestValidator_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{"zero max count", func(c *Config) { c.Search.MaxCount = 0 }, "search"},
		{"negative max count", func(c *Config) { c.Search.MaxCount = -1 }, "search"},
		{"negative line length", func(c *Config) { c.Search.MaxLineLength = -5 }, "search"},
		{"negative max context", func(c *Config) { c.Search.MaxContext = -1 }, "search"},
		{"default context above max", func(c *Config) { c.Search.DefaultContext = 30 }, "search"},
		{"blank binary", func(c *Config) { c.Search.Binary = "   " }, "search"},
		{"empty unix socket", func(c *Config) { c.Server.Listen = "unix:" }, "server"},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, "server"},
		{"rate without burst", func(c *Config) { c.Server.Burst = 0 }, "server"},
		{"relative forbidden prefix", func(c *Config) { c.Security.ForbiddenPrefixes = []string{"etc"} }, "security"},
		{"negative disk speed", func(c *Config) { c.PathInfo.DiskSpeedMBps = -10 }, "pathinfo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.section, cfgErr.Field)
		})
	}
}

func TestValidator_SmartDefaults(t *testing.T) {
	cfg := Default()
	cfg.Search.Binary = ""
	cfg.Search.MaxLineLength = 0
	cfg.Server.Listen = ""
	cfg.PathInfo.DiskSpeedMBps = 0

	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, DefaultBinary, cfg.Search.Binary)
	assert.Equal(t, DefaultMaxLineLength, cfg.Search.MaxLineLength)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultDiskSpeedMBps, cfg.PathInfo.DiskSpeedMBps)
}

func TestValidator_RateLimitDisabled(t *testing.T) {
	cfg := Default()
	cfg.Server.RateLimit = 0
	cfg.Server.Burst = 0
	assert.NoError(t, ValidateConfig(cfg))
}
