// Package testhelpers provides shared utilities for testing idgrep
package testhelpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/idgrep/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with safe defaults
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(t).
//		WithFakeEngine().
//		WithRateLimit(0, 0).
//		Build()
type TestConfigBuilder struct {
	t   *testing.T
	cfg *config.Config
}

// NewTestConfigBuilder starts from the defaults rooted at a fresh,
// symlink-free temp dir
func NewTestConfigBuilder(t *testing.T) *TestConfigBuilder {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Search.Root = root
	// Tests must never be throttled unless they ask for it
	cfg.Server.RateLimit = 0
	cfg.Server.Listen = "127.0.0.1:0"
	return &TestConfigBuilder{t: t, cfg: cfg}
}

// Root returns the search root of the config being built
func (b *TestConfigBuilder) Root() string {
	return b.cfg.Search.Root
}

// WithFile writes content to rel under the search root
func (b *TestConfigBuilder) WithFile(rel, content string) *TestConfigBuilder {
	b.t.Helper()
	full := filepath.Join(b.cfg.Search.Root, filepath.FromSlash(rel))
	require.NoError(b.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(b.t, os.WriteFile(full, []byte(content), 0o644))
	return b
}

// WithEngine sets the engine binary
func (b *TestConfigBuilder) WithEngine(binary string) *TestConfigBuilder {
	b.cfg.Search.Binary = binary
	return b
}

// WithFakeEngine makes the running test binary the engine. The test
// package's TestMain must call RunFakeEngineIfRequested.
func (b *TestConfigBuilder) WithFakeEngine() *TestConfigBuilder {
	b.cfg.Search.Binary = os.Args[0]
	return b
}

// WithRateLimit enables admission control
func (b *TestConfigBuilder) WithRateLimit(perSecond float64, burst int) *TestConfigBuilder {
	b.cfg.Server.RateLimit = perSecond
	b.cfg.Server.Burst = burst
	return b
}

// WithForbidden replaces the forbidden prefixes
func (b *TestConfigBuilder) WithForbidden(prefixes ...string) *TestConfigBuilder {
	b.cfg.Security.ForbiddenPrefixes = prefixes
	return b
}

// WithListen sets the server listen address
func (b *TestConfigBuilder) WithListen(listen string) *TestConfigBuilder {
	b.cfg.Server.Listen = listen
	return b
}

// Build returns the config
func (b *TestConfigBuilder) Build() *config.Config {
	return b.cfg
}
