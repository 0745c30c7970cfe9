package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	idgreperrors "github.com/standardbeagle/idgrep/internal/errors"
)

// Validator validates configuration and fills in values left at zero
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults returns a *errors.ConfigError naming the first
// section that fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	v.setSmartDefaults(cfg)

	if err := v.validateServerConfig(&cfg.Server); err != nil {
		return idgreperrors.NewConfigError("server", "", err)
	}
	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		return idgreperrors.NewConfigError("search", "", err)
	}
	if err := v.validateSecurityConfig(&cfg.Security); err != nil {
		return idgreperrors.NewConfigError("security", "", err)
	}
	if cfg.PathInfo.DiskSpeedMBps <= 0 {
		return idgreperrors.NewConfigError("pathinfo", fmt.Sprint(cfg.PathInfo.DiskSpeedMBps),
			errors.New("disk_speed_mbps must be positive"))
	}
	return nil
}

func (v *Validator) validateServerConfig(server *Server) error {
	if server.Listen == "" {
		return errors.New("listen address cannot be empty")
	}
	if strings.HasPrefix(server.Listen, "unix:") && strings.TrimPrefix(server.Listen, "unix:") == "" {
		return errors.New("unix socket path cannot be empty")
	}
	if server.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %v", server.RateLimit)
	}
	if server.RateLimit > 0 && server.Burst <= 0 {
		return fmt.Errorf("burst must be positive when rate limiting, got %d", server.Burst)
	}
	return nil
}

func (v *Validator) validateSearchConfig(search *Search) error {
	if strings.TrimSpace(search.Binary) == "" {
		return errors.New("binary cannot be empty")
	}
	if search.MaxCount <= 0 {
		return fmt.Errorf("max_count must be positive, got %d", search.MaxCount)
	}
	if search.MaxLineLength <= 0 {
		return fmt.Errorf("max_line_length must be positive, got %d", search.MaxLineLength)
	}
	if search.MaxContext < 0 {
		return fmt.Errorf("max_context cannot be negative, got %d", search.MaxContext)
	}
	if search.DefaultContext < 0 || search.DefaultContext > search.MaxContext {
		return fmt.Errorf("default_context must be between 0 and %d, got %d", search.MaxContext, search.DefaultContext)
	}
	return nil
}

func (v *Validator) validateSecurityConfig(sec *Security) error {
	for _, p := range sec.ForbiddenPrefixes {
		if !filepath.IsAbs(p) {
			return fmt.Errorf("forbidden prefix %q must be an absolute path", p)
		}
	}
	return nil
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Search.Binary == "" {
		cfg.Search.Binary = DefaultBinary
	}
	if cfg.Search.MaxLineLength == 0 {
		cfg.Search.MaxLineLength = DefaultMaxLineLength
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.PathInfo.DiskSpeedMBps == 0 {
		cfg.PathInfo.DiskSpeedMBps = DefaultDiskSpeedMBps
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
