package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/standardbeagle/idgrep/internal/debug"
	"github.com/standardbeagle/idgrep/internal/security"
)

// Default values used when no configuration file sets them
const (
	DefaultListen        = "127.0.0.1:8000"
	DefaultRateLimit     = 20.0
	DefaultBurst         = 40
	DefaultBinary        = "rg"
	DefaultMaxCount      = 10000
	DefaultMaxLineLength = 1000
	DefaultContextLines  = 1
	DefaultMaxContext    = 20
	DefaultDiskSpeedMBps = 150.0
	KDLFileName          = ".idgrep.kdl"
	TOMLFileName         = ".idgrep.toml"
)

type Config struct {
	Server   Server   `toml:"server"`
	Search   Search   `toml:"search"`
	Security Security `toml:"security"`
	PathInfo PathInfo `toml:"pathinfo"`

	// Source is the file the project settings came from, empty for defaults
	Source string `toml:"-"`
}

type Server struct {
	Listen    string  `toml:"listen"`     // host:port, or unix:/path/to/socket
	RateLimit float64 `toml:"rate_limit"` // Requests per second admitted; 0 disables limiting
	Burst     int     `toml:"burst"`
}

type Search struct {
	Binary         string `toml:"binary"`          // Engine executable, looked up on PATH
	Root           string `toml:"root"`            // Relative search paths resolve against this
	MaxCount       int    `toml:"max_count"`       // Matches per file passed to --max-count
	MaxLineLength  int    `toml:"max_line_length"` // Fold window in runes
	DefaultContext int    `toml:"default_context"` // Context lines when a request omits them
	MaxContext     int    `toml:"max_context"`     // Upper bound on requested context lines
}

type Security struct {
	ForbiddenPrefixes []string `toml:"forbidden_prefixes"`
}

type PathInfo struct {
	DiskSpeedMBps float64 `toml:"disk_speed_mbps"` // Assumed sequential read speed
}

// Default returns the built-in configuration rooted at the working directory
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Server: Server{
			Listen:    DefaultListen,
			RateLimit: DefaultRateLimit,
			Burst:     DefaultBurst,
		},
		Search: Search{
			Binary:         DefaultBinary,
			Root:           cwd,
			MaxCount:       DefaultMaxCount,
			MaxLineLength:  DefaultMaxLineLength,
			DefaultContext: DefaultContextLines,
			MaxContext:     DefaultMaxContext,
		},
		Security: Security{
			ForbiddenPrefixes: append([]string(nil), security.DefaultForbiddenPrefixes...),
		},
		PathInfo: PathInfo{
			DiskSpeedMBps: DefaultDiskSpeedMBps,
		},
	}
}

// Clone returns a deep copy so readers can hold a config while it is replaced
func (c *Config) Clone() *Config {
	out := *c
	out.Security.ForbiddenPrefixes = append([]string(nil), c.Security.ForbiddenPrefixes...)
	return &out
}

// Load reads configuration for the current directory. See LoadWithRoot.
func Load() (*Config, error) {
	return LoadWithRoot("")
}

// LoadWithRoot loads ~/.idgrep.kdl (or .toml) as a base, then the project
// file in rootDir on top of it, then environment overrides.
func LoadWithRoot(rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	var base *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if abs, _ := filepath.Abs(searchDir); abs != filepath.Clean(homeDir) {
			globalCfg, err := loadDir(homeDir)
			if err != nil {
				// A broken global file must not block project searches
				debug.LogConfig("ignoring global config: %v", err)
			} else if globalCfg != nil {
				base = globalCfg
			}
		}
	}

	project, err := loadDir(searchDir)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch {
	case base != nil && project != nil:
		cfg = mergeConfigs(base, project)
	case project != nil:
		cfg = project
	case base != nil:
		cfg = base
		if abs, err := filepath.Abs(searchDir); err == nil {
			cfg.Search.Root = abs
		}
	default:
		cfg = Default()
		if abs, err := filepath.Abs(searchDir); err == nil {
			cfg.Search.Root = abs
		}
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads one explicit configuration file, choosing the parser by
// extension, and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if filepath.Ext(path) == ".toml" {
		cfg, err = LoadTOMLFile(path)
	} else {
		cfg, err = LoadKDLFile(path)
	}
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDir returns nil, nil when dir holds no configuration file.
// KDL takes precedence over TOML when both exist.
func loadDir(dir string) (*Config, error) {
	if cfg, err := LoadKDL(dir); err != nil || cfg != nil {
		return cfg, err
	}
	return LoadTOML(dir)
}

// mergeConfigs lets the project override the base but keeps every
// forbidden prefix from both
func mergeConfigs(base, project *Config) *Config {
	merged := project.Clone()

	seen := make(map[string]bool)
	var prefixes []string
	for _, list := range [][]string{base.Security.ForbiddenPrefixes, project.Security.ForbiddenPrefixes} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				prefixes = append(prefixes, p)
			}
		}
	}
	sort.Strings(prefixes)
	merged.Security.ForbiddenPrefixes = prefixes

	return merged
}
