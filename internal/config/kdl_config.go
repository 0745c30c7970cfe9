package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/idgrep/internal/debug"
	idgreperrors "github.com/standardbeagle/idgrep/internal/errors"
)

// LoadKDL loads .idgrep.kdl from dir. A missing file yields nil, nil.
func LoadKDL(dir string) (*Config, error) {
	path := filepath.Join(dir, KDLFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return LoadKDLFile(path)
}

// LoadKDLFile parses a KDL configuration file on top of the defaults
func LoadKDLFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, idgreperrors.NewConfigError("file", path, err)
	}
	resolveRoot(cfg, filepath.Dir(path))
	cfg.Source = path
	return cfg, nil
}

// resolveRoot makes a relative search root relative to the config file's directory
func resolveRoot(cfg *Config, dir string) {
	if filepath.IsAbs(cfg.Search.Root) {
		cfg.Search.Root = filepath.Clean(cfg.Search.Root)
		return
	}
	root := filepath.Join(dir, cfg.Search.Root)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	cfg.Search.Root = root
}

func parseKDL(content string) (*Config, error) {
	cfg := Default()
	cfg.Search.Root = "."

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "server":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "listen":
					if s, ok := firstStringArg(cn); ok {
						cfg.Server.Listen = s
					}
				case "rate_limit":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Server.RateLimit = v
					}
				case "burst":
					if v, ok := firstIntArg(cn); ok {
						cfg.Server.Burst = v
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "binary":
					if s, ok := firstStringArg(cn); ok {
						cfg.Search.Binary = s
					}
				case "root":
					if s, ok := firstStringArg(cn); ok {
						cfg.Search.Root = s
					}
				case "max_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxCount = v
					}
				case "max_line_length":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxLineLength = v
					}
				case "default_context":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.DefaultContext = v
					}
				case "max_context":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxContext = v
					}
				}
			}
		case "security":
			for _, cn := range n.Children {
				if nodeName(cn) == "forbidden_prefixes" {
					// Replaces the defaults; the global file is unioned in at merge time
					cfg.Security.ForbiddenPrefixes = collectStringArgs(cn)
				}
			}
		case "pathinfo":
			for _, cn := range n.Children {
				if nodeName(cn) == "disk_speed_mbps" {
					if v, ok := firstFloatArg(cn); ok {
						cfg.PathInfo.DiskSpeedMBps = v
					}
				}
			}
		default:
			debug.LogConfig("ignoring unknown KDL node %q", nodeName(n))
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		debug.LogConfig("invalid number for %q: got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

// collectStringArgs accepts both inline arguments (`node "a" "b"`) and block
// children (`node { "a"; "b" }`)
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
