// Package pathinfo sizes a search target and estimates how long the engine
// will take to read it.
package pathinfo

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/idgrep/internal/config"
	"github.com/standardbeagle/idgrep/internal/debug"
	"github.com/standardbeagle/idgrep/internal/security"
)

const bytesPerMiB = 1024 * 1024

// Info describes a validated search target
type Info struct {
	ResolvedPath     string  `json:"resolved_path"`
	TotalSizeBytes   int64   `json:"total_size_bytes"`
	FileCount        int     `json:"file_count"`
	EstSearchSeconds float64 `json:"est_search_seconds"`
}

// Options controls what Stat counts
type Options struct {
	Paths         *security.PathValidator
	DiskSpeedMBps float64

	// Include and Exclude use the same glob forms as search requests
	Include []string
	Exclude []string

	// RespectGitignore skips entries matched by the root .gitignore
	RespectGitignore bool
}

// OptionsFromConfig fills the validator and disk speed from cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Paths:         security.NewPathValidator(cfg.Search.Root, cfg.Security.ForbiddenPrefixes),
		DiskSpeedMBps: cfg.PathInfo.DiskSpeedMBps,
	}
}

// Stat validates p and totals the regular files under it. Entries that
// cannot be read are skipped. Symlinks are not followed.
func Stat(p string, opts Options) (*Info, error) {
	validator := opts.Paths
	if validator == nil {
		validator = security.NewPathValidator("", nil)
	}
	resolved, err := validator.Validate(p)
	if err != nil {
		return nil, err
	}
	speed := opts.DiskSpeedMBps
	if speed <= 0 {
		speed = config.DefaultDiskSpeedMBps
	}

	info := &Info{ResolvedPath: resolved}
	st, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", resolved, err)
	}

	switch {
	case st.Mode().IsRegular():
		info.TotalSizeBytes = st.Size()
		info.FileCount = 1
	case st.IsDir():
		if err := walkTree(resolved, opts, info); err != nil {
			return nil, err
		}
	}

	if info.TotalSizeBytes > 0 {
		seconds := float64(info.TotalSizeBytes) / (speed * bytesPerMiB)
		info.EstSearchSeconds = math.Round(seconds*100) / 100
	}
	debug.LogSearch("pathinfo %s: %d files, %d bytes", resolved, info.FileCount, info.TotalSizeBytes)
	return info, nil
}

func walkTree(root string, opts Options, info *Info) error {
	var rules ignoreRules
	if opts.RespectGitignore {
		loaded, err := loadGitignore(root)
		if err != nil {
			debug.LogSearch("pathinfo: ignoring unreadable .gitignore in %s: %v", root, err)
		}
		rules = loaded
	}

	visit := func(rel string, d fs.DirEntry) error {
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if rules.ignored(rel, true) || matchesAny(opts.Exclude, rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if rules.ignored(rel, false) || matchesAny(opts.Exclude, rel) {
			return nil
		}
		if len(opts.Include) > 0 && !matchesAny(opts.Include, rel) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		info.TotalSizeBytes += fi.Size()
		info.FileCount++
		return nil
	}

	if err := doublestar.GlobWalk(os.DirFS(root), "**", visit, doublestar.WithNoFollow()); err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	return nil
}

// matchesAny applies globs the way the engine does: a glob without a slash
// is matched against the base name, otherwise against the relative path.
func matchesAny(globs []string, rel string) bool {
	for _, g := range globs {
		target := rel
		if !strings.Contains(g, "/") {
			target = path.Base(rel)
		}
		if ok, _ := doublestar.Match(g, target); ok {
			return true
		}
	}
	return false
}
