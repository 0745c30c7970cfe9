package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/idgrep/internal/errors"
)

// DefaultForbiddenPrefixes are system directories that may never be searched
var DefaultForbiddenPrefixes = []string{"/etc", "/proc", "/sys", "/dev", "/boot", "/sbin"}

// PathValidator canonicalizes caller-supplied search paths and rejects
// those that are missing or inside a forbidden directory.
type PathValidator struct {
	Root              string   // Relative paths resolve against Root; empty means the working directory
	ForbiddenPrefixes []string // Canonical directories that are off limits, including their subtrees
}

func NewPathValidator(root string, forbidden []string) *PathValidator {
	if forbidden == nil {
		forbidden = DefaultForbiddenPrefixes
	}
	return &PathValidator{
		Root:              root,
		ForbiddenPrefixes: forbidden,
	}
}

// Validate returns the canonical form of path. The error is an
// *errors.PathError of type path_not_found or path_forbidden.
func (v *PathValidator) Validate(path string) (string, error) {
	if path == "" {
		path = "."
	}

	candidate := path
	if !filepath.IsAbs(candidate) && v.Root != "" {
		candidate = filepath.Join(v.Root, candidate)
	}

	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", errors.NewPathNotFoundError(path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", errors.NewPathNotFoundError(path, err)
	}

	// Symlinks are resolved so a link cannot smuggle a forbidden target
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.NewPathNotFoundError(path, err)
	}

	if prefix, blocked := v.forbidden(resolved); blocked {
		return "", errors.NewPathForbiddenError(path, prefix).WithResolved(resolved)
	}
	return resolved, nil
}

func (v *PathValidator) forbidden(resolved string) (string, bool) {
	sep := string(filepath.Separator)
	for _, prefix := range v.ForbiddenPrefixes {
		p := filepath.Clean(prefix)
		if resolved == p || strings.HasPrefix(resolved, strings.TrimSuffix(p, sep)+sep) {
			return prefix, true
		}
	}
	return "", false
}

// String is used in diagnostics
func (v *PathValidator) String() string {
	return fmt.Sprintf("PathValidator{root=%q forbidden=%v}", v.Root, v.ForbiddenPrefixes)
}
