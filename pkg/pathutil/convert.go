// Package pathutil converts between the absolute paths ripgrep reports and
// the root-relative paths shown to people.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/idgrep/internal/rgjson"
)

// ToRelative converts an absolute path to one relative to rootDir.
// Relative paths, paths outside the root and empty inputs are returned
// unchanged.
//
//   - ToRelative("/srv/data/crm/export.csv", "/srv/data") → "crm/export.csv"
//   - ToRelative("/tmp/other.txt", "/srv/data") → "/tmp/other.txt"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" || !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rel, err := filepath.Rel(filepath.Clean(rootDir), absPath)
	if err != nil {
		return absPath
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return absPath
	}
	return rel
}

// ToRelativeRecord returns rec with its file path made relative to rootDir
func ToRelativeRecord(rec rgjson.Record, rootDir string) rgjson.Record {
	rec.FilePath = ToRelative(rec.FilePath, rootDir)
	return rec
}
