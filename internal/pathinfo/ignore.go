package pathinfo

import (
	"bufio"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreRule is one .gitignore line expressed as a doublestar glob
// relative to the directory holding the file.
type ignoreRule struct {
	glob    string
	negate  bool
	dirOnly bool
}

// ignoreRules evaluates rules in file order; the last matching rule wins.
type ignoreRules []ignoreRule

// loadGitignore reads dir/.gitignore. A missing file yields no rules.
func loadGitignore(dir string) (ignoreRules, error) {
	f, err := os.Open(filepath.Join(dir, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseGitignore(f)
}

func parseGitignore(r io.Reader) (ignoreRules, error) {
	var rules ignoreRules
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if rule, ok := parseIgnoreLine(scanner.Text()); ok {
			rules = append(rules, rule)
		}
	}
	return rules, scanner.Err()
}

func parseIgnoreLine(line string) (ignoreRule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}

	var rule ignoreRule
	if strings.HasPrefix(line, "!") {
		rule.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimRight(line, "/")
	}

	// A slash anywhere but the end anchors the pattern to the root
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return ignoreRule{}, false
	}
	if anchored {
		rule.glob = line
	} else {
		rule.glob = "**/" + line
	}
	if !doublestar.ValidatePattern(rule.glob) {
		return ignoreRule{}, false
	}
	return rule, true
}

// matches reports whether rel, or a directory containing it, is covered
// by the rule. rel is slash separated and relative to the rule's root.
func (r ignoreRule) matches(rel string, isDir bool) bool {
	if (!r.dirOnly || isDir) && doublestar.MatchUnvalidated(r.glob, rel) {
		return true
	}
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if doublestar.MatchUnvalidated(r.glob, dir) {
			return true
		}
	}
	return false
}

// ignored reports whether rel is excluded by the rules
func (rs ignoreRules) ignored(rel string, isDir bool) bool {
	ignored := false
	for _, r := range rs {
		if r.matches(rel, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}
