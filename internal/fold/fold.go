// Package fold bounds the displayed length of long result lines.
//
// A matched line longer than the limit is cut to a window centered on the
// earliest occurrence of any query variation; ellipsis markers show where
// content was removed. Lengths are measured in runes.
package fold

import "unicode"

const (
	// Ellipsis marks content removed from either end of a line
	Ellipsis = "..."

	// DefaultMaxLength is the window width used when none is configured
	DefaultMaxLength = 1000
)

// Fold shortens line to at most maxLen runes of content around the earliest
// case-insensitive occurrence of any variation. Lines within the limit are
// returned unchanged. If no variation occurs the line is truncated.
func Fold(line string, variations []string, maxLen int) string {
	runes := []rune(line)
	if maxLen <= 0 || len(runes) <= maxLen {
		return line
	}

	idx, width := earliest(runes, variations)
	if idx < 0 {
		return string(runes[:maxLen]) + Ellipsis
	}

	start := idx - maxLen/2
	if start < 0 {
		start = 0
	}
	end := min(len(runes), start+maxLen)
	if end-start < maxLen {
		start = max(0, end-maxLen)
	}
	// keep the whole occurrence inside the window when it fits
	if idx+width > end && width <= maxLen {
		end = idx + width
		start = end - maxLen
	}

	out := string(runes[start:end])
	if start > 0 {
		out = Ellipsis + out
	}
	if end < len(runes) {
		out += Ellipsis
	}
	return out
}

// Truncate caps line at maxLen runes, appending an ellipsis when cut.
// Context lines use this instead of Fold since they hold no match.
func Truncate(line string, maxLen int) string {
	runes := []rune(line)
	if maxLen <= 0 || len(runes) <= maxLen {
		return line
	}
	return string(runes[:maxLen]) + Ellipsis
}

// earliest returns the rune offset and rune length of the first variation
// occurrence, or -1 when none occurs.
func earliest(line []rune, variations []string) (int, int) {
	lowered := toLower(line)
	best, width := -1, 0
	for _, v := range variations {
		if v == "" {
			continue
		}
		needle := toLower([]rune(v))
		if i := indexRunes(lowered, needle); i >= 0 && (best < 0 || i < best) {
			best, width = i, len(needle)
		}
	}
	return best, width
}

// toLower lowercases rune by rune so offsets stay aligned with the input
func toLower(runes []rune) []rune {
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// indexRunes returns the first offset of needle in haystack, or -1
func indexRunes(haystack, needle []rune) int {
	n := len(needle)
	for i := 0; i+n <= len(haystack); i++ {
		match := true
		for j := 0; j < n; j++ {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
