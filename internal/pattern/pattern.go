// Package pattern turns literal text into ripgrep regex arguments.
package pattern

import "strings"

// metacharacters are special in ripgrep's Rust regex syntax
const metacharacters = `\.^$*+?{}[]|()`

// Escape prefixes every regex metacharacter with a backslash
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)
	for _, r := range text {
		if strings.ContainsRune(metacharacters, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Unescape reverses Escape. A backslash that does not precede a
// metacharacter is kept as-is.
func Unescape(escaped string) string {
	var b strings.Builder
	b.Grow(len(escaped))
	runes := []rune(escaped)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) && strings.ContainsRune(metacharacters, runes[i+1]) {
			i++
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// NameWildcards builds the two patterns that tolerate an unknown middle
// name or initial: "first <any> last" and "last, first <any>", with commas
// or whitespace as separators.
func NameWildcards(first, last string) []string {
	f, l := Escape(first), Escape(last)
	return []string{
		f + `[,\s]+\S+[,\s]+` + l,
		l + `[,\s]+` + f + `[,\s]+\S+`,
	}
}
