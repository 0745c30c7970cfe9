// Package variation expands an identifier query into the set of spellings
// that denote the same real-world identifier.
//
// Phone numbers are re-formatted in the common US punctuation styles, names
// are re-ordered (first/last, last/first, with and without middle names and
// initials), and untyped text is classified first and then expanded as a
// phone, a name, or left as a literal.
package variation

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Kind is the declared type of a query
type Kind string

const (
	KindPhone   Kind = "phone"
	KindEmail   Kind = "email"
	KindName    Kind = "name"
	KindGeneric Kind = "generic"
)

// ParseKind converts a wire value into a Kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPhone, KindEmail, KindName, KindGeneric:
		return k, nil
	default:
		return "", fmt.Errorf("unknown query type %q (expected phone, email, name or generic)", s)
	}
}

// Query is a single caller-supplied identifier
type Query struct {
	Text string `json:"query"`
	Kind Kind   `json:"type"`
}

// Set is an exact-string set of variations
type Set map[string]struct{}

// NewSet creates a set holding the given strings
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts a string into the set
func (s Set) Add(item string) {
	s[item] = struct{}{}
}

// Has reports whether the set contains item
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Union adds every member of other to s
func (s Set) Union(other Set) {
	for item := range other {
		s[item] = struct{}{}
	}
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// Shape is the result of classifying untyped text
type Shape int

const (
	ShapeLiteral Shape = iota
	ShapePhone
	ShapeName
)

func (s Shape) String() string {
	switch s {
	case ShapePhone:
		return "phone"
	case ShapeName:
		return "name"
	default:
		return "literal"
	}
}

// Classify decides how generic text should be expanded.
// Mostly-digit text with at least 7 digits is a phone number; two or three
// alphabetic words (periods ignored) are a name; anything else is literal.
func Classify(text string) Shape {
	stripped := strings.TrimSpace(text)
	digits := extractDigits(stripped)
	if n := len([]rune(stripped)); len(digits) >= 7 && n > 0 && float64(len(digits))/float64(n) > 0.5 {
		return ShapePhone
	}
	if looksLikeName(stripped) {
		return ShapeName
	}
	return ShapeLiteral
}

// shapeOf maps a declared kind onto the expansion it receives
func shapeOf(text string, kind Kind) Shape {
	switch kind {
	case KindPhone:
		return ShapePhone
	case KindName:
		return ShapeName
	case KindGeneric:
		return Classify(text)
	default:
		return ShapeLiteral
	}
}

// Generate returns every spelling of text for the declared kind.
// The original text is always a member; unrecognized shapes yield just it.
func Generate(text string, kind Kind) Set {
	set := NewSet(text)
	switch shapeOf(text, kind) {
	case ShapePhone:
		for _, v := range phoneVariants(text) {
			set.Add(v)
		}
	case ShapeName:
		for _, v := range nameVariants(text) {
			set.Add(v)
		}
	}
	return set
}

// IsNameShaped reports whether the query receives name wildcard patterns
func IsNameShaped(q Query) bool {
	if shapeOf(q.Text, q.Kind) != ShapeName {
		return false
	}
	return len(strings.Fields(q.Text)) >= 2
}

// NameParts returns the first and last whitespace-separated tokens
func NameParts(text string) (first, last string, ok bool) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[len(parts)-1], true
}

// phoneVariants renders the first ten digits in the canonical US formats
func phoneVariants(text string) []string {
	digits := extractDigits(text)
	if len(digits) < 10 {
		return nil
	}
	area := string(digits[:3])
	prefix := string(digits[3:6])
	line := string(digits[6:10])

	return []string{
		area + "-" + prefix + "-" + line,
		area + prefix + line,
		"(" + area + ")" + prefix + "-" + line,
		"(" + area + ") " + prefix + "-" + line,
		area + "." + prefix + "." + line,
		area + " " + prefix + "-" + line,
	}
}

// nameVariants re-orders a name with and without its middle part
func nameVariants(text string) []string {
	parts := strings.Fields(text)
	switch {
	case len(parts) == 2:
		first, last := parts[0], parts[1]
		return []string{
			first + " " + last,
			last + ", " + first,
			last + "," + first,
		}
	case len(parts) >= 3:
		first, last := parts[0], parts[len(parts)-1]
		middle := strings.Join(parts[1:len(parts)-1], " ")
		mi := string([]rune(parts[1])[:1])
		return []string{
			// first + last only
			first + " " + last,
			last + ", " + first,
			last + "," + first,
			// space separated with middle
			first + " " + middle + " " + last,
			first + " " + mi + ". " + last,
			first + " " + mi + " " + last,
			last + ", " + first + " " + middle,
			last + ", " + first + " " + mi,
			last + ", " + first + " " + mi + ".",
			// comma separated
			first + "," + middle + "," + last,
			first + "," + mi + "," + last,
			last + "," + first + "," + middle,
			last + "," + first + "," + mi,
		}
	default:
		return nil
	}
}

func looksLikeName(stripped string) bool {
	words := strings.Fields(stripped)
	if len(words) != 2 && len(words) != 3 {
		return false
	}
	for _, w := range words {
		if !isAlpha(strings.ReplaceAll(w, ".", "")) {
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func extractDigits(s string) []rune {
	digits := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	return digits
}
