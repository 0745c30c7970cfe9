package rgjson

import (
	"strings"

	"github.com/standardbeagle/idgrep/internal/fold"
)

// Record is a single result line as returned to callers
type Record struct {
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
	IsMatch    bool   `json:"is_match"`
	FilePath   string `json:"file_path"`
}

// Translator turns rg output lines into Records while counting matches.
// It is not safe for concurrent use; each search owns one.
type Translator struct {
	variations []string
	fold       bool
	maxLength  int
	matches    int
}

// NewTranslator returns a translator that folds matched lines around the
// given variations when foldLines is set. A non-positive maxLength selects
// fold.DefaultMaxLength.
func NewTranslator(variations []string, foldLines bool, maxLength int) *Translator {
	if maxLength <= 0 {
		maxLength = fold.DefaultMaxLength
	}
	return &Translator{
		variations: variations,
		fold:       foldLines,
		maxLength:  maxLength,
	}
}

// Translate converts one rg output line. The second result is false for
// malformed lines and for kinds other than match and context; those leave
// the match count unchanged.
func (t *Translator) Translate(line []byte) (Record, bool) {
	ev, err := Decode(line)
	if err != nil {
		return Record{}, false
	}

	content := strings.TrimRight(ev.Text, "\r\n")
	switch ev.Kind {
	case KindMatch:
		t.matches++
		if t.fold {
			content = fold.Fold(content, t.variations, t.maxLength)
		}
		return Record{LineNumber: ev.LineNumber, Content: content, IsMatch: true, FilePath: ev.Path}, true
	case KindContext:
		if t.fold {
			content = fold.Truncate(content, t.maxLength)
		}
		return Record{LineNumber: ev.LineNumber, Content: content, FilePath: ev.Path}, true
	default:
		return Record{}, false
	}
}

// Matches returns the number of match records produced so far
func (t *Translator) Matches() int {
	return t.matches
}
