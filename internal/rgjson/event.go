// Package rgjson decodes the line-delimited JSON emitted by `rg --json`
// and turns it into result records.
package rgjson

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Kind is the discriminator of an rg JSON message
type Kind string

const (
	KindBegin   Kind = "begin"
	KindMatch   Kind = "match"
	KindContext Kind = "context"
	KindEnd     Kind = "end"
	KindSummary Kind = "summary"
)

// RawEvent is one decoded rg message. Path and Text are empty for kinds that
// do not carry them.
type RawEvent struct {
	Kind       Kind
	Path       string
	LineNumber int
	Text       string
}

// arbitraryData is rg's encoding of possibly non-UTF-8 data: either
// {"text": "..."} or {"bytes": "<base64>"}
type arbitraryData struct {
	Text  *string `json:"text,omitempty"`
	Bytes *string `json:"bytes,omitempty"`
}

func (d *arbitraryData) value() (string, error) {
	if d == nil {
		return "", nil
	}
	if d.Text != nil {
		return *d.Text, nil
	}
	if d.Bytes != nil {
		raw, err := base64.StdEncoding.DecodeString(*d.Bytes)
		if err != nil {
			return "", fmt.Errorf("invalid base64 payload: %w", err)
		}
		return string(raw), nil
	}
	return "", nil
}

type message struct {
	Type Kind `json:"type"`
	Data struct {
		Path       *arbitraryData `json:"path"`
		Lines      *arbitraryData `json:"lines"`
		LineNumber *int           `json:"line_number"`
	} `json:"data"`
}

// Decode parses a single rg JSON line
func Decode(line []byte) (RawEvent, error) {
	var msg message
	if err := json.Unmarshal(line, &msg); err != nil {
		return RawEvent{}, fmt.Errorf("decode rg event: %w", err)
	}
	if msg.Type == "" {
		return RawEvent{}, fmt.Errorf("decode rg event: missing type")
	}

	path, err := msg.Data.Path.value()
	if err != nil {
		return RawEvent{}, fmt.Errorf("decode rg path: %w", err)
	}
	text, err := msg.Data.Lines.value()
	if err != nil {
		return RawEvent{}, fmt.Errorf("decode rg lines: %w", err)
	}

	ev := RawEvent{Kind: msg.Type, Path: path, Text: text}
	if msg.Data.LineNumber != nil {
		ev.LineNumber = *msg.Data.LineNumber
	}
	return ev, nil
}
