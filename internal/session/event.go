package session

import (
	"encoding/json"
	"fmt"

	"github.com/standardbeagle/idgrep/internal/rgjson"
)

// Event names on the stream. Every stream carries exactly one preview,
// then match/context lines, then exactly one done.
const (
	EventPreview = "preview"
	EventMatch   = "match"
	EventContext = "context"
	EventDone    = "done"
)

// Event is one record of the NDJSON stream
type Event interface {
	Name() string
}

// PreviewEvent is emitted once the engine is running
type PreviewEvent struct {
	Event           string   `json:"event"`
	CommandExecuted string   `json:"command_executed"`
	Variations      []string `json:"variations"`
	SessionID       string   `json:"session_id"`
}

func (e *PreviewEvent) Name() string { return EventPreview }

// LineEvent carries one result line and the running match count
type LineEvent struct {
	Event string `json:"event"`
	rgjson.Record
	Count int `json:"count"`
}

func (e *LineEvent) Name() string { return e.Event }

// DoneEvent closes a stream that ran to completion
type DoneEvent struct {
	Event           string   `json:"event"`
	TotalMatches    int      `json:"total_matches"`
	OriginalQuery   []string `json:"original_query"`
	Variations      []string `json:"variations"`
	CommandExecuted string   `json:"command_executed"`
	SessionID       string   `json:"session_id"`
}

func (e *DoneEvent) Name() string { return EventDone }

// DecodeEvent parses one stream line into its concrete event type
func DecodeEvent(line []byte) (Event, error) {
	var head struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, fmt.Errorf("decode stream event: %w", err)
	}

	var ev Event
	switch head.Event {
	case EventPreview:
		ev = &PreviewEvent{}
	case EventMatch, EventContext:
		ev = &LineEvent{}
	case EventDone:
		ev = &DoneEvent{}
	default:
		return nil, fmt.Errorf("decode stream event: unknown event %q", head.Event)
	}
	if err := json.Unmarshal(line, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.Event, err)
	}
	return ev, nil
}

// Sink receives stream events in order. An error means the consumer is
// gone and the search is abandoned.
type Sink interface {
	Emit(Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event) error

func (f SinkFunc) Emit(ev Event) error { return f(ev) }

// Outcome is the batch form of a completed search
type Outcome struct {
	Matches         []rgjson.Record `json:"matches"`
	TotalMatches    int             `json:"total_matches"`
	OriginalQuery   []string        `json:"original_query"`
	Variations      []string        `json:"variations"`
	CommandExecuted string          `json:"command_executed"`
	SessionID       string          `json:"session_id"`
}

// collector buffers a stream into an Outcome
type collector struct {
	outcome Outcome
}

func newCollector() *collector {
	return &collector{outcome: Outcome{Matches: []rgjson.Record{}}}
}

func (c *collector) Emit(ev Event) error {
	switch e := ev.(type) {
	case *PreviewEvent:
		c.outcome.SessionID = e.SessionID
	case *LineEvent:
		c.outcome.Matches = append(c.outcome.Matches, e.Record)
	case *DoneEvent:
		c.outcome.TotalMatches = e.TotalMatches
		c.outcome.OriginalQuery = e.OriginalQuery
		c.outcome.Variations = e.Variations
		c.outcome.CommandExecuted = e.CommandExecuted
		c.outcome.SessionID = e.SessionID
	}
	return nil
}
