// Package session runs one search against the engine and relays its output
// as an ordered event stream.
//
// A session moves Starting -> Running -> Draining -> Done, or to Failed from
// any of the first three. The engine is spawned before the preview event is
// emitted, so a spawn failure produces an error and no events at all.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/standardbeagle/idgrep/internal/config"
	"github.com/standardbeagle/idgrep/internal/debug"
	"github.com/standardbeagle/idgrep/internal/errors"
	"github.com/standardbeagle/idgrep/internal/invocation"
	"github.com/standardbeagle/idgrep/internal/rgjson"
)

// ErrCancelled is returned when the consumer went away or the context was
// cancelled before the stream completed. It is not a search failure.
var ErrCancelled = stderrors.New("search cancelled")

// ErrAlreadyStarted is returned when a session is streamed twice
var ErrAlreadyStarted = stderrors.New("session already started")

// State is the lifecycle position of a session
type State int

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is a single search. It is used once.
type Session struct {
	ID string

	req     invocation.Request
	inv     *invocation.Invocation
	command string

	foldLines     bool
	maxLineLength int
	waitDelay     time.Duration

	mu      sync.Mutex
	state   State
	started bool
	pid     int
}

// New validates req against cfg and builds its invocation. Rejected paths
// and malformed requests fail here, before any process exists.
func New(cfg *config.Config, req *invocation.Request) (*Session, error) {
	inv, err := invocation.NewBuilder(cfg).Build(req)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:            uuid.NewString(),
		req:           *req,
		inv:           inv,
		command:       invocation.Render(inv),
		foldLines:     req.FoldLines(),
		maxLineLength: cfg.Search.MaxLineLength,
		waitDelay:     defaultWaitDelay,
	}, nil
}

// Invocation returns the command the session runs
func (s *Session) Invocation() *invocation.Invocation { return s.inv }

// Command returns the display form of the command
func (s *Session) Command() string { return s.command }

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PID returns the engine process id, or 0 before it was spawned
func (s *Session) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	debug.LogSession("%s: %s -> %s", s.ID, prev, next)
}

// Stream runs the search and emits events to sink in order: one preview,
// a line event per match or context record, and one done. If sink fails or
// ctx is cancelled the engine is killed and ErrCancelled is returned
// without a done event.
func (s *Session) Stream(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	proc, err := startEngine(ctx, s.inv, s.waitDelay)
	if err != nil {
		s.setState(StateFailed)
		return errors.NewSpawnError(s.inv.Binary, err)
	}
	defer proc.close()

	s.mu.Lock()
	s.pid = proc.pid()
	s.mu.Unlock()
	debug.LogSession("%s: spawned pid %d for %s", s.ID, proc.pid(), s.inv.FingerprintHex())

	preview := &PreviewEvent{
		Event:           EventPreview,
		CommandExecuted: s.command,
		Variations:      s.inv.Variations,
		SessionID:       s.ID,
	}
	if err := sink.Emit(preview); err != nil {
		return s.abandon(err)
	}
	s.setState(StateRunning)

	translator := rgjson.NewTranslator(s.inv.Variations, s.foldLines, s.maxLineLength)
	for {
		if ctx.Err() != nil {
			return s.abandon(ctx.Err())
		}
		line, err := proc.readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return s.abandon(ctx.Err())
			}
			s.setState(StateFailed)
			return errors.NewSearchError(s.command, fmt.Errorf("reading engine output: %w", err))
		}

		rec, ok := translator.Translate(line)
		if !ok {
			continue
		}
		kind := EventContext
		if rec.IsMatch {
			kind = EventMatch
		}
		if err := sink.Emit(&LineEvent{Event: kind, Record: rec, Count: translator.Matches()}); err != nil {
			return s.abandon(err)
		}
	}

	s.setState(StateDraining)
	code, err := proc.wait()
	if ctx.Err() != nil {
		return s.abandon(ctx.Err())
	}
	switch {
	case err != nil:
		s.setState(StateFailed)
		return errors.NewSearchError(s.command, err)
	case code == 1:
		// no matches
	case code == 2:
		debug.LogSession("%s: engine reported errors: %s", s.ID, proc.stderr.String())
	case code != 0:
		s.setState(StateFailed)
		return errors.NewSearchError(s.command, fmt.Errorf("engine exited with status %d: %s", code, proc.stderr.String()))
	}

	done := &DoneEvent{
		Event:           EventDone,
		TotalMatches:    translator.Matches(),
		OriginalQuery:   s.req.QueryTexts(),
		Variations:      s.inv.Variations,
		CommandExecuted: s.command,
		SessionID:       s.ID,
	}
	if err := sink.Emit(done); err != nil {
		return s.abandon(err)
	}
	s.setState(StateDone)
	return nil
}

// abandon records a consumer or context cancellation. The deferred close
// in Stream kills and reaps the engine.
func (s *Session) abandon(cause error) error {
	debug.LogSession("%s: abandoned: %v", s.ID, cause)
	s.setState(StateFailed)
	return ErrCancelled
}

// Collect runs the search to completion and returns the buffered result
func (s *Session) Collect(ctx context.Context) (*Outcome, error) {
	c := newCollector()
	if err := s.Stream(ctx, c); err != nil {
		return nil, err
	}
	return &c.outcome, nil
}
