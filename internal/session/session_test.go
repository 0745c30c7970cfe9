package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/idgrep/internal/config"
	"github.com/standardbeagle/idgrep/internal/errors"
	"github.com/standardbeagle/idgrep/internal/invocation"
	"github.com/standardbeagle/idgrep/internal/variation"
	"github.com/standardbeagle/idgrep/testhelpers"
)

func fakeConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	b := testhelpers.NewTestConfigBuilder(t).WithFakeEngine()
	return b.Build(), b.Root()
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Emit(ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) names() []string {
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Name()
	}
	return out
}

func phoneRequest() *invocation.Request {
	return &invocation.Request{Queries: []variation.Query{{Text: "555-123-4567", Kind: variation.KindPhone}}}
}

func TestStream_EventOrderAndCounts(t *testing.T) {
	cfg, _ := fakeConfig(t)
	testhelpers.FakeScript(t, 0,
		testhelpers.RGBegin("contacts.csv"),
		testhelpers.RGContext("contacts.csv", 1, "name,phone"),
		testhelpers.RGMatch("contacts.csv", 2, "Jane,(555) 123-4567"),
		"this is not json",
		testhelpers.RGContext("contacts.csv", 3, "Bob,555-000-0000"),
		testhelpers.RGMatch("contacts.csv", 9, "Joe,555.123.4567"),
		testhelpers.RGEnd("contacts.csv"),
		`{"type":"summary","data":{}}`,
	)

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)
	assert.Equal(t, StateStarting, s.State())

	sink := &recordingSink{}
	require.NoError(t, s.Stream(context.Background(), sink))
	assert.Equal(t, StateDone, s.State())

	assert.Equal(t, []string{EventPreview, EventContext, EventMatch, EventContext, EventMatch, EventDone}, sink.names())

	preview := sink.events[0].(*PreviewEvent)
	assert.Equal(t, s.Command(), preview.CommandExecuted)
	assert.Equal(t, s.Invocation().Variations, preview.Variations)
	assert.Equal(t, s.ID, preview.SessionID)

	counts := []int{}
	for _, ev := range sink.events[1:5] {
		counts = append(counts, ev.(*LineEvent).Count)
	}
	assert.Equal(t, []int{0, 1, 1, 2}, counts)

	match := sink.events[2].(*LineEvent)
	assert.Equal(t, "Jane,(555) 123-4567", match.Content)
	assert.True(t, match.IsMatch)
	assert.Equal(t, 2, match.LineNumber)
	assert.Equal(t, "contacts.csv", match.FilePath)

	done := sink.events[5].(*DoneEvent)
	assert.Equal(t, 2, done.TotalMatches)
	assert.Equal(t, []string{"555-123-4567"}, done.OriginalQuery)
	assert.Equal(t, preview.Variations, done.Variations)
	assert.Equal(t, s.Command(), done.CommandExecuted)
}

func TestStream_PassesBuiltArguments(t *testing.T) {
	cfg, root := fakeConfig(t)
	testhelpers.FakeScript(t, 1)
	argv := testhelpers.CaptureArgs(t)

	s, err := New(cfg, &invocation.Request{Queries: []variation.Query{{Text: "John Smith", Kind: variation.KindName}}})
	require.NoError(t, err)
	require.NoError(t, s.Stream(context.Background(), &recordingSink{}))

	args := argv()
	assert.Equal(t, s.Invocation().Args, args)
	assert.Equal(t, root, args[len(args)-1])
	assert.Contains(t, args, "Smith, John")
	assert.Contains(t, args, `John[,\s]+\S+[,\s]+Smith`)
}

func TestStream_PhoneDigitsOnlyLine(t *testing.T) {
	cfg, _ := fakeConfig(t)
	testhelpers.FakeScript(t, 0, testhelpers.RGMatch("notes.txt", 3, "Contact: 5551234567 ext 2"))
	argv := testhelpers.CaptureArgs(t)

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)
	out, err := s.Collect(context.Background())
	require.NoError(t, err)

	args := argv()
	require.NotEmpty(t, args)
	assert.Contains(t, args, "5551234567", "the bare digit form is passed as a pattern")
	require.Equal(t, 1, out.TotalMatches)
	assert.Equal(t, "Contact: 5551234567 ext 2", out.Matches[0].Content)
	assert.Equal(t, []string{"555-123-4567"}, out.OriginalQuery)
}

func TestStream_NoMatchesIsNotAFailure(t *testing.T) {
	cfg, _ := fakeConfig(t)
	testhelpers.FakeScript(t, 1)

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)

	sink := &recordingSink{}
	require.NoError(t, s.Stream(context.Background(), sink))
	assert.Equal(t, []string{EventPreview, EventDone}, sink.names())
	assert.Equal(t, 0, sink.events[1].(*DoneEvent).TotalMatches)
}

func TestStream_PartialErrorsStillComplete(t *testing.T) {
	cfg, _ := fakeConfig(t)
	testhelpers.FakeScript(t, 2, testhelpers.RGMatch("ok.txt", 4, "555-123-4567"))
	t.Setenv(testhelpers.FakeStderrEnv, "rg: locked.txt: Permission denied (os error 13)\n")

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)

	sink := &recordingSink{}
	require.NoError(t, s.Stream(context.Background(), sink))
	assert.Equal(t, []string{EventPreview, EventMatch, EventDone}, sink.names())
}

func TestStream_EngineCrash(t *testing.T) {
	cfg, _ := fakeConfig(t)
	testhelpers.FakeScript(t, 101, testhelpers.RGMatch("a.txt", 1, "555-123-4567"))

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)

	sink := &recordingSink{}
	err = s.Stream(context.Background(), sink)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeSearch, errors.TypeOf(err))
	assert.Equal(t, StateFailed, s.State())
	assert.NotContains(t, sink.names(), EventDone)
}

func TestStream_SpawnFailureEmitsNothing(t *testing.T) {
	cfg, _ := fakeConfig(t)
	cfg.Search.Binary = filepath.Join(t.TempDir(), "no-such-engine")

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)

	sink := &recordingSink{}
	err = s.Stream(context.Background(), sink)
	require.Error(t, err)

	var spawnErr *errors.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, cfg.Search.Binary, spawnErr.Binary)
	assert.Empty(t, sink.events)
	assert.Equal(t, StateFailed, s.State())
	assert.Zero(t, s.PID())
}

func TestNew_RejectsPathBeforeSpawning(t *testing.T) {
	cfg, _ := fakeConfig(t)
	argv := testhelpers.CaptureArgs(t)

	req := phoneRequest()
	req.SearchPath = "missing/dir"
	s, err := New(cfg, req)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, errors.ErrorTypePathNotFound, errors.TypeOf(err))

	assert.Nil(t, argv(), "engine must never run")
}

func TestStream_ConsumerGoneKillsEngine(t *testing.T) {
	cfg, _ := fakeConfig(t)
	testhelpers.FakeHang(t)

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)

	gone := stderrors.New("client disconnected")
	var seen []string
	sink := SinkFunc(func(ev Event) error {
		seen = append(seen, ev.Name())
		if ev.Name() == EventMatch {
			return gone
		}
		return nil
	})

	err = s.Stream(context.Background(), sink)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, []string{EventPreview, EventMatch}, seen)
	assert.Equal(t, StateFailed, s.State())
	assert.NotZero(t, s.PID())
	assertProcessGone(t, s.PID())
}

func TestStream_ContextCancel(t *testing.T) {
	cfg, _ := fakeConfig(t)
	testhelpers.FakeHang(t)

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	wrapped := SinkFunc(func(ev Event) error {
		if ev.Name() == EventMatch {
			cancel()
		}
		return sink.Emit(ev)
	})

	err = s.Stream(ctx, wrapped)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NotContains(t, sink.names(), EventDone)
	assertProcessGone(t, s.PID())
}

func TestStream_OnlyOnce(t *testing.T) {
	cfg, _ := fakeConfig(t)
	testhelpers.FakeScript(t, 1)

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)
	require.NoError(t, s.Stream(context.Background(), &recordingSink{}))
	assert.ErrorIs(t, s.Stream(context.Background(), &recordingSink{}), ErrAlreadyStarted)
}

func TestCollect(t *testing.T) {
	cfg, _ := fakeConfig(t)
	long := strings.Repeat("x", 1500) + "555-123-4567" + strings.Repeat("y", 1500)
	testhelpers.FakeScript(t, 0,
		testhelpers.RGMatch("big.txt", 1, long),
		testhelpers.RGContext("big.txt", 2, long),
	)

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)

	out, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, 1, out.TotalMatches)
	assert.Equal(t, s.ID, out.SessionID)
	assert.Equal(t, s.Command(), out.CommandExecuted)
	assert.Equal(t, []string{"555-123-4567"}, out.OriginalQuery)

	assert.Contains(t, out.Matches[0].Content, "555-123-4567")
	assert.LessOrEqual(t, len(out.Matches[0].Content), 1006)
	assert.Equal(t, strings.Repeat("x", 1000)+"...", out.Matches[1].Content)
}

func TestCollect_FoldDisabled(t *testing.T) {
	cfg, _ := fakeConfig(t)
	long := strings.Repeat("z", 3000)
	testhelpers.FakeScript(t, 0, testhelpers.RGContext("big.txt", 1, long))

	req := phoneRequest()
	off := false
	req.Fold = &off
	s, err := New(cfg, req)
	require.NoError(t, err)

	out, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, long, out.Matches[0].Content)
}

func TestCollect_EmptyMatchesEncodeAsArray(t *testing.T) {
	cfg, _ := fakeConfig(t)
	testhelpers.FakeScript(t, 1)

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)
	out, err := s.Collect(context.Background())
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"matches":[]`)
}

func TestDecodeEvent(t *testing.T) {
	line := []byte(`{"event":"match","line_number":3,"content":"x","is_match":true,"file_path":"a","count":7}`)
	ev, err := DecodeEvent(line)
	require.NoError(t, err)
	le, ok := ev.(*LineEvent)
	require.True(t, ok)
	assert.Equal(t, 3, le.LineNumber)
	assert.Equal(t, 7, le.Count)
	assert.Equal(t, EventMatch, le.Name())

	ev, err = DecodeEvent([]byte(`{"event":"done","total_matches":2,"original_query":["a"]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, ev.(*DoneEvent).TotalMatches)

	_, err = DecodeEvent([]byte(`{"event":"bogus"}`))
	assert.Error(t, err)
	_, err = DecodeEvent([]byte(`nope`))
	assert.Error(t, err)
}

func TestLineEventWireFormat(t *testing.T) {
	ev := &LineEvent{Event: EventContext, Count: 4}
	ev.LineNumber = 10
	ev.Content = "ctx"
	ev.FilePath = "f.txt"

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"context","line_number":10,"content":"ctx","is_match":false,"file_path":"f.txt","count":4}`, string(data))
}

// Real engine scenarios run only where rg is installed
func requireRipgrep(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("rg")
	if err != nil {
		t.Skip("ripgrep (rg) not installed")
	}
	return path
}

func TestRipgrep_PhoneScenario(t *testing.T) {
	rg := requireRipgrep(t)
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "contacts.txt"),
		[]byte("header\nCall me at (555) 123-4567 tomorrow\nfooter\n"), 0o644))

	cfg := config.Default()
	cfg.Search.Root = root
	cfg.Search.Binary = rg

	s, err := New(cfg, &invocation.Request{
		Queries: []variation.Query{{Text: "5551234567", Kind: variation.KindPhone}},
	})
	require.NoError(t, err)

	sink := &recordingSink{}
	require.NoError(t, s.Stream(context.Background(), sink))

	names := sink.names()
	require.GreaterOrEqual(t, len(names), 3)
	assert.Equal(t, EventPreview, names[0])
	assert.Equal(t, EventDone, names[len(names)-1])
	assert.Contains(t, names, EventMatch)
	assert.Contains(t, names, EventContext)

	var match *LineEvent
	for _, ev := range sink.events {
		if le, ok := ev.(*LineEvent); ok && le.IsMatch {
			match = le
		}
	}
	require.NotNil(t, match)
	assert.Equal(t, 2, match.LineNumber)
	assert.Equal(t, "Call me at (555) 123-4567 tomorrow", match.Content)
	assert.Equal(t, 1, sink.events[len(sink.events)-1].(*DoneEvent).TotalMatches)
}

func TestRipgrep_PhoneDigitsOnlyScenario(t *testing.T) {
	rg := requireRipgrep(t)
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"),
		[]byte("Contact: 5551234567 ext 2\n"), 0o644))

	cfg := config.Default()
	cfg.Search.Root = root
	cfg.Search.Binary = rg

	s, err := New(cfg, phoneRequest())
	require.NoError(t, err)

	out, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.TotalMatches)
	assert.Equal(t, 1, out.Matches[0].LineNumber)
	assert.Equal(t, "Contact: 5551234567 ext 2", out.Matches[0].Content)
	assert.True(t, out.Matches[0].IsMatch)
}

func TestRipgrep_NameScenario(t *testing.T) {
	rg := requireRipgrep(t)
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "people.csv"),
		[]byte("id,name\n1,\"Smith, John Q.\"\n2,Jane Doe\n3,Smith John Q\n4,John R. Smith\n"), 0o644))

	cfg := config.Default()
	cfg.Search.Root = root
	cfg.Search.Binary = rg

	zero := 0
	s, err := New(cfg, &invocation.Request{
		Queries: []variation.Query{{Text: "John Smith", Kind: variation.KindName}},
		Context: &zero,
	})
	require.NoError(t, err)

	out, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, out.TotalMatches)

	lines := make([]int, len(out.Matches))
	for i, m := range out.Matches {
		lines[i] = m.LineNumber
		assert.True(t, m.IsMatch)
	}
	assert.Equal(t, []int{2, 4, 5}, lines)
	assert.Contains(t, out.Matches[0].Content, "Smith, John Q.")

	// Neither line holds a literal spelling; only the wildcards reach them
	for _, m := range out.Matches[1:] {
		for _, v := range s.Invocation().Variations {
			assert.NotContains(t, strings.ToLower(m.Content), strings.ToLower(v))
		}
	}
	assert.Equal(t, "3,Smith John Q", out.Matches[1].Content)
	assert.Equal(t, "4,John R. Smith", out.Matches[2].Content)
}
