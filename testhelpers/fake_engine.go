package testhelpers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// The test binary doubles as a fake engine: a config built WithFakeEngine
// runs os.Args[0], and TestMain hands control to RunFakeEngineIfRequested.
const (
	FakeEngineEnv = "IDGREP_FAKE_ENGINE" // mode: script or hang
	FakeOutputEnv = "IDGREP_FAKE_OUTPUT" // file whose content is written to stdout
	FakeExitEnv   = "IDGREP_FAKE_EXIT"   // exit status for script mode
	FakeArgsEnv   = "IDGREP_FAKE_ARGS"   // file receiving the argv as JSON
	FakeStderrEnv = "IDGREP_FAKE_STDERR" // text written to stderr
)

// Fake engine modes
const (
	ModeScript = "script"
	ModeHang   = "hang"
)

// RunFakeEngineIfRequested never returns when the process was started as
// a fake engine. Call it first in TestMain.
func RunFakeEngineIfRequested() {
	if mode := os.Getenv(FakeEngineEnv); mode != "" {
		os.Exit(runFakeEngine(mode, os.Args[1:]))
	}
}

func runFakeEngine(mode string, args []string) int {
	if path := os.Getenv(FakeArgsEnv); path != "" {
		data, _ := json.Marshal(args)
		_ = os.WriteFile(path, data, 0o644)
	}
	if msg := os.Getenv(FakeStderrEnv); msg != "" {
		fmt.Fprint(os.Stderr, msg)
	}

	switch mode {
	case ModeHang:
		fmt.Println(`{"type":"begin","data":{"path":{"text":"slow.txt"}}}`)
		fmt.Println(RGMatch("slow.txt", 1, "first hit"))
		time.Sleep(time.Hour)
		return 0
	default:
		if path := os.Getenv(FakeOutputEnv); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 2
			}
			os.Stdout.Write(data)
		}
		code, _ := strconv.Atoi(os.Getenv(FakeExitEnv))
		return code
	}
}

// FakeScript makes the fake engine print lines and exit with code
func FakeScript(t *testing.T, code int, lines ...string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine-output.ndjson")
	body := ""
	if len(lines) > 0 {
		body = strings.Join(lines, "\n") + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv(FakeEngineEnv, ModeScript)
	t.Setenv(FakeOutputEnv, path)
	t.Setenv(FakeExitEnv, strconv.Itoa(code))
}

// FakeHang makes the fake engine print one match and then block
func FakeHang(t *testing.T) {
	t.Helper()
	t.Setenv(FakeEngineEnv, ModeHang)
}

// CaptureArgs records the fake engine's argv; the returned func reads it
func CaptureArgs(t *testing.T) func() []string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "argv.json")
	t.Setenv(FakeArgsEnv, path)
	return func() []string {
		t.Helper()
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil
		}
		require.NoError(t, err)
		var argv []string
		require.NoError(t, json.Unmarshal(data, &argv))
		return argv
	}
}

// RGMatch returns an engine match record
func RGMatch(path string, line int, text string) string {
	return rgRecord("match", path, line, text)
}

// RGContext returns an engine context record
func RGContext(path string, line int, text string) string {
	return rgRecord("context", path, line, text)
}

// RGBegin returns an engine begin record
func RGBegin(path string) string {
	return fmt.Sprintf(`{"type":"begin","data":{"path":{"text":%s}}}`, quote(path))
}

// RGEnd returns an engine end record
func RGEnd(path string) string {
	return fmt.Sprintf(`{"type":"end","data":{"path":{"text":%s}}}`, quote(path))
}

func rgRecord(kind, path string, line int, text string) string {
	return fmt.Sprintf(`{"type":%q,"data":{"path":{"text":%s},"lines":{"text":%s},"line_number":%d,"absolute_offset":0,"submatches":[]}}`,
		kind, quote(path), quote(text+"\n"), line)
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
