package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/idgrep/internal/pathinfo"
	"github.com/standardbeagle/idgrep/internal/server"
	"github.com/standardbeagle/idgrep/internal/session"
	"github.com/standardbeagle/idgrep/testhelpers"
)

func TestMain(m *testing.M) {
	testhelpers.RunFakeEngineIfRequested()
	os.Exit(m.Run())
}

// runApp runs the CLI in process and returns what it printed
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"idgrep"}, args...))
	return stdout.String(), err
}

// projectDir returns an isolated search root with no global config
func projectDir(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func TestExpandCommand(t *testing.T) {
	t.Run("phone", func(t *testing.T) {
		out, err := runApp(t, "expand", "--type", "phone", "555-123-4567")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"(555) 123-4567",
			"(555)123-4567",
			"555 123-4567",
			"555-123-4567",
			"555.123.4567",
			"5551234567",
		}, strings.Split(strings.TrimSpace(out), "\n"))
	})

	t.Run("name prints wildcards", func(t *testing.T) {
		out, err := runApp(t, "expand", "-t", "name", "John Smith")
		require.NoError(t, err)
		assert.Contains(t, out, "Smith, John\n")
		assert.Contains(t, out, `/John[,\s]+\S+[,\s]+Smith/`)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := runApp(t, "expand")
		assert.Error(t, err)
		_, err = runApp(t, "expand", "--type", "fax", "x")
		assert.Error(t, err)
		_, err = runApp(t, "expand", " ")
		assert.Error(t, err)
	})
}

func TestPreviewCommand(t *testing.T) {
	root := projectDir(t)

	out, err := runApp(t, "--root", root, "--rg", "/opt/rg", "--color", "never",
		"preview", "--phone", "555-123-4567", "-C", "2", "--exclude", "*.log")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "/opt/rg --json -i"), out)
	assert.Contains(t, out, "-C 2")
	assert.Contains(t, out, "-g !*.log")
	assert.Contains(t, out, "  (555) 123-4567\n")

	out, err = runApp(t, "--root", root, "preview", "--json", "--name", "Jane Doe")
	require.NoError(t, err)
	var resp server.PreviewResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp.Variations, "Doe, Jane")
}

func TestPreviewCommand_RequiresQuery(t *testing.T) {
	root := projectDir(t)
	_, err := runApp(t, "--root", root, "preview")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one query")
}

func TestSearchCommand_Local(t *testing.T) {
	root := projectDir(t)
	testhelpers.FakeScript(t, 0,
		testhelpers.RGContext("a.csv", 1, "name,phone"),
		testhelpers.RGMatch("a.csv", 2, "Jane,(555) 123-4567"),
	)

	out, err := runApp(t, "--root", root, "--rg", os.Args[0], "--color", "never",
		"search", "--type", "phone", "555-123-4567")
	require.NoError(t, err)
	assert.Equal(t, "a.csv-1-name,phone\na.csv:2:Jane,(555) 123-4567\n1 match for \"555-123-4567\"\n", out)
}

func TestSearchCommand_NoMatches(t *testing.T) {
	root := projectDir(t)
	testhelpers.FakeScript(t, 1)

	_, err := runApp(t, "--root", root, "--rg", os.Args[0], "search", "nobody@example.com")
	require.ErrorIs(t, err, errNoMatches)
	assert.Equal(t, 1, exitCode(err))
}

func TestSearchCommand_JSON(t *testing.T) {
	root := projectDir(t)
	testhelpers.FakeScript(t, 0, testhelpers.RGMatch("b.txt", 9, "a@b.com"))

	out, err := runApp(t, "--root", root, "--rg", os.Args[0], "search", "--json", "--email", "a@b.com")
	require.NoError(t, err)

	var names []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		ev, err := session.DecodeEvent(scanner.Bytes())
		require.NoError(t, err)
		names = append(names, ev.Name())
	}
	assert.Equal(t, []string{session.EventPreview, session.EventMatch, session.EventDone}, names)
}

func TestSearchCommand_EngineFailure(t *testing.T) {
	root := projectDir(t)
	testhelpers.FakeScript(t, 101)

	_, err := runApp(t, "--root", root, "--rg", os.Args[0], "search", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errNoMatches)
	assert.Equal(t, 2, exitCode(err))
}

func TestSearchCommand_Remote(t *testing.T) {
	root := projectDir(t)
	cfg := testhelpers.NewTestConfigBuilder(t).WithFakeEngine().Build()
	srv := server.NewSearchServer(cfg)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	testhelpers.FakeScript(t, 0, testhelpers.RGMatch("remote.txt", 3, "call 555.123.4567"))

	out, err := runApp(t, "--root", root, "--listen", srv.Addr(), "--color", "never",
		"search", "--remote", "--phone", "555-123-4567")
	require.NoError(t, err)
	assert.Contains(t, out, "remote.txt:3:call 555.123.4567\n")
	assert.Contains(t, out, "1 match for")
}

func TestPathInfoCommand(t *testing.T) {
	root := projectDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("0123456789"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.log"), []byte("01234"), 0o644))

	out, err := runApp(t, "--root", root, "pathinfo", "--json", "--exclude", "*.log")
	require.NoError(t, err)

	var info pathinfo.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, int64(10), info.TotalSizeBytes)
	assert.Equal(t, 1, info.FileCount)
	assert.Equal(t, root, info.ResolvedPath)

	out, err = runApp(t, "--root", root, "--color", "never", "pathinfo")
	require.NoError(t, err)
	assert.Contains(t, out, "files: 2")

	_, err = runApp(t, "--root", root, "pathinfo", "/proc")
	assert.Error(t, err)
}

func TestEnvFile(t *testing.T) {
	root := projectDir(t)
	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("IDGREP_MAX_COUNT=7\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("IDGREP_MAX_COUNT") })

	out, err := runApp(t, "--env-file", envPath, "--root", root, "preview", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "--max-count 7")

	_, err = runApp(t, "--env-file", filepath.Join(root, "missing.env"), "--root", root, "preview", "x")
	assert.Error(t, err)
}

func TestConfigFlag(t *testing.T) {
	root := projectDir(t)
	cfgPath := filepath.Join(root, "alt.kdl")
	require.NoError(t, os.WriteFile(cfgPath, []byte("search {\n  binary \"/custom/rg\"\n  max_count 3\n}\n"), 0o644))

	out, err := runApp(t, "--config", cfgPath, "--root", root, "preview", "x")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "/custom/rg "), out)
	assert.Contains(t, out, "--max-count 3")

	_, err = runApp(t, "--config", filepath.Join(root, "nope.kdl"), "preview", "x")
	assert.Error(t, err)
}

func TestShutdownCommand_NoServer(t *testing.T) {
	root := projectDir(t)
	_, err := runApp(t, "--root", root, "--listen", "unix:"+filepath.Join(root, "none.sock"), "shutdown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no server is running")
}

func TestShutdownCommand(t *testing.T) {
	root := projectDir(t)
	cfg := testhelpers.NewTestConfigBuilder(t).Build()
	srv := server.NewSearchServer(cfg)
	require.NoError(t, srv.Start())

	// Stands in for serverCommand, which shuts down once Done closes
	stopped := make(chan error, 1)
	go func() {
		<-srv.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopped <- srv.Shutdown(ctx)
	}()

	out, err := runApp(t, "--root", root, "--listen", srv.Addr(), "shutdown")
	require.NoError(t, err)
	assert.Contains(t, out, "Server shut down successfully")
	require.NoError(t, <-stopped)
}
