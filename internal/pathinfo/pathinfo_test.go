package pathinfo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/idgrep/internal/config"
	"github.com/standardbeagle/idgrep/internal/errors"
	"github.com/standardbeagle/idgrep/internal/security"
)

func writeSized(t *testing.T, root, rel string, size int) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, make([]byte, size), 0o644))
}

func testOptions(t *testing.T) (Options, string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return Options{Paths: security.NewPathValidator(root, nil)}, root
}

func TestStat_Directory(t *testing.T) {
	opts, root := testOptions(t)
	writeSized(t, root, "a.txt", 100)
	writeSized(t, root, "sub/b.csv", 250)
	writeSized(t, root, "sub/deeper/c.log", 50)

	info, err := Stat(".", opts)
	require.NoError(t, err)
	assert.Equal(t, root, info.ResolvedPath)
	assert.Equal(t, int64(400), info.TotalSizeBytes)
	assert.Equal(t, 3, info.FileCount)
	assert.Equal(t, 0.0, info.EstSearchSeconds)
}

func TestStat_SingleFile(t *testing.T) {
	opts, root := testOptions(t)
	writeSized(t, root, "one.bin", 4096)

	info, err := Stat("one.bin", opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "one.bin"), info.ResolvedPath)
	assert.Equal(t, int64(4096), info.TotalSizeBytes)
	assert.Equal(t, 1, info.FileCount)
}

func TestStat_EmptyDirectory(t *testing.T) {
	opts, _ := testOptions(t)

	info, err := Stat(".", opts)
	require.NoError(t, err)
	assert.Zero(t, info.TotalSizeBytes)
	assert.Zero(t, info.FileCount)
	assert.Zero(t, info.EstSearchSeconds)
}

func TestStat_Estimate(t *testing.T) {
	opts, root := testOptions(t)
	opts.DiskSpeedMBps = 1
	writeSized(t, root, "big.dat", 3*1024*1024+512*1024)

	info, err := Stat(".", opts)
	require.NoError(t, err)
	assert.Equal(t, 3.5, info.EstSearchSeconds)

	opts.DiskSpeedMBps = 3
	info, err = Stat(".", opts)
	require.NoError(t, err)
	assert.Equal(t, 1.17, info.EstSearchSeconds)
}

func TestStat_Excludes(t *testing.T) {
	opts, root := testOptions(t)
	writeSized(t, root, "keep.txt", 10)
	writeSized(t, root, "skip.log", 20)
	writeSized(t, root, "vendor/lib.txt", 30)
	writeSized(t, root, "nested/more.log", 40)

	opts.Exclude = []string{"*.log", "vendor/**"}
	info, err := Stat(".", opts)
	require.NoError(t, err)
	assert.Equal(t, 1, info.FileCount)
	assert.Equal(t, int64(10), info.TotalSizeBytes)
}

func TestStat_Includes(t *testing.T) {
	opts, root := testOptions(t)
	writeSized(t, root, "a.csv", 10)
	writeSized(t, root, "b.txt", 20)
	writeSized(t, root, "deep/c.csv", 30)

	opts.Include = []string{"*.csv"}
	info, err := Stat(".", opts)
	require.NoError(t, err)
	assert.Equal(t, 2, info.FileCount)
	assert.Equal(t, int64(40), info.TotalSizeBytes)
}

func TestStat_Gitignore(t *testing.T) {
	opts, root := testOptions(t)
	writeSized(t, root, "src/main.txt", 10)
	writeSized(t, root, "build/out.bin", 1000)
	writeSized(t, root, "debug.log", 100)
	writeSized(t, root, "keep.log", 5)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("build/\n*.log\n!keep.log\n"), 0o644))

	info, err := Stat(".", opts)
	require.NoError(t, err)
	assert.Equal(t, 5, info.FileCount, "gitignore is not applied unless requested")

	opts.RespectGitignore = true
	info, err = Stat(".", opts)
	require.NoError(t, err)
	// src/main.txt, keep.log and .gitignore itself
	assert.Equal(t, 3, info.FileCount)
}

func TestStat_SymlinksNotFollowed(t *testing.T) {
	opts, root := testOptions(t)
	outside := t.TempDir()
	writeSized(t, outside, "huge.bin", 9000)
	writeSized(t, root, "real.txt", 7)
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	info, err := Stat(".", opts)
	require.NoError(t, err)
	assert.Equal(t, 1, info.FileCount)
	assert.Equal(t, int64(7), info.TotalSizeBytes)
}

func TestStat_RejectsPaths(t *testing.T) {
	opts, root := testOptions(t)

	_, err := Stat("does/not/exist", opts)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypePathNotFound, errors.TypeOf(err))

	writeSized(t, root, "private/x.txt", 1)
	opts.Paths = security.NewPathValidator(root, []string{filepath.Join(root, "private")})
	_, err = Stat("private", opts)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypePathForbidden, errors.TypeOf(err))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Search.Root = "/data"
	cfg.PathInfo.DiskSpeedMBps = 42

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "/data", opts.Paths.Root)
	assert.Equal(t, 42.0, opts.DiskSpeedMBps)
	assert.Equal(t, cfg.Security.ForbiddenPrefixes, opts.Paths.ForbiddenPrefixes)
}

func TestInfoWireFormat(t *testing.T) {
	data, err := json.Marshal(Info{ResolvedPath: "/x", TotalSizeBytes: 5, FileCount: 1, EstSearchSeconds: 0.01})
	require.NoError(t, err)
	assert.JSONEq(t, `{"resolved_path":"/x","total_size_bytes":5,"file_count":1,"est_search_seconds":0.01}`, string(data))
}
