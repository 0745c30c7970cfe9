package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildID_Stable(t *testing.T) {
	id := BuildID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, BuildID())
}

func TestComputeBuildID(t *testing.T) {
	assert.Equal(t, Version+"-"+GitCommit, computeBuildID(nil, false))

	info := &debug.BuildInfo{GoVersion: "go1.24.2", Main: debug.Module{Path: "github.com/standardbeagle/idgrep"}}
	a := computeBuildID(info, true)
	assert.Len(t, a, 16)

	info.Settings = []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}}
	b := computeBuildID(info, true)
	assert.NotEqual(t, a, b)

	// Unrelated settings do not change the id
	info.Settings = append(info.Settings, debug.BuildSetting{Key: "GOOS", Value: "linux"})
	assert.Equal(t, b, computeBuildID(info, true))
}

func TestFullInfo(t *testing.T) {
	assert.True(t, strings.HasPrefix(FullInfo(), "idgrep "+Version))
	assert.Equal(t, Version, Info())
}
