package version

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Version information for idgrep
const (
	// Version is the current semantic version of idgrep
	Version = "0.3.0"

	// BuildDate is set during build time (use -ldflags)
	BuildDate = "development"

	// GitCommit is set during build time (use -ldflags)
	GitCommit = "unknown"
)

// Info returns version information as a string
func Info() string {
	return Version
}

// FullInfo returns detailed version information
func FullInfo() string {
	return "idgrep " + Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")"
}

var (
	buildID     string
	buildIDOnce sync.Once
)

// BuildID returns a fingerprint of the running binary. The server reports
// it on /ping so the CLI can tell a stale server from a current one.
func BuildID() string {
	buildIDOnce.Do(func() {
		buildID = computeBuildID(debug.ReadBuildInfo())
	})
	return buildID
}

func computeBuildID(info *debug.BuildInfo, ok bool) string {
	if !ok || info == nil {
		return Version + "-" + GitCommit
	}

	h := xxhash.New()
	h.WriteString(info.GoVersion)
	h.WriteString(info.Main.Path)
	h.WriteString(info.Main.Version)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision", "vcs.modified", "vcs.time":
			h.WriteString(s.Key)
			h.WriteString(s.Value)
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
