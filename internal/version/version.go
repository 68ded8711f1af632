package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// shortCommitLength is how many characters of a VCS revision are shown.
const shortCommitLength = 7

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the version with commit, build time and platform.
// Without ldflags the commit and build time come from the VCS stamp of the binary.
func Full() string {
	commit, builtAt := Commit, BuildTime

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch {
			case setting.Key == "vcs.revision" && commit == "none":
				commit = setting.Value
				if len(commit) > shortCommitLength {
					commit = commit[:shortCommitLength]
				}
			case setting.Key == "vcs.time" && builtAt == "unknown":
				builtAt = setting.Value
			}
		}
	}

	return fmt.Sprintf("alarm-agent %s, commit: %s, built at: %s, %s %s/%s",
		Version, commit, builtAt, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
