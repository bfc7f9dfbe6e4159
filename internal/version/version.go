// Package version exposes the build version stamped in by ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release version, overridden by ldflags at build time.
	Version = "dev"
	// CommitHash is the git commit the binary was built from.
	CommitHash = ""
	// BuildTime is the build timestamp.
	BuildTime = ""
)

// GetInfo returns "<version> (<short-commit>)", resolving the commit from the
// embedded build info when ldflags did not set it.
func GetInfo() string {
	if CommitHash == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					CommitHash = setting.Value
				case "vcs.time":
					BuildTime = setting.Value
				}
			}
		}
	}

	if CommitHash == "" {
		return Version
	}
	short := CommitHash
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", Version, short)
}
