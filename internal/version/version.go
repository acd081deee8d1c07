// Package version provides build-time version information for npmnuke.
//
// Build with ldflags to set version info:
//
//	go build -ldflags "-X github.com/cuire/npmnuke/internal/version.GitHash=$(git rev-parse --short=7 HEAD) \
//	                   -X github.com/cuire/npmnuke/internal/version.GitDirty=$(if git diff --quiet 2>/dev/null; then echo clean; else echo dirty; fi) \
//	                   -X github.com/cuire/npmnuke/internal/version.Version=0.2.0"
//
// Binaries installed with `go install` carry their module version instead.
package version

import (
	"fmt"
	"runtime/debug"
)

const defaultVersion = "0.2.0"

var (
	// Version is the semantic version (e.g., "0.2.0").
	Version = defaultVersion
	// GitHash is the short git commit hash (e.g., "abc1234").
	// Default is "unknown" when not built with ldflags.
	GitHash = "unknown"
	// GitDirty is "dirty", "clean", or "unknown".
	GitDirty = "unknown"
)

func init() {
	resolveFromBuildInfo(debug.ReadBuildInfo)
}

// resolveFromBuildInfo fills in whatever ldflags left at the defaults
func resolveFromBuildInfo(read func() (*debug.BuildInfo, bool)) {
	info, ok := read()

	if !ok {
		return
	}

	if Version == defaultVersion && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if GitHash == "unknown" && len(setting.Value) >= 7 {
				GitHash = setting.Value[:7]
			}
		case "vcs.modified":
			if GitDirty == "unknown" {
				if setting.Value == "true" {
					GitDirty = "dirty"
				} else {
					GitDirty = "clean"
				}
			}
		}
	}
}

// String returns a formatted version string for the given tool name.
// Format: "toolname 0.2.0 (abc1234, clean)"
func String(toolName string) string {
	return fmt.Sprintf("%s %s (%s, %s)", toolName, Version, GitHash, GitDirty)
}

// Short returns just the version info without tool name.
// Format: "0.2.0 (abc1234, clean)"
func Short() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitHash, GitDirty)
}

// Banner is the first line printed by the list prompt.
// Format: "> toolname 0.2.0"
func Banner(toolName string) string {
	return fmt.Sprintf("> %s %s", toolName, Version)
}
