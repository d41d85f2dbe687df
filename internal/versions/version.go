// Package versions reports the build identity of the updater binary.
package versions

import (
	"runtime"
	"runtime/debug"
	"time"
)

const unknown = "unknown"

// Stamped at build time through -ldflags. A plain `go build` leaves the
// defaults, and the VCS stamp embedded by the toolchain fills the gaps.
var (
	Version   = "dev"
	Commit    = unknown
	BuildDate = unknown
)

// VersionInfo is the build identity of the running binary.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo assembles the build identity, falling back to the
// toolchain's embedded VCS stamp for unstamped dev builds.
func GetVersionInfo() VersionInfo {
	commit, date := Commit, BuildDate
	if Version == "dev" {
		if commit == unknown {
			commit = vcsSetting("vcs.revision", unknown)
		}
		if date == unknown {
			date = vcsSetting("vcs.time", unknown)
		}
	}
	return VersionInfo{
		Version:   displayVersion(Version, commit),
		Commit:    commit,
		BuildDate: formatDate(date),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// displayVersion names an unstamped dev build after its commit.
func displayVersion(version, commit string) string {
	if version != "dev" {
		return version
	}
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return "build-" + commit
}

// formatDate rewrites an RFC 3339 build timestamp into a readable form
// and passes anything else through unchanged.
func formatDate(date string) string {
	t, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return date
	}
	return t.Format("2006-01-02 15:04:05 MST")
}

func vcsSetting(key, fallback string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fallback
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return fallback
}
