// Package version holds appgen build information set through ldflags.
// It has no dependencies so any package can import it.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info is the build information reported by `appgen version --json`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders a one-line summary such as "appgen v1.2.0 (abc123, 2026-01-02)".
func (i Info) String() string {
	return fmt.Sprintf("appgen %s (%s, %s)", i.Version, short(i.Commit), i.BuildDate)
}

// IsDevBuild reports whether this binary was built without release ldflags.
func IsDevBuild() bool {
	return Version == "dev"
}

func short(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
