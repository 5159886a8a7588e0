package version

import (
	"fmt"
	"runtime"
)

// Build information. Populated at build-time via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// Info is the build information reported by /api/health and /api/config.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
}

// String returns a human-readable version string
func String() string {
	commit := GitCommit[:min(7, len(GitCommit))]
	v := Version
	if v != "dev" {
		v = "v" + v
	}
	return fmt.Sprintf("creativeforge %s (commit %s, built %s with %s)", v, commit, BuildDate, GoVersion)
}
