// Package version holds build-time version metadata, overridden via
// -ldflags at release time (grounded on internal/pkg/version/version.go's
// Version/BuildTime/GitCommit var block, renamed out of the teacher's
// release-process comments and NeoScan-Agent user-agent string).
package version

var (
	Version   = "0.1.0"
	BuildTime string
	GitCommit string
	GoVersion string
)

// String returns the short version, e.g. for a --version flag.
func String() string {
	return Version
}

// Full returns version plus build metadata when present (set via -ldflags),
// falling back to just the version string otherwise.
func Full() string {
	if GitCommit == "" && BuildTime == "" {
		return Version
	}
	s := Version
	if GitCommit != "" {
		s += " (" + GitCommit + ")"
	}
	if BuildTime != "" {
		s += " built " + BuildTime
	}
	return s
}
