package buildconfig

import "runtime"

// Build-time variables injected via ldflags:
//
//	-X github.com/Harshitk-cp/evotier/internal/buildconfig.version=v1.2.0
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

func BuildDate() string {
	return buildDate
}

// VersionInfo returns full version information for /version and tierctl.
func VersionInfo() map[string]string {
	return map[string]string{
		"version":    version,
		"commit":     commit,
		"build_date": buildDate,
		"go_version": runtime.Version(),
	}
}
