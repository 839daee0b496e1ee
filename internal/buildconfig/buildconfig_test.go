package buildconfig

import (
	"runtime"
	"testing"
)

func TestVersionInfo(t *testing.T) {
	info := VersionInfo()

	if info["version"] != Version() {
		t.Errorf("version = %q, want %q", info["version"], Version())
	}
	if info["commit"] != Commit() {
		t.Errorf("commit = %q, want %q", info["commit"], Commit())
	}
	if info["build_date"] != BuildDate() {
		t.Errorf("build_date = %q, want %q", info["build_date"], BuildDate())
	}
	if info["go_version"] != runtime.Version() {
		t.Errorf("go_version = %q, want %q", info["go_version"], runtime.Version())
	}
}
