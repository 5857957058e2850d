package version

import (
	"runtime"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/tkjaer/tcpping/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// FullVersion returns the version line printed by --version.
// Development builds fall back to the module version recorded by the Go
// toolchain, if any.
func FullVersion() string {
	v := Version
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	if v == "dev" {
		return "tcpping development build (" + runtime.Version() + ")"
	}
	return "tcpping " + v + " (commit: " + GitCommit + ", built: " + BuildDate + ", " + runtime.Version() + ")"
}
