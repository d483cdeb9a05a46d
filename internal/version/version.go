// Package version reports build information for the groupcomments binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the program name used in version strings and the User-Agent.
const Name = "groupcomments"

// Set via ldflags:
//
//	go build -ldflags="-X github.com/andywolf/groupcomments/internal/version.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Short returns the version, falling back to the module version recorded
// by `go install` when no ldflags were given.
func Short() string {
	if Version != "dev" {
		return Version
	}
	if bi, ok := readBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return Version
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}

// Info returns a single-line version string, e.g.
// "groupcomments v1.2.3 (commit: abc1234, built: 2024-01-15T10:30:00Z, go: go1.23.1)".
func Info() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s)",
		Name, Short(), shortCommit(), BuildDate, runtime.Version())
}

// Full returns the multi-line output of `version --verbose`.
func Full() string {
	return fmt.Sprintf(`%s %s
  Commit:     %s
  Built:      %s
  Go version: %s
  OS/Arch:    %s/%s`,
		Name, Short(), Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent with every JIRA request.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s/%s)", Name, Short(), runtime.GOOS, runtime.GOARCH)
}
