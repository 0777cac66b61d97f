// Package version describes the running walletlink build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const devVersion = "dev"

// Info identifies a build. The fields are set with -ldflags at release time.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Resolve fills empty fields from the embedded module build info where possible.
func (i Info) Resolve() Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return i
	}
	if i.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.Commit == "" && len(s.Value) >= 7 {
				i.Commit = s.Value[:7]
			}
		case "vcs.time":
			if i.Date == "" {
				i.Date = s.Value
			}
		}
	}
	return i
}

// String formats the build as "v1.2.3 (commit: abc1234, built: 2024-01-15)".
func (i Info) String() string {
	v, commit, date := i.Version, i.Commit, i.Date
	if v == "" {
		v = devVersion
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, commit, date)
}

// Platform returns the Go version and target platform.
func Platform() string {
	return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
