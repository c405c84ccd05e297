// Package version carries build metadata injected at link time.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/Sumatoshi-tech/esmigrate/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// revisionKey is the build setting holding the VCS revision.
const revisionKey = "vcs.revision"

// Info is the build metadata of the running binary.
type Info struct {
	Version   string `json:"version"   yaml:"version"`
	Commit    string `json:"commit"    yaml:"commit"`
	Date      string `json:"date"      yaml:"date"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
}

// Get returns the build metadata, falling back to the embedded VCS revision
// when no commit was injected.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	info.GoVersion = build.GoVersion

	if info.Commit == "none" {
		for _, setting := range build.Settings {
			if setting.Key == revisionKey && setting.Value != "" {
				info.Commit = setting.Value
			}
		}
	}

	return info
}

// String renders the metadata on one line.
func (i Info) String() string {
	return fmt.Sprintf("esmigrate %s (commit %s, built %s, %s)", i.Version, i.Commit, i.Date, i.GoVersion)
}
