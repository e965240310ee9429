// Package buildinfo carries values stamped at link time, e.g.
//
//	go build -ldflags "-X github.com/m3rciful/swingbot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/swingbot/core/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Revision returns Commit, falling back to the VCS revision the Go toolchain
// embeds in module builds.
func Revision() string {
	if Commit != "" {
		return Commit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "local"
}
