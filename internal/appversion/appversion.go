// Package appversion reports the presence build version.
package appversion

import (
	"runtime/debug"
	"sync"
)

// version is set at build time via -ldflags "-X presence/internal/appversion.version=...".
var version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var

var readBuildInfo = sync.OnceValue(func() *debug.BuildInfo { //nolint:gochecknoglobals // computed once per process
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return bi
})

// String returns the release version. Without ldflags it falls back to the
// module version recorded by go install, then to "dev".
func String() string {
	if version != "dev" {
		return version
	}
	if bi := readBuildInfo(); bi != nil && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return version
}

// Revision returns the short VCS revision the binary was built from, with a
// "+dirty" suffix for modified trees, or "" when unknown.
func Revision() string {
	bi := readBuildInfo()
	if bi == nil {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}

// Full returns String plus the revision when known, e.g. "v1.2.0 (abc123def456)".
func Full() string {
	if rev := Revision(); rev != "" {
		return String() + " (" + rev + ")"
	}
	return String()
}
