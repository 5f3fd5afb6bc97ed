// Package version identifies the running tg build.
package version

import (
	"runtime/debug"
	"strings"
	"sync"
)

// Release fields. Commit and Date are meant to be set at link time:
//
//	go build -ldflags "-X github.com/standardbeagle/tgrep/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version = "0.3.0"
	Commit  = ""
	Date    = ""
)

// Build describes one binary.
type Build struct {
	Version  string
	Commit   string // full or abbreviated revision; empty when unknown
	Date     string
	Modified bool // built from a dirty tree
}

var current = sync.OnceValue(func() Build {
	b := Build{Version: Version, Commit: Commit, Date: Date}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = s.Value
				}
			case "vcs.time":
				if b.Date == "" {
					b.Date = s.Value
				}
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}
	return b
})

// Current returns the running binary's build, falling back to the VCS
// stamp the toolchain embeds when the link-time fields are unset.
func Current() Build {
	return current()
}

func (b Build) shortCommit() string {
	c := b.Commit
	if len(c) > 12 {
		c = c[:12]
	}
	if c != "" && b.Modified {
		c += "-dirty"
	}
	return c
}

// Short is the version with the abbreviated commit as build metadata, e.g.
// "0.3.0+1a2b3c4d5e6f". MCP clients see this as the server version.
func (b Build) Short() string {
	if c := b.shortCommit(); c != "" {
		return b.Version + "+" + c
	}
	return b.Version
}

// String is the line printed by tg --version.
func (b Build) String() string {
	var details []string
	if c := b.shortCommit(); c != "" {
		details = append(details, "commit "+c)
	}
	if b.Date != "" {
		details = append(details, "built "+b.Date)
	}
	if len(details) == 0 {
		return "tg " + b.Version
	}
	return "tg " + b.Version + " (" + strings.Join(details, ", ") + ")"
}
