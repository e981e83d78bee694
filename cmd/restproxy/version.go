package main

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var embeddedVersion string

// Version returns the module version when installed with go install, and
// "devel-<VERSION>[+<revision>]" for local builds.
func Version() string {
	base := strings.TrimSpace(embeddedVersion)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return base
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return "devel-" + base + "+" + s.Value[:7]
		}
	}
	return "devel-" + base
}
