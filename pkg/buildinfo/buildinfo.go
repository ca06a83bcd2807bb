package buildinfo

import "runtime/debug"

// BinaryVersion is set at build time via -ldflags. Defaults to "dev".
var BinaryVersion = "dev"

// GitCommit is the commit hash the binary was built from, set via -ldflags.
var GitCommit = ""

// BuildDate is the build timestamp (RFC 3339), set via -ldflags.
var BuildDate = ""

// ModuleVersion returns the module version embedded by the Go toolchain (when available).
func ModuleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return ""
}

// ShortCommit returns the first 8 characters of GitCommit, or the full
// value when it is shorter than that.
func ShortCommit() string {
	if len(GitCommit) > 8 {
		return GitCommit[:8]
	}
	return GitCommit
}
