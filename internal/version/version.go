// Package version carries build metadata stamped in at link time.
package version

// Overridden with -ldflags "-X ..." by the release build.
var (
	Version = "dev"
	Commit  = "unknown"
)
