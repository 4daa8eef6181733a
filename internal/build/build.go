// Package build carries version information stamped at link time.
package build

var (
	// Version is set via -ldflags "-X .../internal/build.Version=..."
	Version = "dev"
	// Commit is the git revision the binary was built from
	Commit = "unknown"
)
