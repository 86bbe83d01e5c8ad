// Package version carries build information stamped in via -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build information for --version and the run catalog.
func String() string {
	return fmt.Sprintf("gamic2iwrf %s (%s, built %s)", Version, GitSHA, BuildTime)
}
