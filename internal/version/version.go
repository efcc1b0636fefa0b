// Package version holds build metadata set through -ldflags.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X ragchat/internal/version.Version=v1.0.0 -X ragchat/internal/version.Commit=$(git rev-parse --short HEAD) -X ragchat/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line summary of the build.
func Info() string {
	return fmt.Sprintf("ragchat %s (commit %s, built %s)", Version, Commit, Date)
}
