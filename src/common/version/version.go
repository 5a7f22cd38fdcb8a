// Package version provides version information for the xowl packaging tools.
package version

import (
	"fmt"
	"runtime"
)

// Info holds version information for a binary.
// These values are typically set at build time via ldflags.
type Info struct {
	// Name is the binary name (e.g., "xowlpack")
	Name string

	// Version is the semantic version (e.g., "1.0.0")
	Version string

	// BuildDate is the ISO 8601 build timestamp
	BuildDate string

	// GitCommit is the short git commit hash
	GitCommit string
}

// Default values for unset version info
var (
	DefaultName      = "xowlpack"
	DefaultVersion   = "0.0.0-dev"
	DefaultBuildDate = "unknown"
	DefaultGitCommit = "unknown"
)

// New creates a new Info with default values
func New() *Info {
	return &Info{
		Name:      DefaultName,
		Version:   DefaultVersion,
		BuildDate: DefaultBuildDate,
		GitCommit: DefaultGitCommit,
	}
}

// GoVersion returns the Go runtime version
func GoVersion() string {
	return runtime.Version()
}

// String returns the short version string
func (i *Info) String() string {
	return i.Short()
}

// Short returns a short version string (version + commit)
func (i *Info) Short() string {
	return fmt.Sprintf("v%s-%s", i.Version, i.GitCommit)
}

// AppID returns the identifier sent to remote services, e.g. "xowlpack/1.0.0"
func (i *Info) AppID() string {
	return i.Name + "/" + i.Version
}

// Full returns a detailed multi-line version string
func (i *Info) Full() string {
	return fmt.Sprintf(`%s %s
  Build Date: %s
  Git Commit: %s
  Go Version: %s
  Platform:   %s/%s`,
		i.Name,
		i.Version,
		i.BuildDate,
		i.GitCommit,
		GoVersion(),
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// Map returns version info as a map (useful for JSON output)
func (i *Info) Map() map[string]string {
	return map[string]string{
		"name":       i.Name,
		"version":    i.Version,
		"build_date": i.BuildDate,
		"git_commit": i.GitCommit,
		"go_version": GoVersion(),
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
	}
}
