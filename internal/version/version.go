// Package version carries the build metadata stamped into the binary.
package version

import (
	"fmt"
	"runtime"
	"time"
)

// Populated at build time via -ldflags.
var (
	Version   = "dev"
	CommitID  = "unknown"
	BuildTime = "unknown"
)

// Info is the version block shown by the CLI and the server info endpoint.
type Info struct {
	Version   string
	CommitID  string
	BuildTime string
	GoVersion string
	Platform  string
}

// Get returns the build information baked into this binary.
func Get() Info {
	return Info{
		Version:   Version,
		CommitID:  CommitID,
		BuildTime: buildTimeDisplay(),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// buildTimeDisplay renders the ldflags timestamp for humans, falling back
// to the raw value when it is absent or not RFC3339.
func buildTimeDisplay() string {
	t, err := time.Parse(time.RFC3339, BuildTime)
	if err != nil {
		return BuildTime
	}
	return t.Format("Mon Jan 2 15:04:05 2006")
}
