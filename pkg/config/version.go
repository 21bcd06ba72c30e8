// Package config carries build metadata stamped into RFPHub binaries.
package config

import (
	"fmt"
	"runtime"
)

// Set via -ldflags at release time; the zero values identify a local
// development build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// VersionString returns the one-line banner the CLIs and the metrics
// landing page print.
func VersionString() string {
	return fmt.Sprintf("rfphub %s (%s) built at %s with %s",
		Version, Commit, BuildTime, runtime.Version())
}
