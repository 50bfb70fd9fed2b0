// Package version holds build-time metadata populated via -ldflags.
package version

import "runtime"

// These are overridden at build time via:
//
//	go build -ldflags "-X github.com/go-novel/novelcore/version.GitRelease=v1.2.3 ..."
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain version used to build the binary.
var GoInfo = runtime.Version()
