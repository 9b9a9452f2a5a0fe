// Package buildinfo carries version metadata stamped at link time:
//
//	go build -ldflags "-X github.com/modoterra/unitgate/internal/buildinfo.Version=v0.3.0"
package buildinfo

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
