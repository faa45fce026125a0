// Package env holds build-time metadata injected via -ldflags.
package env

// AppName is the binary and DFXML package name reported in tool output.
const AppName = "diglet"

// Version, CommitHash and BuildTime are overridden at build time with
// -ldflags "-X github.com/ostafen/diglet/internal/env.Version=...".
var (
	Version    = "dev"
	CommitHash = "none"
	BuildTime  = "unknown"
)
