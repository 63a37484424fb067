// Package build provides the logging plumbing shared by every core
// package. It mirrors the sub-logger pattern used throughout lnd, trimmed
// of the build-tag/deployment machinery that only matters to a daemon's
// CLI wiring.
package build

import "github.com/btcsuite/btclog"

// NewSubLogger constructs a logger for the named subsystem using
// genSubLogger, lnd's convention for deferring logger construction until a
// caller supplies a backend. A nil genSubLogger yields a disabled logger,
// matching the package default used by every core package's own log.go
// until something calls UseLogger.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger == nil {
		return btclog.Disabled
	}
	return genSubLogger(subsystem)
}
