// Package pipeline implements the top-level packet-channel binding
// action of spec §4.6, the per-channel concurrency model of §5, and the
// drop/retry/fatal decision of §7: it is the only package that inspects
// an error's errclass.Class. It wires the channel and ticket packages
// into sphinx's SourceBinder/HopBinder interfaces, grounded on
// htlcswitch.link.go's single link's HTLC-processing loop — fetch
// channel state under lock, validate, commit, forward — the closest
// teacher analogue to "one hop's worth of packet-channel binding work."
package pipeline

import (
	"github.com/btcsuite/btclog"
	"github.com/ilodi/hoprnet/internal/build"
)

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("PIPE", nil))
}

// UseLogger sets the logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
