// Package channel implements the per-counterparty payment-channel state
// machine: funding, transfer, settlement, and withdrawal, persisted
// through the kvstore interface so that a restart recovers the same
// state a crash interrupted, the way contractcourt's ChannelArbitrator
// recovers its state from its ArbitratorLog rather than rebuilding it
// from scratch.
package channel

import (
	"github.com/btcsuite/btclog"
	"github.com/ilodi/hoprnet/internal/build"
)

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("CHAN", nil))
}

// UseLogger sets the logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
