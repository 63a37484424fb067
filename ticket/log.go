package ticket

import (
	"github.com/btcsuite/btclog"
	"github.com/ilodi/hoprnet/internal/build"
)

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("TICK", nil))
}

// UseLogger sets the logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
