package sphinx

import (
	"github.com/btcsuite/btclog"
	"github.com/ilodi/hoprnet/internal/build"
)

// log is disabled until UseLogger is called, matching every other core
// package's default.
var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("SPHX", nil))
}

// UseLogger sets the logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
