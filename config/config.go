// Package config holds the explicit startup configuration a node needs
// to construct its chain backend: provider URL, contract address, and
// network, passed once at construction rather than read from the
// environment ad hoc.
package config

// Network identifies which chain environment the node's chain backend
// talks to.
type Network string

const (
	// NetworkProduction is the live chain deployment.
	NetworkProduction Network = "production"

	// NetworkGanache is a local development chain used for testing
	// channel funding/settlement without a real deployment.
	NetworkGanache Network = "ganache"
)

// Config bundles the values needed to construct a chain backend. It is
// passed once, explicitly, to whichever component constructs it.
type Config struct {
	// ProviderURL is the RPC endpoint of the chain backend.
	ProviderURL string

	// ContractAddress is the on-chain address of the payment-channel
	// contract.
	ContractAddress [20]byte

	// Network selects which chain environment ContractAddress and
	// ProviderURL refer to.
	Network Network
}

// Validate reports whether the configuration is well-formed enough to
// construct a chain backend from. It does not attempt to reach the
// network.
func (c Config) Validate() error {
	if c.ProviderURL == "" {
		return errConfig("provider URL is required")
	}
	switch c.Network {
	case NetworkProduction, NetworkGanache:
	default:
		return errConfig("unknown network %q", c.Network)
	}
	return nil
}
