package pipeline

import (
	"github.com/ilodi/hoprnet/errclass"
	"github.com/ilodi/hoprnet/sphinx"
)

// ErrUnknownPeer is a recoverable error: the binder needed a public key
// for addr but the Directory has none, which could mean the transport
// hasn't finished peer discovery yet rather than that the peer does not
// exist.
func ErrUnknownPeer(addr sphinx.Address) error {
	return errclass.Recoverablef("no known public key for address %x", addr[:])
}
