package sphinx

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ilodi/hoprnet/primitives"
)

// Path is the ordered sequence of hops a packet travels through,
// p0, p1, ..., p(n-1), where p(n-1) is the destination. A one-element
// path whose sole hop is the sender itself is the well-formed
// self-addressed edge case of spec §4.2.
type Path struct {
	Keys      []*btcec.PublicKey
	Addresses []Address
}

// NumHops returns the number of hops in the path.
func (p Path) NumHops() int { return len(p.Keys) }

// AddressFromPubKey derives the routing address embedded in beta from a
// hop's public key: the first AddressSize bytes of sha256 over its
// compressed serialization.
func AddressFromPubKey(pub *btcec.PublicKey) Address {
	h := primitives.Hash(pub.SerializeCompressed())

	var addr Address
	copy(addr[:], h[:AddressSize])
	return addr
}

// sharedSecrets computes the per-hop shared secret for every hop in the
// path from the sender's ephemeral session key, following the
// accumulated-blinding-factor construction: each hop's alpha is blinded
// by the product of every preceding hop's blinding factor, so that only
// a single group element needs to travel in the header.
func sharedSecrets(path Path, sessionKey *btcec.PrivateKey) []primitives.Secret {
	numHops := path.NumHops()
	secrets := make([]primitives.Secret, numHops)

	lastAlpha := sessionKey.PubKey()
	secrets[0] = primitives.ECDHScalar(sessionKey.Key, path.Keys[0])
	lastBlinding := primitives.ComputeBlindingFactor(lastAlpha, secrets[0])

	// cachedBlinding tracks the running product x * b_0 * b_1 * ... of
	// the ephemeral scalar and every preceding hop's blinding factor.
	// ModNScalar arithmetic already reduces mod the group order, so no
	// big.Int bookkeeping is needed.
	cachedBlinding := sessionKey.Key

	for i := 1; i < numHops; i++ {
		cachedBlinding.Mul(&lastBlinding)

		lastAlpha = primitives.BlindBaseElement(cachedBlinding)
		secrets[i] = primitives.ECDHScalar(cachedBlinding, path.Keys[i])

		if i == numHops-1 {
			break
		}
		lastBlinding = primitives.ComputeBlindingFactor(lastAlpha, secrets[i])
	}

	return secrets
}
