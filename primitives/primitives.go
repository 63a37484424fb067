// Package primitives implements the scalar/point arithmetic, key
// derivation, and stream cipher the Sphinx packet format and the
// payment-channel module build on. Every derivation here is deterministic
// in the shared secret: the same secret always yields the same derived
// key, stream, or MAC, with no system randomness mixed in, because a
// relayer must be able to re-derive ticket material byte-for-byte when
// redeeming a ticket on-chain.
package primitives

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20"
)

const (
	// SecretSize is the length in bytes of a derived shared secret.
	SecretSize = 32

	// GroupElementSize is the length in bytes of a compressed
	// secp256k1 group element (alpha, blinded public keys).
	GroupElementSize = 33

	// KeySize is the length in bytes of every derived sub-key (rho, mu,
	// transaction-key, ...).
	KeySize = 32

	// MACSize is the length in bytes of every MAC tag produced by Mac.
	MACSize = 32

	// TagSize is the length in bytes of a replay-guard tag.
	TagSize = 16
)

// Secret is a shared secret derived from one ECDH operation between a
// hop's private key and the (possibly blinded) alpha group element.
type Secret [SecretSize]byte

// Key derivation labels. Using a distinct label per derivation on the same
// shared secret yields independent keys, per spec §4.1.
const (
	labelRho             = "rho"
	labelMu              = "mu"
	labelBlinding        = "blinding"
	labelTransactionKey  = "transaction-key"
	labelReplayTag       = "replay-tag"
	labelMessage         = "message"
	labelTransactionSeal = "transaction-seal"
)

// ECDHScalar computes sha256(scalar*point), serialized in compressed
// form. It is the building block both sides of an ECDH operation use:
// DeriveSharedSecret calls it with a hop's private scalar and the
// packet's alpha, while the sender calls it with its ephemeral scalar
// (accumulated with the blinding factors of every preceding hop) and a
// hop's long-term public key.
func ECDHScalar(scalar btcec.ModNScalar, point *btcec.PublicKey) Secret {
	var pointJ btcec.JacobianPoint
	point.AsJacobian(&pointJ)

	var sharedJ btcec.JacobianPoint
	btcec.ScalarMultNonConst(&scalar, &pointJ, &sharedJ)
	sharedJ.ToAffine()

	shared := btcec.NewPublicKey(&sharedJ.X, &sharedJ.Y)
	return sha256.Sum256(shared.SerializeCompressed())
}

// DeriveSharedSecret performs ECDH between privKey and alpha: it computes
// sha256(privKey * alpha), serialized in compressed form, matching the
// SingleKeyECDH convention used throughout the onion-routing examples this
// module is grounded on.
func DeriveSharedSecret(privKey *btcec.PrivateKey, alpha *btcec.PublicKey) Secret {
	return ECDHScalar(privKey.Key, alpha)
}

// ComputeBlindingFactor derives the scalar used to re-randomize alpha for
// the next hop, computed as sha256(alpha || secret) reduced mod the group
// order.
func ComputeBlindingFactor(alpha *btcec.PublicKey, secret Secret) btcec.ModNScalar {
	h := sha256.New()
	h.Write(alpha.SerializeCompressed())
	h.Write(secret[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))

	var factor btcec.ModNScalar
	factor.SetBytes(&digest)
	return factor
}

// BlindGroupElement returns factor*p.
func BlindGroupElement(p *btcec.PublicKey, factor btcec.ModNScalar) *btcec.PublicKey {
	var pJ btcec.JacobianPoint
	p.AsJacobian(&pJ)

	var blindedJ btcec.JacobianPoint
	btcec.ScalarMultNonConst(&factor, &pJ, &blindedJ)
	blindedJ.ToAffine()

	return btcec.NewPublicKey(&blindedJ.X, &blindedJ.Y)
}

// BlindBaseElement returns factor*G, the group generator blinded by
// factor.
func BlindBaseElement(factor btcec.ModNScalar) *btcec.PublicKey {
	var j btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&factor, &j)
	j.ToAffine()
	return btcec.NewPublicKey(&j.X, &j.Y)
}

// AddGroupElements combines two points by elliptic-curve addition. It
// backs AggregateKeyHalves in the ticket package: per spec §9's resolved
// open question, key-halves are combined by curve-point addition, not
// XOR.
func AddGroupElements(a, b *btcec.PublicKey) *btcec.PublicKey {
	var aJ, bJ, sumJ btcec.JacobianPoint
	a.AsJacobian(&aJ)
	b.AsJacobian(&bJ)
	btcec.AddNonConst(&aJ, &bJ, &sumJ)
	sumJ.ToAffine()
	return btcec.NewPublicKey(&sumJ.X, &sumJ.Y)
}

// generateKey derives a KeySize key from secret under the given label via
// HMAC-SHA256, keyed by the label so that distinct labels over the same
// secret are independent.
func generateKey(label string, secret Secret) [KeySize]byte {
	mac := hmac.New(sha256.New, []byte(label))
	mac.Write(secret[:])

	var key [KeySize]byte
	copy(key[:], mac.Sum(nil))
	return key
}

// RhoKey derives the stream-cipher key used to obfuscate/de-obfuscate
// beta at this hop.
func RhoKey(secret Secret) [KeySize]byte { return generateKey(labelRho, secret) }

// MuKey derives the MAC key used to authenticate beta at this hop.
func MuKey(secret Secret) [KeySize]byte { return generateKey(labelMu, secret) }

// MessageKey derives the stream-cipher key used to peel one onion layer
// off the message body at this hop.
func MessageKey(secret Secret) [KeySize]byte { return generateKey(labelMessage, secret) }

// DeriveTransactionKey derives the key a hop and its predecessor share
// for encrypting the embedded payment transaction, k = H_transaction-key(s).
func DeriveTransactionKey(secret Secret) [KeySize]byte {
	return generateKey(labelTransactionKey, secret)
}

// TransactionSealKey derives the key used to seal the embedded
// transaction addressed to the hop that owns transactionKey, under a
// label distinct from every other derivation on the same secret. Both
// the party sending that transaction and the hop receiving it reach
// this value independently: the sender either derived the whole chain
// of per-hop secrets itself (construction) or learned this hop's
// transactionKey from its own peeled routing slot (forwarding), while
// the receiving hop derives it from its own ECDH with alpha. Keying
// strictly off the receiver's own transaction key, rather than off a
// combination of adjacent hops' keys, guarantees the seal key for what
// a hop receives never equals the seal key for what it forwards.
func TransactionSealKey(transactionKey [KeySize]byte) [KeySize]byte {
	mac := hmac.New(sha256.New, []byte(labelTransactionSeal))
	mac.Write(transactionKey[:])

	var key [KeySize]byte
	copy(key[:], mac.Sum(nil))
	return key
}

// DeriveHashedKey returns H(k), the value a Challenge is signed over.
func DeriveHashedKey(key [KeySize]byte) [32]byte {
	return sha256.Sum256(key[:])
}

// DeriveTagParameters derives the TagSize replay-guard tag for this hop's
// shared secret.
func DeriveTagParameters(secret Secret) [TagSize]byte {
	full := generateKey(labelReplayTag, secret)

	var tag [TagSize]byte
	copy(tag[:], full[:TagSize])
	return tag
}

// GenerateCipherStream produces numBytes of pseudo-random output from key
// using ChaCha20 with an all-zero nonce, used as the one-time-pad-style
// keystream for obfuscating beta and the message body. The nonce is fixed
// because each invocation uses a key that is itself unique per packet per
// hop: reusing the zero nonce with a distinct key each time does not reuse
// a (key, nonce) pair.
func GenerateCipherStream(key [KeySize]byte, numBytes int) []byte {
	var nonce [chacha20.NonceSize]byte

	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// KeySize and NonceSize are fixed and correct by
		// construction; a failure here means the stdlib contract
		// changed underneath us.
		panic(err)
	}

	out := make([]byte, numBytes)
	cipher.XORKeyStream(out, out)
	return out
}

// XOR stores the byte-wise XOR of a and b into dst, over
// min(len(a), len(b)) bytes, and returns that length.
func XOR(dst, a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dst[i] = a[i] ^ b[i]
	}
	return n
}

// Mac computes HMAC-SHA256 over data keyed by key, truncated to MACSize.
func Mac(key [KeySize]byte, data []byte) [MACSize]byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(data)

	var tag [MACSize]byte
	copy(tag[:], mac.Sum(nil))
	return tag
}

// ConstantTimeCompareMAC reports whether a and b are equal using a
// constant-time comparison, as required for MAC verification by spec
// §4.1.
func ConstantTimeCompareMAC(a, b [MACSize]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// Hash returns sha256(concat(parts...)).
func Hash(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
