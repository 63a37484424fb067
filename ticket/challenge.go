package ticket

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ilodi/hoprnet/errclass"
	"github.com/ilodi/hoprnet/primitives"
)

// ChallengeSize is the fixed width of a Challenge on the wire: a
// recoverable secp256k1 signature, compact-encoded (1-byte header holding
// the recovery ID plus R and S).
const ChallengeSize = 65

// Challenge is a signature by one hop over H(keyHalf), where keyHalf is
// the transaction key the *next* hop along the path will independently
// derive from its own shared secret (spec §4.1's deriveHashedKey, bound
// into a signature per §4.3). Recovering the signer from the stored
// bytes and checking it against the expected predecessor is how a hop
// verifies that the packet it received really was forwarded by that
// predecessor, without either party needing a separate handshake.
type Challenge [ChallengeSize]byte

// ErrChallengeSignature is a silent-drop error: the challenge does not
// recover to a valid public key, or does not match the expected signer.
var ErrChallengeSignature = errclass.Dropf("invalid challenge signature")

// ErrTicketEncoding is a fatal error: a persisted ticket record did not
// decode to the expected fixed width, indicating on-disk corruption or a
// version mismatch.
func ErrTicketEncoding(got, want int) error {
	return errclass.Fatalf("ticket record length %d, want %d", got, want)
}

// Sign produces a Challenge binding keyHalf to signer: it signs
// H(keyHalf) with signer's private key using a recoverable compact
// signature, so that any future holder of keyHalf can recover signer's
// public key without an out-of-band signer hint.
func Sign(keyHalf [primitives.KeySize]byte, signer *btcec.PrivateKey) (Challenge, error) {
	digest := primitives.DeriveHashedKey(keyHalf)

	sig := ecdsa.SignCompact(signer, digest[:], true)
	if len(sig) != ChallengeSize {
		return Challenge{}, errclass.Fatalf(
			"unexpected compact signature length %d", len(sig),
		)
	}

	var c Challenge
	copy(c[:], sig)
	return c, nil
}

// CreateChallenge is Sign under the name spec §4.3 uses at construction
// time, when the sender signs the first challenge over hop0's
// transaction key.
func CreateChallenge(transactionKey [primitives.KeySize]byte, signer *btcec.PrivateKey) (Challenge, error) {
	return Sign(transactionKey, signer)
}

// UpdateChallenge is Sign under the name spec §4.3 uses when a relayer
// replaces the challenge it received with a fresh one bound to the next
// hop's key-half before forwarding.
func UpdateChallenge(hashedKeyHalf [primitives.KeySize]byte, signer *btcec.PrivateKey) (Challenge, error) {
	return Sign(hashedKeyHalf, signer)
}

// GetCounterparty recovers the public key that signed c over
// H(keyHalf). The caller supplies its own locally-derived keyHalf: a
// verification succeeds only if that value is exactly the one the
// signer bound the challenge to, which holds when keyHalf really is the
// shared secret-derived key both sides agree on.
func GetCounterparty(c Challenge, keyHalf [primitives.KeySize]byte) (*btcec.PublicKey, error) {
	digest := primitives.DeriveHashedKey(keyHalf)

	pub, _, err := ecdsa.RecoverCompact(c[:], digest[:])
	if err != nil {
		return nil, ErrChallengeSignature
	}
	return pub, nil
}
