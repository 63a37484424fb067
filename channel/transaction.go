package channel

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ilodi/hoprnet/primitives"
)

// TransactionSize is the fixed on-wire width of Transaction: channelId(32)
// + index(8) + value(8) + curvePoint(33) + signature(64) + recovery(1).
// It must stay equal to sphinx.TransactionPlaintextSize, since this is
// exactly the record sphinx embeds and re-seals at every hop.
const TransactionSize = 146

// Transaction is the signed channel update a hop embeds into a packet,
// per spec §3: signed by the sender, it carries the channel's new
// partyA balance (Value) and index for the channel between the previous
// hop and this one.
type Transaction struct {
	ChannelId [32]byte
	Index     uint64
	Value     uint64

	// CurvePoint is the signer's compressed secp256k1 public key. On
	// chain this is split into an x-coordinate and a parity bit
	// (closeChannel's curvePointX/curvePointParity, spec §6); off
	// chain it travels as a single compressed point.
	CurvePoint [33]byte

	// Signature is the (R, S) pair of an ECDSA signature over the
	// transaction's mutable fields.
	Signature [64]byte

	// Recovery is the recovery id needed to reconstruct the compact
	// signature format btcec's RecoverCompact expects.
	Recovery byte
}

// signingDigest returns the hash Sign/Recover operate over: every field
// a counterparty must agree on to accept this update.
func (tx Transaction) signingDigest() [32]byte {
	var buf [48]byte
	copy(buf[:32], tx.ChannelId[:])
	binary.BigEndian.PutUint64(buf[32:40], tx.Index)
	binary.BigEndian.PutUint64(buf[40:48], tx.Value)
	return primitives.Hash(buf[:])
}

// Sign signs tx's mutable fields with signer's private key and fills in
// CurvePoint, Signature, and Recovery, following the zpay32 / btcec
// compact-signature convention used throughout this module.
func (tx *Transaction) Sign(signer *btcec.PrivateKey) error {
	digest := tx.signingDigest()

	sig := ecdsa.SignCompact(signer, digest[:], true)
	if len(sig) != 65 {
		return ErrSignatureEncoding(len(sig))
	}

	copy(tx.Signature[:32], sig[1:33])
	copy(tx.Signature[32:], sig[33:65])
	tx.Recovery = sig[0]
	copy(tx.CurvePoint[:], signer.PubKey().SerializeCompressed())
	return nil
}

// Recover recovers the public key that signed tx and reports whether it
// matches tx's own CurvePoint field, i.e. whether the transaction is
// self-consistent. The caller still needs to check that the recovered
// key belongs to the expected counterparty.
func (tx Transaction) Recover() (*btcec.PublicKey, error) {
	digest := tx.signingDigest()

	var compact [65]byte
	compact[0] = tx.Recovery
	copy(compact[1:33], tx.Signature[:32])
	copy(compact[33:65], tx.Signature[32:])

	pub, _, err := ecdsa.RecoverCompact(compact[:], digest[:])
	if err != nil {
		return nil, ErrInvalidSignature
	}

	if [33]byte(pub.SerializeCompressed()) != tx.CurvePoint {
		return nil, ErrInvalidSignature
	}
	return pub, nil
}

// Encode writes the fixed TransactionSize-byte wire encoding of tx.
func (tx Transaction) Encode() []byte {
	buf := make([]byte, TransactionSize)
	off := 0
	copy(buf[off:], tx.ChannelId[:])
	off += 32
	binary.BigEndian.PutUint64(buf[off:], tx.Index)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], tx.Value)
	off += 8
	copy(buf[off:], tx.CurvePoint[:])
	off += 33
	copy(buf[off:], tx.Signature[:])
	off += 64
	buf[off] = tx.Recovery
	return buf
}

// DecodeTransaction parses a Transaction from its fixed TransactionSize-
// byte wire encoding.
func DecodeTransaction(raw []byte) (Transaction, error) {
	if len(raw) != TransactionSize {
		return Transaction{}, ErrTransactionEncoding(len(raw))
	}

	var tx Transaction
	off := 0
	copy(tx.ChannelId[:], raw[off:])
	off += 32
	tx.Index = binary.BigEndian.Uint64(raw[off:])
	off += 8
	tx.Value = binary.BigEndian.Uint64(raw[off:])
	off += 8
	copy(tx.CurvePoint[:], raw[off:off+33])
	off += 33
	copy(tx.Signature[:], raw[off:off+64])
	off += 64
	tx.Recovery = raw[off]
	return tx, nil
}
