package sphinx

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ilodi/hoprnet/primitives"
)

// Header is the routing envelope of a Packet: the alpha group element a
// hop combines with its private key to derive the shared secret, the
// beta ciphertext encoding the route onion-style, and a MAC over beta
// that the hop verifies before touching anything else.
//
// Invariants (spec §3): len(Beta) == maxHops*perHopSize for the maxHops
// this Header was built with; Mac is fixed at MACSize bytes.
type Header struct {
	// Alpha is multiplied by the current hop's private key to derive
	// the shared secret for this layer.
	Alpha *btcec.PublicKey

	// Beta is the onion-encrypted routing information: one perHopSize
	// slot per remaining hop, followed by deterministically-derived
	// filler.
	Beta []byte

	// Mac authenticates Beta under the key this hop derives from Alpha.
	// It covers no other region of the packet.
	Mac [primitives.MACSize]byte
}

// hopData is the plaintext contents of one beta slot: the next hop's
// address, the next hop's own transaction-key half (so the current hop
// can sign a challenge the next hop verifies without a round-trip
// acknowledgement), and the MAC the next hop must verify.
type hopData struct {
	nextAddress Address
	nextKeyHalf [keyHalfSize]byte
	mac         [primitives.MACSize]byte
}

func (h hopData) encode() []byte {
	buf := make([]byte, perHopSize)
	copy(buf, h.nextAddress[:])
	copy(buf[AddressSize:], h.nextKeyHalf[:])
	copy(buf[AddressSize+keyHalfSize:], h.mac[:])
	return buf
}

func decodeHopData(b []byte) hopData {
	var hd hopData
	copy(hd.nextAddress[:], b[:AddressSize])
	copy(hd.nextKeyHalf[:], b[AddressSize:AddressSize+keyHalfSize])
	copy(hd.mac[:], b[AddressSize+keyHalfSize:perHopSize])
	return hd
}

// Encode writes the wire representation of h to w.
func (h *Header) Encode(w io.Writer) error {
	if _, err := w.Write(h.Alpha.SerializeCompressed()); err != nil {
		return err
	}
	if _, err := w.Write(h.Beta); err != nil {
		return err
	}
	if _, err := w.Write(h.Mac[:]); err != nil {
		return err
	}
	return nil
}

// DecodeHeader reads a Header of the given maxHops from r.
func DecodeHeader(r io.Reader, maxHops int) (*Header, error) {
	var alphaBuf [primitives.GroupElementSize]byte
	if _, err := io.ReadFull(r, alphaBuf[:]); err != nil {
		return nil, err
	}
	alpha, err := btcec.ParsePubKey(alphaBuf[:])
	if err != nil {
		return nil, ErrInvalidGroupElement
	}

	beta := make([]byte, BetaSize(maxHops))
	if _, err := io.ReadFull(r, beta); err != nil {
		return nil, err
	}

	var mac [primitives.MACSize]byte
	if _, err := io.ReadFull(r, mac[:]); err != nil {
		return nil, err
	}

	return &Header{Alpha: alpha, Beta: beta, Mac: mac}, nil
}

// bytes returns the encoded form of h.
func (h *Header) bytes() []byte {
	var buf bytes.Buffer
	// Encode never returns an error for in-memory buffers with a
	// well-formed Header.
	_ = h.Encode(&buf)
	return buf.Bytes()
}
