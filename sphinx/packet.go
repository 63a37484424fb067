package sphinx

import (
	"bytes"
	"io"
)

// Packet is the fixed-size frame carried over the wire: Header ‖
// Transaction ‖ Challenge ‖ Message, per spec §3. No length prefixes are
// used anywhere in the format; a packet that is not of exactly
// PacketSize(maxHops) bytes is rejected outright.
type Packet struct {
	Header *Header

	// Transaction is the AEAD-sealed embedded payment update. sphinx
	// opens it at each hop and seals the outgoing one (see seal.go);
	// the plaintext inside is interpreted only by the binder.
	Transaction [TransactionFieldSize]byte

	// Challenge is the opaque recoverable signature binding this
	// packet's payment to correct forwarding. Only the ticket package
	// interprets it.
	Challenge [ChallengeFieldSize]byte

	// Message is the onion-encrypted payload.
	Message [MessageSize]byte
}

// Encode writes the wire representation of p to w.
func (p *Packet) Encode(w io.Writer) error {
	if err := p.Header.Encode(w); err != nil {
		return err
	}
	if _, err := w.Write(p.Transaction[:]); err != nil {
		return err
	}
	if _, err := w.Write(p.Challenge[:]); err != nil {
		return err
	}
	if _, err := w.Write(p.Message[:]); err != nil {
		return err
	}
	return nil
}

// ToBuffer returns the encoded wire form of p.
func (p *Packet) ToBuffer() []byte {
	var buf bytes.Buffer
	_ = p.Encode(&buf)
	return buf.Bytes()
}

// DecodePacket parses a Packet for a route of up to maxHops hops from
// exactly PacketSize(maxHops) bytes. Any other length is rejected.
func DecodePacket(frame []byte, maxHops int) (*Packet, error) {
	want := PacketSize(maxHops)
	if len(frame) != want {
		return nil, ErrWrongPacketSize(len(frame), want)
	}

	r := bytes.NewReader(frame)

	header, err := DecodeHeader(r, maxHops)
	if err != nil {
		return nil, ErrInvalidGroupElement
	}

	p := &Packet{Header: header}
	if _, err := io.ReadFull(r, p.Transaction[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, p.Challenge[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, p.Message[:]); err != nil {
		return nil, err
	}

	return p, nil
}
