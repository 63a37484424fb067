package sphinx

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ilodi/hoprnet/primitives"
	"github.com/ilodi/hoprnet/ticket"
)

// generateHeaderPadding produces the deterministic filler that the
// terminal hop's slot is seeded with, so that every hop along the path
// peels a beta of exactly the same size regardless of its position.
// Each preceding hop's own rho-keyed keystream already obfuscates this
// filler the same way it will obfuscate every other hop's slot, so by
// the time the terminal hop peels its own layer the filler looks like
// ordinary random padding rather than the tell-tale all-zero tail a
// naive shift-and-pad construction would leave behind.
func generateHeaderPadding(secrets []primitives.Secret, numHops, maxHops int) []byte {
	filler := make([]byte, (numHops-1)*perHopSize)
	if numHops == 1 {
		return filler
	}

	numStreamBytes := BetaSize(maxHops) + perHopSize

	for i := 1; i < numHops; i++ {
		totalFillerSize := (maxHops - i + 1) * perHopSize

		rhoKey := primitives.RhoKey(secrets[i-1])
		streamBytes := primitives.GenerateCipherStream(rhoKey, numStreamBytes)

		primitives.XOR(filler, filler, streamBytes[totalFillerSize:totalFillerSize+i*perHopSize])
	}

	return filler
}

// buildBeta constructs the fully-layered beta and the MAC over its
// outermost layer, working from the destination backwards so that each
// hop's slot is wrapped by every preceding hop's keystream exactly once.
func buildBeta(path Path, secrets []primitives.Secret, maxHops int) ([]byte, [primitives.MACSize]byte) {
	numHops := path.NumHops()
	betaSize := BetaSize(maxHops)
	numStreamBytes := betaSize + perHopSize

	filler := generateHeaderPadding(secrets, numHops, maxHops)

	beta := make([]byte, betaSize)
	var mac [primitives.MACSize]byte

	for i := numHops - 1; i >= 0; i-- {
		rhoKey := primitives.RhoKey(secrets[i])
		muKey := primitives.MuKey(secrets[i])

		var hd hopData
		hd.mac = mac
		if i == numHops-1 {
			// The terminal slot carries the destination's own
			// address: the hop that peels it recognizes itself as
			// the recipient rather than a relay.
			hd.nextAddress = path.Addresses[i]
		} else {
			hd.nextAddress = path.Addresses[i+1]
			hd.nextKeyHalf = primitives.DeriveTransactionKey(secrets[i+1])
		}

		streamBytes := primitives.GenerateCipherStream(rhoKey, numStreamBytes)

		shiftBetaRight(beta, perHopSize)
		copy(beta[:perHopSize], hd.encode())
		primitives.XOR(beta, beta, streamBytes[:betaSize])

		if i == numHops-1 {
			copy(beta[len(beta)-len(filler):], filler)
		}

		mac = primitives.Mac(muKey, beta)
	}

	return beta, mac
}

func shiftBetaRight(b []byte, n int) {
	for i := len(b) - 1; i >= n; i-- {
		b[i] = b[i-n]
	}
	for i := 0; i < n; i++ {
		b[i] = 0
	}
}

// peelBeta strips this hop's own layer off beta, returning the next
// hop's beta and this slot's plaintext hopData. It never fails: a
// corrupted beta produces garbage hopData, which the caller's address
// and challenge checks will reject.
func peelBeta(beta []byte, secret primitives.Secret, maxHops int) ([]byte, hopData) {
	betaSize := BetaSize(maxHops)
	numStreamBytes := betaSize + perHopSize

	extended := make([]byte, numStreamBytes)
	copy(extended, beta)

	streamBytes := primitives.GenerateCipherStream(primitives.RhoKey(secret), numStreamBytes)
	primitives.XOR(extended, extended, streamBytes)

	hd := decodeHopData(extended[:perHopSize])
	nextBeta := extended[perHopSize : perHopSize+betaSize]
	return nextBeta, hd
}

// Construct builds the packet a sender hands to the first hop in path,
// per spec §4.2's "Construction at source". sessionKey is a fresh
// ephemeral key used only for the onion's Diffie-Hellman layering;
// senderIdentity is the sender's own long-term key, used to sign the
// first challenge so that the first hop can recover the sender's
// identity when it verifies who it received the packet from.
func Construct(path Path, sessionKey, senderIdentity *btcec.PrivateKey,
	message []byte, relayFee uint64, binder SourceBinder, maxHops int) (*Packet, error) {

	numHops := path.NumHops()
	if numHops == 0 {
		return nil, ErrEmptyPath
	}
	if numHops > maxHops {
		return nil, ErrPathTooLong(numHops, maxHops)
	}
	if len(message) != MessageSize {
		return nil, ErrMessageTooLarge(len(message))
	}

	secrets := sharedSecrets(path, sessionKey)

	beta, headerMac := buildBeta(path, secrets, maxHops)
	header := &Header{Alpha: sessionKey.PubKey(), Beta: beta, Mac: headerMac}

	// Onion-encrypt the message. XOR streams commute, so the order in
	// which each hop's keystream is applied doesn't matter, only that
	// every hop's stream is applied exactly once before the packet is
	// sent and exactly once more as each hop peels its own layer off.
	msgCipher := make([]byte, MessageSize)
	copy(msgCipher, message)
	for i := 0; i < numHops; i++ {
		stream := primitives.GenerateCipherStream(primitives.MessageKey(secrets[i]), MessageSize)
		primitives.XOR(msgCipher, msgCipher, stream)
	}

	amount := uint64(numHops-1) * relayFee
	tx, err := binder.BuildFirstTransaction(path.Addresses[0], amount)
	if err != nil {
		return nil, err
	}

	k0 := primitives.DeriveTransactionKey(secrets[0])
	sealedTx, err := sealTransaction(primitives.TransactionSealKey(k0), tx)
	if err != nil {
		return nil, err
	}

	challenge, err := ticket.CreateChallenge(k0, senderIdentity)
	if err != nil {
		return nil, err
	}

	p := &Packet{Header: header, Transaction: sealedTx}
	copy(p.Challenge[:], challenge[:])
	copy(p.Message[:], msgCipher)
	return p, nil
}

// TransformResult is what Transform returns for a single packet at a
// single hop: either the next packet to forward, or the final message,
// never both.
type TransformResult struct {
	// Terminal reports whether this hop is the destination.
	Terminal bool

	// Packet is the packet to forward to NextAddress. It is nil when
	// Terminal is true.
	Packet *Packet

	// NextAddress is the address this packet must be forwarded to. It
	// is the zero Address when Terminal is true.
	NextAddress Address

	// Message is the fully-decrypted message body. It is set only when
	// Terminal is true; at a relay it is the zero value and the
	// partially-peeled layer travels in Packet.Message.
	Message [MessageSize]byte
}

// Transform performs the one-pass processing a single hop applies to an
// incoming packet, per spec §4.2's "Transform at hop i": MAC
// verification, replay rejection, beta peeling, challenge verification,
// packet-channel binding, message-layer decryption, and — unless this
// hop is the destination — re-blinding and re-signing for the next hop.
// selfKey serves both roles a hop's single keypair plays: the private
// scalar used to derive the shared secret from Alpha, and the identity
// key used to sign the challenge handed to the next hop.
func Transform(selfKey *btcec.PrivateKey, self, prev Address, pkt *Packet, maxHops int,
	replayChecker ReplayChecker, binder HopBinder) (*TransformResult, error) {

	secret := primitives.DeriveSharedSecret(selfKey, pkt.Header.Alpha)

	gotMac := primitives.Mac(primitives.MuKey(secret), pkt.Header.Beta)
	if !primitives.ConstantTimeCompareMAC(gotMac, pkt.Header.Mac) {
		return nil, ErrMACMismatch
	}

	tag := primitives.DeriveTagParameters(secret)
	fresh, err := replayChecker.SeenOrInsert(tag)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, ErrReplay
	}

	nextBeta, hd := peelBeta(pkt.Header.Beta, secret, maxHops)

	ownKeyHalf := primitives.DeriveTransactionKey(secret)

	signer, err := ticket.GetCounterparty(ticket.Challenge(pkt.Challenge), ownKeyHalf)
	if err != nil {
		return nil, err
	}
	if AddressFromPubKey(signer) != prev {
		return nil, ticket.ErrChallengeSignature
	}

	terminal := hd.nextAddress == self

	tx, err := openTransaction(primitives.TransactionSealKey(ownKeyHalf), pkt.Transaction)
	if err != nil {
		return nil, err
	}

	bindResult, err := binder.Bind(prev, hd.nextAddress, terminal, tx,
		ownKeyHalf, hd.nextKeyHalf)
	if err != nil {
		return nil, err
	}

	var msg [MessageSize]byte
	stream := primitives.GenerateCipherStream(primitives.MessageKey(secret), MessageSize)
	primitives.XOR(msg[:], pkt.Message[:], stream)

	if terminal {
		return &TransformResult{Terminal: true, Message: msg}, nil
	}

	blindingFactor := primitives.ComputeBlindingFactor(pkt.Header.Alpha, secret)
	nextAlpha := primitives.BlindGroupElement(pkt.Header.Alpha, blindingFactor)

	nextChallenge, err := ticket.UpdateChallenge(hd.nextKeyHalf, selfKey)
	if err != nil {
		return nil, err
	}

	outSealedTx, err := sealTransaction(primitives.TransactionSealKey(hd.nextKeyHalf), bindResult.OutgoingTransaction)
	if err != nil {
		return nil, err
	}

	outPkt := &Packet{
		Header:      &Header{Alpha: nextAlpha, Beta: nextBeta, Mac: hd.mac},
		Transaction: outSealedTx,
	}
	copy(outPkt.Challenge[:], nextChallenge[:])
	copy(outPkt.Message[:], msg[:])

	return &TransformResult{
		Terminal:    false,
		Packet:      outPkt,
		NextAddress: hd.nextAddress,
	}, nil
}
