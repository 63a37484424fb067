package pipeline

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ilodi/hoprnet/errclass"
	"github.com/ilodi/hoprnet/replay"
	"github.com/ilodi/hoprnet/sphinx"
)

// MaxHops bounds every Pipeline constructed by New to the packet format
// this module ships, matching sphinx.DefaultMaxHops. A deployment
// needing a different bound constructs its Pipeline fields directly.
const MaxHops = sphinx.DefaultMaxHops

// Pipeline is the top-level driver of spec §2's data flow: decode →
// onion transform → replay guard → channel binding → re-encrypt → emit.
// It is the only package that inspects an error's errclass.Class,
// per spec §7's propagation rule — sphinx and channel only ever return
// typed, classified errors.
type Pipeline struct {
	SelfKey     *btcec.PrivateKey
	SelfAddress sphinx.Address
	MaxHops     int

	Replay *replay.Guard
	Source *SourceBinder
	Hop    *HopBinder
}

// New returns a Pipeline for selfKey, wired to the given binders and
// replay guard, bounded to sphinx.DefaultMaxHops.
func New(selfKey *btcec.PrivateKey, guard *replay.Guard, source *SourceBinder, hop *HopBinder) *Pipeline {
	return &Pipeline{
		SelfKey:     selfKey,
		SelfAddress: sphinx.AddressFromPubKey(selfKey.PubKey()),
		MaxHops:     MaxHops,
		Replay:      guard,
		Source:      source,
		Hop:         hop,
	}
}

// Construct builds the packet a sender hands to the first hop in path,
// per spec §4.2's construction at source. It generates a fresh
// ephemeral session key for the onion's Diffie-Hellman layering.
func (p *Pipeline) Construct(path sphinx.Path, message []byte, relayFee uint64) (*sphinx.Packet, error) {
	sessionKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errclass.Fatal(err)
	}
	return sphinx.Construct(path, sessionKey, p.SelfKey, message, relayFee, p.Source, p.MaxHops)
}

// Process implements the full per-hop data flow of spec §2 for one
// incoming frame received from the hop at address from: decode, onion
// transform (which itself performs the MAC check, replay check, and
// packet-channel binding of spec §4.2/§4.4/§4.6), and translation of the
// result into an Effect.
//
// Process never returns a non-nil error for adversarial input: those
// are folded into EffectDrop so that a caller's retry loop cannot
// confuse "drop this packet" with "retry this operation." Only
// recoverable and fatal errors are returned as errors, per spec §7's
// classification.
func (p *Pipeline) Process(from sphinx.Address, frame []byte) (Effect, error) {
	pkt, err := sphinx.DecodePacket(frame, p.MaxHops)
	if err != nil {
		return p.classify(err)
	}

	result, err := sphinx.Transform(p.SelfKey, p.SelfAddress, from, pkt, p.MaxHops, p.Replay, p.Hop)
	if err != nil {
		return p.classify(err)
	}

	if result.Terminal {
		msg := make([]byte, len(result.Message))
		copy(msg, result.Message[:])
		return EffectDeliver{Message: msg}, nil
	}

	return EffectForward{
		Packet:      result.Packet.ToBuffer(),
		NextAddress: result.NextAddress,
	}, nil
}

func (p *Pipeline) classify(err error) (Effect, error) {
	if errclass.Is(err, errclass.ClassDrop) {
		log.Debugf("dropping packet: %v", err)
		return EffectDrop{Reason: err}, nil
	}
	return nil, err
}
