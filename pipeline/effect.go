package pipeline

import "github.com/ilodi/hoprnet/sphinx"

// Effect is the outcome of processing one packet: the pure
// function-over-an-immutable-input-producing-an-effect-description
// design spec §9 calls for. Exactly one concrete type is returned per
// Process call.
type Effect interface {
	effect()
}

// EffectForward is returned when the packet was successfully
// transformed and must be sent on to NextAddress.
type EffectForward struct {
	Packet      []byte
	NextAddress sphinx.Address
}

func (EffectForward) effect() {}

// EffectDeliver is returned when this hop is the destination: Message
// is the fully-decrypted plaintext.
type EffectDeliver struct {
	Message []byte
}

func (EffectDeliver) effect() {}

// EffectDrop is returned when the packet was rejected as adversarial
// input (spec §7's silent-drop class). No further action is taken; the
// caller only increments a drop counter.
type EffectDrop struct {
	Reason error
}

func (EffectDrop) effect() {}
