// Package errclass classifies every error the packet pipeline and the
// payment-channel state machine can produce into the three kinds the
// design calls for: a silent drop (adversarial input), a local
// recoverable failure (retried with backoff), or a fatal condition the
// supervisor must act on. Only the top-level pipeline driver inspects the
// class; every other package just returns a plain error, optionally
// wrapped with Drop/Recoverable/Fatal.
package errclass

import (
	"errors"

	goerrors "github.com/go-errors/errors"
)

// Class identifies which of the three error kinds an error belongs to.
type Class int

const (
	// ClassDrop covers adversarial input: MAC mismatch, replay hit,
	// invalid challenge signer, malformed length, index regression,
	// insufficient fee, wrong channel status. No warning is logged;
	// only a drop counter increments.
	ClassDrop Class = iota

	// ClassRecoverable covers transient infrastructure failures: kv
	// store or chain RPC hiccups, or a missing channel record that can
	// be rebuilt from on-chain state. Callers retry with backoff.
	ClassRecoverable

	// ClassFatal covers state the node cannot safely proceed from: an
	// on-chain channel with no local record, a reused nonce, a crypto
	// self-test failure, or a packet size mismatch from a trusted
	// transport. The supervisor shuts down the affected channel or the
	// process.
	ClassFatal
)

// String returns a human-readable label for the class.
func (c Class) String() string {
	switch c {
	case ClassDrop:
		return "drop"
	case ClassRecoverable:
		return "recoverable"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// classified wraps an error with its Class, letting the top-level driver
// recover the original classification without resorting to string
// matching or global sentinel registries.
type classified struct {
	class Class
	err   error
}

func (c *classified) Error() string { return c.err.Error() }

func (c *classified) Unwrap() error { return c.err }

// Drop wraps err as a silent-drop error.
func Drop(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: ClassDrop, err: err}
}

// Dropf formats a new silent-drop error.
func Dropf(format string, args ...interface{}) error {
	return Drop(goerrors.Errorf(format, args...))
}

// Recoverable wraps err as a local-recoverable error.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: ClassRecoverable, err: err}
}

// Recoverablef formats a new local-recoverable error.
func Recoverablef(format string, args ...interface{}) error {
	return Recoverable(goerrors.Errorf(format, args...))
}

// Fatal wraps err as a fatal error.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: ClassFatal, err: err}
}

// Fatalf formats a new fatal error.
func Fatalf(format string, args ...interface{}) error {
	return Fatal(goerrors.Errorf(format, args...))
}

// ClassOf reports the Class of err. Errors that were never wrapped by this
// package are treated as ClassRecoverable, the conservative default: they
// get retried rather than silently dropped or treated as fatal.
func ClassOf(err error) Class {
	var c *classified
	if errors.As(err, &c) {
		return c.class
	}
	return ClassRecoverable
}

// Is reports whether err was classified as class.
func Is(err error, class Class) bool {
	return ClassOf(err) == class
}
