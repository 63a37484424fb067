package sphinx

import (
	"github.com/ilodi/hoprnet/primitives"
	"golang.org/x/crypto/chacha20poly1305"
)

// sealTransaction AEAD-seals plaintext (exactly TransactionPlaintextSize
// bytes) under key with an all-zero nonce. A single key only ever seals
// one plaintext — see primitives.TransactionSealKey — so the fixed nonce
// never repeats for a given key.
func sealTransaction(key [primitives.KeySize]byte, plaintext []byte) ([TransactionFieldSize]byte, error) {
	var sealed [TransactionFieldSize]byte

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return sealed, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	out := aead.Seal(nil, nonce, plaintext, nil)
	copy(sealed[:], out)
	return sealed, nil
}

// openTransaction authenticates and decrypts sealed under key, returning
// the TransactionPlaintextSize-byte plaintext.
func openTransaction(key [primitives.KeySize]byte, sealed [TransactionFieldSize]byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	plaintext, err := aead.Open(nil, nonce, sealed[:], nil)
	if err != nil {
		return nil, ErrTransactionSeal
	}
	return plaintext, nil
}
