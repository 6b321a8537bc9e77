package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyPair holds opaque key material. The private half never leaves the
// party that generated it.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
}

// KeyManager signs and verifies byte strings with caller-supplied keys.
// Verify reports false for a wrong key, a tampered message or a malformed
// signature; it never panics.
type KeyManager interface {
	Alg() string
	GenerateKeyPair() (KeyPair, error)
	Sign(message []byte, privateKey []byte) ([]byte, error)
	Verify(message []byte, signature []byte, publicKey []byte) bool
}

// KeyID derives a stable identifier for a public key.
func KeyID(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return hex.EncodeToString(sum[:])
}
