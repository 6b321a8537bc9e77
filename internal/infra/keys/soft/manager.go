package soft

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"

	"addrproof/internal/domain"
)

const Alg = "ed25519"

// Manager is the in-process Ed25519 KeyManager. Keys are plain byte slices
// supplied by the caller; the manager keeps no key state.
type Manager struct {
	random io.Reader
}

func NewManager() *Manager {
	return &Manager{random: rand.Reader}
}

// NewManagerWithRandom draws key material from random. Tests use it to make
// generated keys deterministic.
func NewManagerWithRandom(random io.Reader) *Manager {
	if random == nil {
		random = rand.Reader
	}
	return &Manager{random: random}
}

func (m *Manager) Alg() string {
	return Alg
}

func (m *Manager) GenerateKeyPair() (domain.KeyPair, error) {
	random := io.Reader(rand.Reader)
	if m != nil && m.random != nil {
		random = m.random
	}
	pub, priv, err := ed25519.GenerateKey(random)
	if err != nil {
		return domain.KeyPair{}, domain.NewError(domain.CodeCrypto, "generate key pair", err)
	}
	return domain.KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

func (m *Manager) Sign(message []byte, privateKey []byte) ([]byte, error) {
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, domain.NewError(domain.CodeInput, "sign", err)
	}
	return ed25519.Sign(key, message), nil
}

func (m *Manager) Verify(message []byte, signature []byte, publicKey []byte) bool {
	return verifyEd25519(publicKey, message, signature) == nil
}

// PublicKey derives the public half of a seed or full private key.
func PublicKey(privateKey []byte) ([]byte, error) {
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), key.Public().(ed25519.PublicKey)...), nil
}

// PrivateKey expands a seed or full private key into a signer.
func PrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	return parsePrivateKey(raw)
}

func parsePrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.New("invalid ed25519 private key length")
	}
}

func verifyEd25519(pubKey, payload, sig []byte) error {
	if len(pubKey) != ed25519.PublicKeySize {
		return errors.New("invalid ed25519 public key length")
	}
	if len(sig) != ed25519.SignatureSize {
		return errors.New("invalid ed25519 signature length")
	}
	if !ed25519.Verify(pubKey, payload, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}
