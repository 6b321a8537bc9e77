package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

const (
	AlgSHA256  = "sha256"
	AlgBLAKE3  = "blake3"
	AlgBLAKE2b = "blake2b"
)

// DigestSize is shared by every supported hash.
const DigestSize = 32

// Domain separation prefixes. Each construction hashes its own tag first so
// a digest produced for one purpose can never be replayed as another.
const (
	TagLeaf       byte = 0x00
	TagNode       byte = 0x01
	TagCommitment byte = 0x02
	TagField      byte = 0x03
	TagUnrevealed byte = 0x04
	TagChain      byte = 0x05
	TagChallenge  byte = 0x06
	TagFieldSet   byte = 0x07
)

// Provider is the single source of hashing and randomness for the engine.
// It is chosen once at startup and passed to every component.
type Provider interface {
	Name() string
	New() hash.Hash
	Sum(parts ...[]byte) []byte
	Random(n int) ([]byte, error)
}

type hashProvider struct {
	name    string
	newHash func() hash.Hash
	rand    io.Reader
}

// NewProvider returns the provider for alg. A nil random reader means
// crypto/rand.
func NewProvider(alg string, random io.Reader) (Provider, error) {
	if random == nil {
		random = rand.Reader
	}
	switch strings.ToLower(strings.TrimSpace(alg)) {
	case "", AlgSHA256:
		return &hashProvider{name: AlgSHA256, newHash: sha256.New, rand: random}, nil
	case AlgBLAKE3:
		return &hashProvider{name: AlgBLAKE3, newHash: func() hash.Hash { return blake3.New() }, rand: random}, nil
	case AlgBLAKE2b:
		return &hashProvider{name: AlgBLAKE2b, newHash: newBlake2b256, rand: random}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", alg)
	}
}

// Default is SHA-256 over crypto/rand.
func Default() Provider {
	return &hashProvider{name: AlgSHA256, newHash: sha256.New, rand: rand.Reader}
}

func (p *hashProvider) Name() string {
	return p.name
}

func (p *hashProvider) New() hash.Hash {
	return p.newHash()
}

func (p *hashProvider) Sum(parts ...[]byte) []byte {
	h := p.newHash()
	for _, part := range parts {
		h.Write(part)
	}
	return h.Sum(nil)
}

func (p *hashProvider) Random(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid random length: %d", n)
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(p.rand, out); err != nil {
		return nil, fmt.Errorf("read randomness: %w", err)
	}
	return out, nil
}

func newBlake2b256() hash.Hash {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return h
}
