package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"addrproof/internal/domain"
)

func TestCommitVector(t *testing.T) {
	randomness := make([]byte, 32)
	for i := range randomness {
		randomness[i] = byte(i + 1)
	}
	c, err := NewCommitments(Default()).Commit([]byte("JP-13-113-01"), randomness)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	want := "91dc8f4b72a548558435cec728df46929e3f6868f63eb1bcd162402d06c2261c"
	if got := hex.EncodeToString(c.Hash); got != want {
		t.Fatalf("commitment mismatch: got %s want %s", got, want)
	}
	if !bytes.Equal(c.Randomness, randomness) {
		t.Fatal("expected supplied randomness to be returned")
	}
}

func TestCommitOpenRoundTrip(t *testing.T) {
	for _, alg := range []string{AlgSHA256, AlgBLAKE3, AlgBLAKE2b} {
		t.Run(alg, func(t *testing.T) {
			provider, err := NewProvider(alg, nil)
			if err != nil {
				t.Fatalf("provider: %v", err)
			}
			engine := NewCommitments(provider)
			messages := [][]byte{
				[]byte(""),
				[]byte("JP-14-201-05"),
				bytes.Repeat([]byte{0xff}, 1024),
			}
			for _, msg := range messages {
				c, err := engine.Commit(msg, nil)
				if err != nil {
					t.Fatalf("commit: %v", err)
				}
				if len(c.Randomness) != DefaultRandomnessSize {
					t.Fatalf("expected %d bytes of randomness, got %d", DefaultRandomnessSize, len(c.Randomness))
				}
				if !engine.Open(c.Hash, msg, c.Randomness) {
					t.Fatal("expected commitment to open")
				}
				other := append(append([]byte(nil), msg...), 'x')
				if engine.Open(c.Hash, other, c.Randomness) {
					t.Fatal("expected different message to be rejected")
				}
			}
		})
	}
}

func TestOpenRejectsWrongRandomnessAndMalformedInput(t *testing.T) {
	engine := NewCommitments(Default())
	c, err := engine.Commit([]byte("US-CA-90210"), nil)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	wrong := append([]byte(nil), c.Randomness...)
	wrong[0] ^= 0x01
	if engine.Open(c.Hash, []byte("US-CA-90210"), wrong) {
		t.Fatal("expected wrong randomness to fail")
	}
	if engine.Open(c.Hash[:16], []byte("US-CA-90210"), c.Randomness) {
		t.Fatal("expected truncated commitment to fail")
	}
	if engine.Open(c.Hash, []byte("US-CA-90210"), nil) {
		t.Fatal("expected missing randomness to fail")
	}
}

func TestCommitLengthPrefixSeparatesRandomnessAndMessage(t *testing.T) {
	engine := NewCommitments(Default())
	a, err := engine.Commit([]byte("bc"), []byte("a"))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	b, err := engine.Commit([]byte("c"), []byte("ab"))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if bytes.Equal(a.Hash, b.Hash) {
		t.Fatal("expected distinct commitments for shifted boundaries")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestCommitRandomnessFailure(t *testing.T) {
	provider, err := NewProvider(AlgSHA256, failingReader{})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	_, err = NewCommitments(provider).Commit([]byte("x"), nil)
	if err == nil {
		t.Fatal("expected randomness failure")
	}
	if domain.CodeOf(err) != domain.CodeCrypto {
		t.Fatalf("expected crypto error code, got %s", domain.CodeOf(err))
	}
}
