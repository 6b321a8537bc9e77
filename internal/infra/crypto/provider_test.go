package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestProviderDigests(t *testing.T) {
	cases := []struct {
		alg  string
		want string
	}{
		{AlgSHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{AlgBLAKE2b, "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319"},
	}
	for _, tc := range cases {
		p, err := NewProvider(tc.alg, nil)
		if err != nil {
			t.Fatalf("provider %s: %v", tc.alg, err)
		}
		if got := hex.EncodeToString(p.Sum([]byte("a"), []byte("bc"))); got != tc.want {
			t.Fatalf("%s digest mismatch: got %s", tc.alg, got)
		}
	}
}

func TestProviderBlake3Shape(t *testing.T) {
	p, err := NewProvider("BLAKE3", nil)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if p.Name() != AlgBLAKE3 {
		t.Fatalf("unexpected name %q", p.Name())
	}
	sum := p.Sum([]byte("abc"))
	if len(sum) != DigestSize {
		t.Fatalf("expected %d byte digest, got %d", DigestSize, len(sum))
	}
	if bytes.Equal(sum, Default().Sum([]byte("abc"))) {
		t.Fatal("expected blake3 and sha256 to differ")
	}
	if !bytes.Equal(sum, p.Sum([]byte("ab"), []byte("c"))) {
		t.Fatal("expected streaming sum to match")
	}
}

func TestProviderUnknownAlg(t *testing.T) {
	if _, err := NewProvider("md5", nil); err == nil {
		t.Fatal("expected unsupported algorithm error")
	}
}

func TestProviderRandom(t *testing.T) {
	p := Default()
	a, err := p.Random(32)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	b, err := p.Random(32)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("expected distinct random draws")
	}
	if _, err := p.Random(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}
