package schnorr

import (
	"testing"

	ed "filippo.io/edwards25519"

	"addrproof/internal/infra/crypto"
)

func TestProveVerify(t *testing.T) {
	for _, alg := range []string{crypto.AlgSHA256, crypto.AlgBLAKE3} {
		p, err := crypto.NewProvider(alg, nil)
		if err != nil {
			t.Fatalf("provider: %v", err)
		}
		key, err := GenerateHolderKey(p)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		challenge, err := NewChallenge(p)
		if err != nil {
			t.Fatalf("challenge: %v", err)
		}
		binding, err := Prove(p, key.PrivateKey, challenge)
		if err != nil {
			t.Fatalf("prove: %v", err)
		}
		if !Verify(p, key.PublicKey, binding) {
			t.Fatalf("%s: expected binding to verify", alg)
		}
		if !VerifyFor(p, key.PublicKey, binding, challenge) {
			t.Fatalf("%s: expected binding to answer challenge", alg)
		}
	}
}

func TestVerifyRejectsReplayAndWrongKey(t *testing.T) {
	p := crypto.Default()
	key, err := GenerateHolderKey(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	other, err := GenerateHolderKey(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	challenge, _ := NewChallenge(p)
	binding, err := Prove(p, key.PrivateKey, challenge)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	fresh, _ := NewChallenge(p)
	if VerifyFor(p, key.PublicKey, binding, fresh) {
		t.Fatal("expected replay against a new challenge to fail")
	}
	if Verify(p, other.PublicKey, binding) {
		t.Fatal("expected wrong holder key to fail")
	}

	swapped := binding
	swapped.Challenge = fresh
	if Verify(p, key.PublicKey, swapped) {
		t.Fatal("expected transcript with substituted challenge to fail")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	p := crypto.Default()
	key, err := GenerateHolderKey(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	challenge, _ := NewChallenge(p)
	binding, err := Prove(p, key.PrivateKey, challenge)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	tampered := binding
	tampered.Response = append([]byte(nil), binding.Response...)
	tampered.Response[0] ^= 0x01
	if Verify(p, key.PublicKey, tampered) {
		t.Fatal("expected tampered response to fail")
	}

	nonCanonical := binding
	nonCanonical.Response = make([]byte, 32)
	for i := range nonCanonical.Response {
		nonCanonical.Response[i] = 0xff
	}
	if Verify(p, key.PublicKey, nonCanonical) {
		t.Fatal("expected non-canonical scalar to fail")
	}

	short := binding
	short.Commitment = binding.Commitment[:16]
	if Verify(p, key.PublicKey, short) {
		t.Fatal("expected short commitment to fail")
	}

	identity := ed.NewIdentityPoint().Bytes()
	if Verify(p, identity, binding) {
		t.Fatal("expected identity public key to fail")
	}
	if Verify(p, nil, binding) {
		t.Fatal("expected missing public key to fail")
	}
}

func TestProveRejectsBadInput(t *testing.T) {
	p := crypto.Default()
	key, err := GenerateHolderKey(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Prove(p, key.PrivateKey, nil); err == nil {
		t.Fatal("expected missing challenge error")
	}
	if _, err := Prove(p, []byte("short"), []byte("challenge")); err == nil {
		t.Fatal("expected invalid key error")
	}
}
