package tinkkeys

import (
	"bytes"
	"testing"
)

func TestManager_SignVerifyRoundTrip(t *testing.T) {
	manager := NewManager()
	pair, err := manager.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := []byte("US-CA-90210")
	sig, err := manager.Sign(msg, pair.PrivateKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !manager.Verify(msg, sig, pair.PublicKey) {
		t.Fatal("expected signature to verify")
	}
	if manager.Verify([]byte("US-CA-90211"), sig, pair.PublicKey) {
		t.Fatal("expected tampered message to fail")
	}
}

func TestManager_VerifyRejectsWrongKeyAndGarbage(t *testing.T) {
	manager := NewManager()
	a, err := manager.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := manager.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sig, err := manager.Sign([]byte("m"), a.PrivateKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if manager.Verify([]byte("m"), sig, b.PublicKey) {
		t.Fatal("expected wrong key to fail")
	}
	if manager.Verify([]byte("m"), sig, []byte("garbage")) {
		t.Fatal("expected garbage keyset to fail")
	}
	if manager.Verify([]byte("m"), []byte{1, 2, 3}, a.PublicKey) {
		t.Fatal("expected malformed signature to fail")
	}
	// A private keyset must not be accepted where a public one is expected.
	if manager.Verify([]byte("m"), sig, a.PrivateKey) {
		t.Fatal("expected private keyset to be rejected as public key")
	}
}

func TestPublicKeyMatchesGenerated(t *testing.T) {
	pair, err := NewManager().GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub, err := PublicKey(pair.PrivateKey)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if !bytes.Equal(pub, pair.PublicKey) {
		t.Fatal("expected derived public keyset to match")
	}
}

func TestManager_SignRejectsEmptyKey(t *testing.T) {
	if _, err := NewManager().Sign([]byte("m"), nil); err == nil {
		t.Fatal("expected error for empty keyset")
	}
}
