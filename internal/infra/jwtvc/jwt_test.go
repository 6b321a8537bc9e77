package jwtvc

import (
	"strings"
	"testing"
	"time"

	"addrproof/internal/domain"
	"addrproof/internal/infra/keys/soft"
	"addrproof/internal/usecase"
)

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func signedCredential(t *testing.T, expiresIn time.Duration) (domain.Credential, domain.KeyPair) {
	t.Helper()
	keys := soft.NewManager()
	pair, err := keys.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	issuer := usecase.NewCredentialIssuer(keys, func() time.Time { return testNow })
	exp := testNow.Add(expiresIn)
	cred, err := issuer.Issue("holder-1", "issuer-jp", domain.Claims{domain.ClaimPID: "pid-1"}, &exp)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cred, err = issuer.Sign(cred, pair.PrivateKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return cred, pair
}

func TestEnvelopeRoundTrip(t *testing.T) {
	cred, pair := signedCredential(t, time.Hour)
	env := NewEnvelope("rp-courier", func() time.Time { return testNow.Add(time.Minute) })

	token, err := env.Seal(cred, pair.PrivateKey)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected compact jwt, got %q", token)
	}
	got, err := env.Open(token, pair.PublicKey)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.ID != cred.ID || got.Proof == nil || got.Proof.Signature != cred.Proof.Signature {
		t.Fatalf("unexpected credential %+v", got)
	}
	if !usecase.NewCredentialIssuer(soft.NewManager(), nil).Verify(got, pair.PublicKey) {
		t.Fatal("embedded credential signature should still verify")
	}
}

func TestEnvelopeRejects(t *testing.T) {
	cred, pair := signedCredential(t, time.Hour)
	otherPair, err := soft.NewManager().GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	env := NewEnvelope("rp-courier", func() time.Time { return testNow.Add(time.Minute) })
	token, err := env.Seal(cred, pair.PrivateKey)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := env.Open(token, otherPair.PublicKey); domain.CodeOf(err) != domain.CodeCrypto {
		t.Fatalf("expected crypto error for wrong key, got %v", err)
	}

	late := NewEnvelope("rp-courier", func() time.Time { return testNow.Add(2 * time.Hour) })
	if _, err := late.Open(token, pair.PublicKey); domain.CodeOf(err) != domain.CodeExpired {
		t.Fatalf("expected expired error, got %v", err)
	}

	wrongAudience := NewEnvelope("rp-bank", func() time.Time { return testNow.Add(time.Minute) })
	if _, err := wrongAudience.Open(token, pair.PublicKey); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}

	if _, err := env.Open("not-a-token", pair.PublicKey); domain.CodeOf(err) != domain.CodeInput {
		t.Fatalf("expected input error for malformed token, got %v", err)
	}

	if _, err := env.Open(token, []byte("short")); domain.CodeOf(err) != domain.CodeInput {
		t.Fatalf("expected input error for short key, got %v", err)
	}
}

func TestEnvelopeRequiresSignedCredential(t *testing.T) {
	cred, pair := signedCredential(t, time.Hour)
	cred.Proof = nil
	if _, err := NewEnvelope("", nil).Seal(cred, pair.PrivateKey); domain.CodeOf(err) != domain.CodeInput {
		t.Fatalf("expected input error, got %v", err)
	}
}
