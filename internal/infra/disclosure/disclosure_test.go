package disclosure

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
)

func sampleRecord() map[string]string {
	return map[string]string{
		"country":     "JP",
		"prefecture":  "Tokyo",
		"city":        "Chiyoda",
		"postal_code": "100-0001",
		"street":      "1-1 Chiyoda",
	}
}

func TestRevealVerifyConsistent(t *testing.T) {
	engine := New(crypto.Default())
	set, nonce, err := engine.Reveal(sampleRecord(), []string{"country", "postal_code"})
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if len(nonce) != NonceSize {
		t.Fatalf("expected %d byte nonce, got %d", NonceSize, len(nonce))
	}
	if len(set.PerFieldHash) != 5 {
		t.Fatalf("expected hashes for every field, got %d", len(set.PerFieldHash))
	}
	result := engine.VerifySet(set)
	if !result.Valid {
		t.Fatalf("expected valid disclosure, got %+v", result)
	}
	if !reflect.DeepEqual(result.VerifiedFields, []string{"country", "postal_code"}) {
		t.Fatalf("unexpected verified fields %v", result.VerifiedFields)
	}
	if !engine.VerifyUnrevealed(set, nonce) {
		t.Fatal("expected unrevealed commitment to verify")
	}
}

func TestVerifyReportsSingleTamperedField(t *testing.T) {
	engine := New(nil)
	set, _, err := engine.Reveal(sampleRecord(), []string{"country", "city", "postal_code"})
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	set.RevealedValues["city"] = "Minato"

	result := engine.VerifySet(set)
	if result.Valid {
		t.Fatal("expected tampered disclosure to be invalid")
	}
	if !reflect.DeepEqual(result.Mismatched, []string{"city"}) {
		t.Fatalf("expected only city to mismatch, got %v", result.Mismatched)
	}
	if !reflect.DeepEqual(result.VerifiedFields, []string{"country", "postal_code"}) {
		t.Fatalf("expected other fields to verify, got %v", result.VerifiedFields)
	}
}

func TestVerifyNothingRevealed(t *testing.T) {
	engine := New(nil)
	hashes, err := engine.Prepare(sampleRecord())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	result := engine.Verify(map[string]string{}, hashes)
	if result.Valid {
		t.Fatal("expected empty reveal to be invalid")
	}
	if len(result.VerifiedFields) != 0 || len(result.Mismatched) != 0 {
		t.Fatalf("expected no per-field outcomes, got %+v", result)
	}
}

func TestVerifyUnknownField(t *testing.T) {
	engine := New(nil)
	hashes, err := engine.Prepare(sampleRecord())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	result := engine.Verify(map[string]string{"country": "JP", "unit": "5F"}, hashes)
	if result.Valid {
		t.Fatal("expected unknown field to invalidate the set")
	}
	if !reflect.DeepEqual(result.Unknown, []string{"unit"}) {
		t.Fatalf("unexpected unknown fields %v", result.Unknown)
	}
}

func TestFieldHashIsSaltedByName(t *testing.T) {
	engine := New(nil)
	if bytes.Equal(engine.FieldHash("city", "Chiyoda"), engine.FieldHash("street", "Chiyoda")) {
		t.Fatal("expected equal values under different names to hash differently")
	}
	if bytes.Equal(engine.FieldHash("ab", "c"), engine.FieldHash("a", "bc")) {
		t.Fatal("expected name/value boundary to be unambiguous")
	}
}

func TestDigestOrderIndependentAndBinding(t *testing.T) {
	engine := New(nil)
	a, err := engine.Prepare(sampleRecord())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	b, err := engine.Prepare(sampleRecord())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !bytes.Equal(engine.Digest(a), engine.Digest(b)) {
		t.Fatal("expected identical digests")
	}
	delete(b, "street")
	if bytes.Equal(engine.Digest(a), engine.Digest(b)) {
		t.Fatal("expected dropped field to change digest")
	}
}

func TestVerifyUnrevealedDetectsChanges(t *testing.T) {
	engine := New(nil)
	set, nonce, err := engine.Reveal(sampleRecord(), []string{"country"})
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	wrongNonce := append([]byte(nil), nonce...)
	wrongNonce[0] ^= 0xff
	if engine.VerifyUnrevealed(set, wrongNonce) {
		t.Fatal("expected wrong nonce to fail")
	}

	set.PerFieldHash["street"] = engine.FieldHash("street", "2-2 Marunouchi")
	if engine.VerifyUnrevealed(set, nonce) {
		t.Fatal("expected swapped hidden field to fail")
	}
}

func TestRevealFullRecord(t *testing.T) {
	engine := New(nil)
	record := sampleRecord()
	names := make([]string, 0, len(record))
	for name := range record {
		names = append(names, name)
	}
	set, nonce, err := engine.Reveal(record, names)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !engine.VerifyUnrevealed(set, nonce) {
		t.Fatal("expected empty hidden set commitment to verify")
	}
}

func TestRevealRejectsBadInput(t *testing.T) {
	engine := New(nil)
	if _, _, err := engine.Reveal(sampleRecord(), []string{"unit"}); domain.CodeOf(err) != domain.CodeInput {
		t.Fatalf("expected input error, got %v", err)
	}
	if _, err := engine.Prepare(nil); !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected empty input error, got %v", err)
	}
}
