package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"addrproof/internal/domain"
	"addrproof/internal/infra/disclosure"
)

type prepareOutput struct {
	FieldHashes map[string]string `json:"field_hashes"`
	Digest      string            `json:"digest"`
}

// revealOutput is what a holder sends; Nonce stays with the holder and is
// only printed so it can be kept.
type revealOutput struct {
	DisclosedFields      map[string]string `json:"disclosed_fields"`
	FieldHashes          map[string]string `json:"field_hashes"`
	UnrevealedCommitment string            `json:"unrevealed_commitment"`
	Nonce                string            `json:"nonce,omitempty"`
}

func runDisclosePrepare(args []string) int {
	fs := newFlagSet("disclose prepare")
	var recordPath, hashAlg string
	fs.StringVar(&recordPath, "record", "", "record JSON (object of strings)")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	engine, record, code := loadRecord(recordPath, hashAlg)
	if engine == nil {
		return code
	}
	hashes, err := engine.Prepare(record)
	if err != nil {
		return fail("prepare: %v", err)
	}
	if err := writeJSON("", prepareOutput{
		FieldHashes: hexMap(hashes),
		Digest:      hex.EncodeToString(engine.Digest(hashes)),
	}); err != nil {
		return fail("write hashes: %v", err)
	}
	return 0
}

func runDiscloseReveal(args []string) int {
	fs := newFlagSet("disclose reveal")
	var recordPath, fields, hashAlg, outPath string
	fs.StringVar(&recordPath, "record", "", "record JSON (object of strings)")
	fs.StringVar(&fields, "fields", "", "comma separated fields to reveal")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	engine, record, code := loadRecord(recordPath, hashAlg)
	if engine == nil {
		return code
	}
	set, nonce, err := engine.Reveal(record, splitFields(fields))
	if err != nil {
		return fail("reveal: %v", err)
	}
	if err := writeJSON(outPath, revealOutput{
		DisclosedFields:      set.RevealedValues,
		FieldHashes:          hexMap(set.PerFieldHash),
		UnrevealedCommitment: hex.EncodeToString(set.UnrevealedCommitment),
		Nonce:                hex.EncodeToString(nonce),
	}); err != nil {
		return fail("write disclosure: %v", err)
	}
	return 0
}

func runDiscloseVerify(args []string) int {
	fs := newFlagSet("disclose verify")
	var inPath, digestHex, nonceHex, hashAlg string
	fs.StringVar(&inPath, "in", "", "disclosure JSON from disclose reveal")
	fs.StringVar(&digestHex, "digest", "", "expected field digest from the credential")
	fs.StringVar(&nonceHex, "nonce", "", "holder nonce to recheck the unrevealed commitment")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		return fail("disclose verify requires --in")
	}
	provider, err := providerFor(hashAlg)
	if err != nil {
		return fail("hash-alg: %v", err)
	}
	var in revealOutput
	if err := readJSON(inPath, &in); err != nil {
		return fail("read disclosure: %v", err)
	}
	set, err := disclosureSet(in)
	if err != nil {
		return fail("disclosure: %v", err)
	}
	engine := disclosure.New(provider)

	ok := true
	result := engine.VerifySet(set)
	ok = ok && result.Valid
	fmt.Fprintf(stdout, "fields.valid=%t verified=%s\n", result.Valid, strings.Join(result.VerifiedFields, ","))
	if len(result.Mismatched) > 0 {
		fmt.Fprintf(stdout, "fields.mismatched=%s\n", strings.Join(result.Mismatched, ","))
	}
	if len(result.Unknown) > 0 {
		fmt.Fprintf(stdout, "fields.unknown=%s\n", strings.Join(result.Unknown, ","))
	}
	if digestHex != "" {
		match := hex.EncodeToString(engine.Digest(set.PerFieldHash)) == strings.ToLower(digestHex)
		ok = ok && match
		fmt.Fprintf(stdout, "digest.valid=%t\n", match)
	}
	if nonceHex != "" {
		nonce, err := hex.DecodeString(nonceHex)
		if err != nil {
			return fail("nonce: %v", err)
		}
		match := engine.VerifyUnrevealed(set, nonce)
		ok = ok && match
		fmt.Fprintf(stdout, "unrevealed.valid=%t\n", match)
	}
	if ok {
		return 0
	}
	return 1
}

func loadRecord(path, hashAlg string) (*disclosure.Engine, map[string]string, int) {
	if path == "" {
		return nil, nil, fail("--record is required")
	}
	provider, err := providerFor(hashAlg)
	if err != nil {
		return nil, nil, fail("hash-alg: %v", err)
	}
	var record map[string]string
	if err := readJSON(path, &record); err != nil {
		return nil, nil, fail("read record: %v", err)
	}
	return disclosure.New(provider), record, 0
}

func disclosureSet(in revealOutput) (domain.DisclosureSet, error) {
	hashes := make(map[string][]byte, len(in.FieldHashes))
	for name, value := range in.FieldHashes {
		decoded, err := hex.DecodeString(value)
		if err != nil {
			return domain.DisclosureSet{}, fmt.Errorf("field_hashes[%s]: %w", name, err)
		}
		hashes[name] = decoded
	}
	unrevealed, err := hex.DecodeString(in.UnrevealedCommitment)
	if err != nil {
		return domain.DisclosureSet{}, fmt.Errorf("unrevealed_commitment: %w", err)
	}
	return domain.DisclosureSet{
		PerFieldHash:         hashes,
		RevealedValues:       in.DisclosedFields,
		UnrevealedCommitment: unrevealed,
	}, nil
}

func hexMap(in map[string][]byte) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = hex.EncodeToString(v)
	}
	return out
}
