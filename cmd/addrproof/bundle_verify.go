package main

import (
	"encoding/hex"
	"os"
	"time"

	"addrproof/internal/domain"
	"addrproof/internal/infra/keys/soft"
	"addrproof/internal/infra/merkle"
	"addrproof/internal/usecase"
	"addrproof/pkg/bundle"
)

func runBundleVerify(args []string) int {
	fs := newFlagSet("bundle verify")
	var inPath, pubkey, rootHex, leavesPath, revocationsPath, previousPath, challengeHex, alg, hashAlg string
	var requireHolder bool
	fs.StringVar(&inPath, "in", "", "proof bundle JSON")
	fs.StringVar(&pubkey, "pubkey", "", "issuer public key (hex or base64)")
	fs.StringVar(&rootHex, "root", "", "expected membership root hex")
	fs.StringVar(&leavesPath, "leaves", "", "registered identifiers, one per line, to derive the root")
	fs.StringVar(&revocationsPath, "revocations", "", "signed revocation list JSON")
	fs.StringVar(&previousPath, "previous-revocations", "", "earlier list the new one must extend")
	fs.StringVar(&challengeHex, "challenge", "", "challenge issued to the holder (hex)")
	fs.BoolVar(&requireHolder, "require-holder-binding", false, "fail bundles without a holder proof")
	fs.StringVar(&alg, "alg", soft.Alg, "issuer key alg (ed25519|tink-ed25519)")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || pubkey == "" {
		return fail("bundle verify requires --in and --pubkey")
	}
	if rootHex != "" && leavesPath != "" {
		return fail("use only one of --root or --leaves")
	}
	provider, err := providerFor(hashAlg)
	if err != nil {
		return fail("hash-alg: %v", err)
	}
	keys, err := keyManagerFor(alg)
	if err != nil {
		return fail("alg: %v", err)
	}
	publicKey, err := bundle.DecodeKey(pubkey)
	if err != nil {
		return fail("pubkey: %v", err)
	}

	vctx := domain.VerificationContext{
		IssuerPublicKey:      publicKey,
		RequireHolderBinding: requireHolder,
	}
	switch {
	case rootHex != "":
		if vctx.ExpectedRoot, err = hex.DecodeString(rootHex); err != nil {
			return fail("root: %v", err)
		}
	case leavesPath != "":
		leaves, err := readLeaves(leavesPath)
		if err != nil {
			return fail("read leaves: %v", err)
		}
		tree, err := merkle.BuildTree(provider, leaves)
		if err != nil {
			return fail("build tree: %v", err)
		}
		vctx.ExpectedRoot = tree.Root()
	}
	if challengeHex != "" {
		if vctx.Challenge, err = hex.DecodeString(challengeHex); err != nil {
			return fail("challenge: %v", err)
		}
	}
	list, code := loadRevocations(revocationsPath, previousPath, hashAlg, keys, publicKey)
	if code != 0 {
		return code
	}
	vctx.Revocations = list

	verifier := usecase.NewProofVerifier(usecase.ProofVerifierConfig{Provider: provider, Keys: keys})
	var verdict domain.Verdict
	payload, err := os.ReadFile(inPath)
	if err != nil {
		return fail("read bundle: %v", err)
	}
	if b, err := bundle.Decode(payload); err != nil {
		verdict = domain.Fail(domain.CheckInput, err, time.Now().UTC())
	} else {
		verdict = verifier.VerifyFull(b, vctx)
	}
	if err := writeJSON("", verdict); err != nil {
		return fail("write verdict: %v", err)
	}
	if verdict.Valid {
		return 0
	}
	return 1
}
