package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"addrproof/internal/domain"
	"addrproof/internal/infra/jwtvc"
	"addrproof/internal/infra/keys/soft"
	"addrproof/internal/infra/keys/tinkkeys"
	"addrproof/internal/usecase"
	"addrproof/pkg/bundle"
)

type issueOutput struct {
	Credential       domain.Credential `json:"credential"`
	Token            string            `json:"token,omitempty"`
	LockerRandomness string            `json:"locker_randomness,omitempty"`
}

func keyManagerFor(alg string) (domain.KeyManager, error) {
	switch alg {
	case "", soft.Alg:
		return soft.NewManager(), nil
	case tinkkeys.Alg:
		return tinkkeys.NewManager(), nil
	default:
		return nil, fmt.Errorf("unsupported key alg %q", alg)
	}
}

func runCredentialIssue(args []string) int {
	fs := newFlagSet("credential issue")
	var issuerID, subjectID, pid, recordPath, holderKey, lockerID string
	var keyHex, keyBase64, alg, hashAlg, outPath string
	var expiresIn time.Duration
	var asJWT bool
	fs.StringVar(&issuerID, "issuer-id", "", "issuer id")
	fs.StringVar(&subjectID, "subject-id", "", "subject id")
	fs.StringVar(&pid, "pid", "", "address identifier")
	fs.StringVar(&recordPath, "record", "", "address record JSON to bind as a field digest")
	fs.StringVar(&holderKey, "holder-key", "", "holder public key (hex or base64)")
	fs.StringVar(&lockerID, "locker-id", "", "parcel locker id to commit to")
	fs.StringVar(&keyHex, "key-hex", "", "issuer private key hex")
	fs.StringVar(&keyBase64, "key-base64", "", "issuer private key base64")
	fs.StringVar(&alg, "alg", soft.Alg, "issuer key alg (ed25519|tink-ed25519)")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	fs.DurationVar(&expiresIn, "expires-in", 0, "lifetime (default: no expiry)")
	fs.BoolVar(&asJWT, "jwt", false, "also wrap the credential in a JWT (ed25519 only)")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if issuerID == "" || subjectID == "" || pid == "" {
		return fail("credential issue requires --issuer-id, --subject-id and --pid")
	}
	privateKey, err := readPrivateKey(keyHex, keyBase64)
	if err != nil {
		return fail("issuer key: %v", err)
	}
	keys, err := keyManagerFor(alg)
	if err != nil {
		return fail("alg: %v", err)
	}
	provider, err := providerFor(hashAlg)
	if err != nil {
		return fail("hash-alg: %v", err)
	}
	builder := usecase.NewProofBuilder(provider)

	in := usecase.AddressClaimsInput{PID: pid}
	if recordPath != "" {
		if err := readJSON(recordPath, &in.Record); err != nil {
			return fail("read record: %v", err)
		}
	}
	if holderKey != "" {
		if in.HolderKey, err = bundle.DecodeKey(holderKey); err != nil {
			return fail("holder-key: %v", err)
		}
	}
	var out issueOutput
	if lockerID != "" {
		c, err := builder.CommitLocker(lockerID)
		if err != nil {
			return fail("locker: %v", err)
		}
		in.Locker = &c
		out.LockerRandomness = hex.EncodeToString(c.Randomness)
	}
	claims, err := builder.AddressClaims(in)
	if err != nil {
		return fail("claims: %v", err)
	}

	issuer := usecase.NewCredentialIssuer(keys, nil)
	var expiresAt *time.Time
	if expiresIn > 0 {
		exp := time.Now().UTC().Add(expiresIn)
		expiresAt = &exp
	}
	cred, err := issuer.Issue(subjectID, issuerID, claims, expiresAt)
	if err != nil {
		return fail("issue: %v", err)
	}
	if cred, err = issuer.Sign(cred, privateKey); err != nil {
		return fail("sign: %v", err)
	}
	out.Credential = cred
	if asJWT {
		if keys.Alg() != soft.Alg {
			return fail("--jwt needs an ed25519 issuer key")
		}
		if out.Token, err = jwtvc.NewEnvelope("", nil).Seal(cred, privateKey); err != nil {
			return fail("seal: %v", err)
		}
	}
	if err := writeJSON(outPath, out); err != nil {
		return fail("write credential: %v", err)
	}
	return 0
}

func runCredentialVerify(args []string) int {
	fs := newFlagSet("credential verify")
	var inPath, token, pubkey, revocationsPath, previousPath, alg, hashAlg string
	fs.StringVar(&inPath, "in", "", "credential JSON")
	fs.StringVar(&token, "token", "", "credential JWT")
	fs.StringVar(&pubkey, "pubkey", "", "issuer public key (hex or base64)")
	fs.StringVar(&revocationsPath, "revocations", "", "signed revocation list JSON")
	fs.StringVar(&previousPath, "previous-revocations", "", "earlier list the new one must extend")
	fs.StringVar(&alg, "alg", soft.Alg, "issuer key alg (ed25519|tink-ed25519)")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if (inPath == "") == (token == "") || pubkey == "" {
		return fail("credential verify requires one of --in or --token, and --pubkey")
	}
	publicKey, err := bundle.DecodeKey(pubkey)
	if err != nil {
		return fail("pubkey: %v", err)
	}
	keys, err := keyManagerFor(alg)
	if err != nil {
		return fail("alg: %v", err)
	}

	var cred domain.Credential
	if token != "" {
		if cred, err = jwtvc.NewEnvelope("", nil).Open(token, publicKey); err != nil {
			return fail("open token: %v", err)
		}
	} else if err := readJSON(inPath, &cred); err != nil {
		return fail("read credential: %v", err)
	}
	list, code := loadRevocations(revocationsPath, previousPath, hashAlg, keys, publicKey)
	if code != 0 {
		return code
	}

	state, err := usecase.NewCredentialIssuer(keys, nil).State(cred, publicKey, time.Now().UTC(), list)
	if err != nil {
		fmt.Fprintf(stdout, "state=invalid reason=%v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "state=%s id=%s issuer=%s\n", state, cred.ID, cred.IssuerID)
	if state == domain.CredentialActive {
		return 0
	}
	return 1
}

// loadRevocations reads a list and refuses it unless it verifies under
// publicKey. With previousPath set, the list must also extend the earlier
// one entry for entry.
func loadRevocations(path, previousPath, hashAlg string, keys domain.KeyManager, publicKey []byte) (*domain.RevocationList, int) {
	if path == "" {
		if previousPath != "" {
			return nil, fail("--previous-revocations requires --revocations")
		}
		return nil, 0
	}
	provider, err := providerFor(hashAlg)
	if err != nil {
		return nil, fail("hash-alg: %v", err)
	}
	var list domain.RevocationList
	if err := readJSON(path, &list); err != nil {
		return nil, fail("read revocations: %v", err)
	}
	if err := usecase.VerifyList(provider, keys, publicKey, list); err != nil {
		return nil, fail("revocation list: %v", err)
	}
	if previousPath == "" {
		return &list, 0
	}
	var previous domain.RevocationList
	if err := readJSON(previousPath, &previous); err != nil {
		return nil, fail("read previous revocations: %v", err)
	}
	if err := usecase.VerifyList(provider, keys, publicKey, previous); err != nil {
		return nil, fail("previous revocation list: %v", err)
	}
	if err := usecase.VerifyAppendOnly(provider, previous, list); err != nil {
		return nil, fail("revocation list: %v", err)
	}
	return &list, 0
}

func readPrivateKey(keyHex, keyBase64 string) ([]byte, error) {
	switch {
	case keyHex != "" && keyBase64 != "":
		return nil, fmt.Errorf("use only one of --key-hex or --key-base64")
	case keyHex != "":
		return hex.DecodeString(keyHex)
	case keyBase64 != "":
		return base64.StdEncoding.DecodeString(keyBase64)
	default:
		return nil, fmt.Errorf("--key-hex or --key-base64 is required")
	}
}
