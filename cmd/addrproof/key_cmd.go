package main

import (
	"encoding/base64"
	"encoding/hex"

	"addrproof/internal/domain"
	"addrproof/internal/infra/keys/soft"
	"addrproof/internal/infra/keys/tinkkeys"
	"addrproof/internal/infra/schnorr"
)

type keyOutput struct {
	Kind       string `json:"kind"`
	Alg        string `json:"alg"`
	KeyID      string `json:"key_id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func runKeygen(args []string) int {
	fs := newFlagSet("keygen")
	var kind, hashAlg, outPath string
	fs.StringVar(&kind, "kind", "issuer", "issuer (ed25519), tink (ed25519 keyset) or holder (schnorr)")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var (
		pair domain.KeyPair
		alg  string
		err  error
	)
	switch kind {
	case "issuer":
		m := soft.NewManager()
		alg = m.Alg()
		pair, err = m.GenerateKeyPair()
	case "tink":
		m := tinkkeys.NewManager()
		alg = m.Alg()
		pair, err = m.GenerateKeyPair()
	case "holder":
		provider, perr := providerFor(hashAlg)
		if perr != nil {
			return fail("hash-alg: %v", perr)
		}
		alg = "schnorr-edwards25519"
		pair, err = schnorr.GenerateHolderKey(provider)
	default:
		return fail("unknown key kind %q", kind)
	}
	if err != nil {
		return fail("generate key: %v", err)
	}

	out := keyOutput{
		Kind:       kind,
		Alg:        alg,
		KeyID:      domain.KeyID(pair.PublicKey),
		PublicKey:  hex.EncodeToString(pair.PublicKey),
		PrivateKey: base64.StdEncoding.EncodeToString(pair.PrivateKey),
	}
	if err := writeJSON(outPath, out); err != nil {
		return fail("write key: %v", err)
	}
	return 0
}
