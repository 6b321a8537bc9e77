package main

import (
	"encoding/hex"
	"fmt"

	"addrproof/internal/infra/crypto"
)

type commitOutput struct {
	Commitment string `json:"commitment"`
	Randomness string `json:"randomness"`
}

func runCommit(args []string) int {
	fs := newFlagSet("commit")
	var message, randomnessHex, hashAlg string
	fs.StringVar(&message, "message", "", "message to commit to")
	fs.StringVar(&randomnessHex, "randomness-hex", "", "randomness (default: 32 fresh bytes)")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if message == "" {
		return fail("commit requires --message")
	}
	provider, err := providerFor(hashAlg)
	if err != nil {
		return fail("hash-alg: %v", err)
	}
	var randomness []byte
	if randomnessHex != "" {
		if randomness, err = hex.DecodeString(randomnessHex); err != nil {
			return fail("randomness-hex: %v", err)
		}
	}

	c, err := crypto.NewCommitments(provider).Commit([]byte(message), randomness)
	if err != nil {
		return fail("commit: %v", err)
	}
	if err := writeJSON("", commitOutput{
		Commitment: hex.EncodeToString(c.Hash),
		Randomness: hex.EncodeToString(c.Randomness),
	}); err != nil {
		return fail("write commitment: %v", err)
	}
	return 0
}

func runOpen(args []string) int {
	fs := newFlagSet("open")
	var commitmentHex, message, randomnessHex, hashAlg string
	fs.StringVar(&commitmentHex, "commitment", "", "commitment hex")
	fs.StringVar(&message, "message", "", "claimed message")
	fs.StringVar(&randomnessHex, "randomness", "", "randomness hex")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if commitmentHex == "" || randomnessHex == "" {
		return fail("open requires --commitment and --randomness")
	}
	provider, err := providerFor(hashAlg)
	if err != nil {
		return fail("hash-alg: %v", err)
	}
	commitment, err := hex.DecodeString(commitmentHex)
	if err != nil {
		return fail("commitment: %v", err)
	}
	randomness, err := hex.DecodeString(randomnessHex)
	if err != nil {
		return fail("randomness: %v", err)
	}

	ok := crypto.NewCommitments(provider).Open(commitment, []byte(message), randomness)
	fmt.Fprintf(stdout, "valid=%t\n", ok)
	if ok {
		return 0
	}
	return 1
}
