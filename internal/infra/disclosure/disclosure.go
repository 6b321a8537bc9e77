// Package disclosure commits to every field of an address record separately
// so a holder can later reveal any subset of them.
package disclosure

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"sort"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
)

const NonceSize = 32

type Engine struct {
	provider crypto.Provider
}

func New(provider crypto.Provider) *Engine {
	if provider == nil {
		provider = crypto.Default()
	}
	return &Engine{provider: provider}
}

// FieldHash salts value with its own field name, so equal values under
// different names never collide.
func (e *Engine) FieldHash(name, value string) []byte {
	return e.provider.Sum([]byte{crypto.TagField}, be32(len(name)), []byte(name), []byte(value))
}

func (e *Engine) Prepare(record map[string]string) (map[string][]byte, error) {
	if len(record) == 0 {
		return nil, domain.NewError(domain.CodeInput, "prepare disclosure", domain.ErrEmptyInput)
	}
	out := make(map[string][]byte, len(record))
	for name, value := range record {
		if name == "" {
			return nil, domain.InputError("prepare disclosure", "field name is required")
		}
		out[name] = e.FieldHash(name, value)
	}
	return out, nil
}

// Digest binds the full set of field hashes into one value that a credential
// can carry as a claim.
func (e *Engine) Digest(perFieldHash map[string][]byte) []byte {
	h := e.provider.New()
	h.Write([]byte{crypto.TagFieldSet})
	for _, name := range sortedKeys(perFieldHash) {
		h.Write(be32(len(name)))
		h.Write([]byte(name))
		h.Write(perFieldHash[name])
	}
	return h.Sum(nil)
}

// Reveal discloses fields and commits to the hashes of everything else. The
// returned nonce stays with the holder; without it the unrevealed commitment
// cannot be rechecked.
func (e *Engine) Reveal(record map[string]string, fields []string) (domain.DisclosureSet, []byte, error) {
	hashes, err := e.Prepare(record)
	if err != nil {
		return domain.DisclosureSet{}, nil, err
	}
	revealed := make(map[string]string, len(fields))
	for _, name := range fields {
		value, ok := record[name]
		if !ok {
			return domain.DisclosureSet{}, nil, domain.InputError("reveal", "field %q is not in the record", name)
		}
		revealed[name] = value
	}
	nonce, err := e.provider.Random(NonceSize)
	if err != nil {
		return domain.DisclosureSet{}, nil, domain.NewError(domain.CodeCrypto, "reveal", err)
	}
	return domain.DisclosureSet{
		PerFieldHash:         hashes,
		RevealedValues:       revealed,
		UnrevealedCommitment: e.unrevealedCommitment(hashes, revealed, nonce),
	}, nonce, nil
}

// Verify checks every revealed value against its stored hash and reports the
// outcome per field. A set that reveals nothing is never valid.
func (e *Engine) Verify(revealed map[string]string, perFieldHash map[string][]byte) domain.DisclosureResult {
	result := domain.DisclosureResult{VerifiedFields: []string{}}
	for _, name := range sortedKeys(revealed) {
		stored, ok := perFieldHash[name]
		if !ok {
			result.Unknown = append(result.Unknown, name)
			continue
		}
		if subtle.ConstantTimeCompare(stored, e.FieldHash(name, revealed[name])) != 1 {
			result.Mismatched = append(result.Mismatched, name)
			continue
		}
		result.VerifiedFields = append(result.VerifiedFields, name)
	}
	result.Valid = len(result.VerifiedFields) > 0 && len(result.Mismatched) == 0 && len(result.Unknown) == 0
	return result
}

func (e *Engine) VerifySet(set domain.DisclosureSet) domain.DisclosureResult {
	return e.Verify(set.RevealedValues, set.PerFieldHash)
}

// VerifyUnrevealed recomputes the commitment over the fields a set did not
// reveal.
func (e *Engine) VerifyUnrevealed(set domain.DisclosureSet, nonce []byte) bool {
	if len(set.UnrevealedCommitment) != crypto.DigestSize || len(nonce) == 0 {
		return false
	}
	want := e.unrevealedCommitment(set.PerFieldHash, set.RevealedValues, nonce)
	return subtle.ConstantTimeCompare(set.UnrevealedCommitment, want) == 1
}

func (e *Engine) unrevealedCommitment(hashes map[string][]byte, revealed map[string]string, nonce []byte) []byte {
	hidden := make([][]byte, 0, len(hashes))
	for name, hash := range hashes {
		if _, ok := revealed[name]; ok {
			continue
		}
		hidden = append(hidden, hash)
	}
	sort.Slice(hidden, func(i, j int) bool {
		return bytes.Compare(hidden[i], hidden[j]) < 0
	})
	h := e.provider.New()
	h.Write([]byte{crypto.TagUnrevealed})
	for _, hash := range hidden {
		h.Write(hash)
	}
	h.Write(nonce)
	return h.Sum(nil)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func be32(n int) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	return b[:]
}
