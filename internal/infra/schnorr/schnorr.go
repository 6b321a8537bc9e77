// Package schnorr binds a proof bundle to the holder of a key: the holder
// answers a relying party's fresh challenge with a Schnorr proof of
// knowledge of the discrete log of the key in the credential.
package schnorr

import (
	"crypto/subtle"
	"errors"

	ed "filippo.io/edwards25519"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
)

const (
	ChallengeSize = 32
	PointSize     = 32
	ScalarSize    = 32
)

var errDecode = errors.New("schnorr: malformed encoding")

// GenerateHolderKey returns a scalar private key and its compressed point.
func GenerateHolderKey(p crypto.Provider) (domain.KeyPair, error) {
	x, err := randomScalar(p)
	if err != nil {
		return domain.KeyPair{}, domain.NewError(domain.CodeCrypto, "generate holder key", err)
	}
	X := (&ed.Point{}).ScalarBaseMult(x)
	return domain.KeyPair{PrivateKey: x.Bytes(), PublicKey: X.Bytes()}, nil
}

// NewChallenge is drawn by the relying party and sent to the holder.
func NewChallenge(p crypto.Provider) ([]byte, error) {
	return p.Random(ChallengeSize)
}

// Prove answers challenge with (R, s) where s = k + c·x.
func Prove(p crypto.Provider, privateKey []byte, challenge []byte) (domain.HolderBinding, error) {
	if len(challenge) == 0 {
		return domain.HolderBinding{}, domain.InputError("holder proof", "challenge is required")
	}
	x, err := (&ed.Scalar{}).SetCanonicalBytes(privateKey)
	if err != nil {
		return domain.HolderBinding{}, domain.InputError("holder proof", "invalid holder private key")
	}
	k, err := randomScalar(p)
	if err != nil {
		return domain.HolderBinding{}, domain.NewError(domain.CodeCrypto, "holder proof", err)
	}
	X := (&ed.Point{}).ScalarBaseMult(x)
	R := (&ed.Point{}).ScalarBaseMult(k)
	c := challengeScalar(p, X.Bytes(), R.Bytes(), challenge)
	s := ed.NewScalar().MultiplyAdd(c, x, k)
	return domain.HolderBinding{
		Commitment: R.Bytes(),
		Challenge:  append([]byte(nil), challenge...),
		Response:   s.Bytes(),
	}, nil
}

// Verify checks s·B == R + c·X. Adversarial encodings are rejected, as are
// public keys of small order.
func Verify(p crypto.Provider, publicKey []byte, binding domain.HolderBinding) bool {
	if p == nil {
		p = crypto.Default()
	}
	X, err := decodePublicKey(publicKey)
	if err != nil {
		return false
	}
	if len(binding.Commitment) != PointSize || len(binding.Challenge) == 0 {
		return false
	}
	R, err := (&ed.Point{}).SetBytes(binding.Commitment)
	if err != nil {
		return false
	}
	s, err := (&ed.Scalar{}).SetCanonicalBytes(binding.Response)
	if err != nil {
		return false
	}
	c := challengeScalar(p, publicKey, binding.Commitment, binding.Challenge)
	lhs := (&ed.Point{}).ScalarBaseMult(s)
	rhs := (&ed.Point{}).Add(R, (&ed.Point{}).ScalarMult(c, X))
	return lhs.Equal(rhs) == 1
}

// VerifyFor additionally requires the transcript to answer expected.
func VerifyFor(p crypto.Provider, publicKey []byte, binding domain.HolderBinding, expected []byte) bool {
	if len(expected) == 0 || subtle.ConstantTimeCompare(binding.Challenge, expected) != 1 {
		return false
	}
	return Verify(p, publicKey, binding)
}

func decodePublicKey(b []byte) (*ed.Point, error) {
	if len(b) != PointSize {
		return nil, errDecode
	}
	X, err := (&ed.Point{}).SetBytes(b)
	if err != nil {
		return nil, err
	}
	if (&ed.Point{}).MultByCofactor(X).Equal(ed.NewIdentityPoint()) == 1 {
		return nil, errDecode
	}
	return X, nil
}

// challengeScalar reduces two tagged digests, giving the 64 uniform bytes
// the scalar field needs regardless of the provider's digest size.
func challengeScalar(p crypto.Provider, X, R, nonce []byte) *ed.Scalar {
	wide := make([]byte, 0, 2*crypto.DigestSize)
	wide = append(wide, p.Sum([]byte{crypto.TagChallenge, 0}, X, R, nonce)...)
	wide = append(wide, p.Sum([]byte{crypto.TagChallenge, 1}, X, R, nonce)...)
	c, err := ed.NewScalar().SetUniformBytes(wide)
	if err != nil {
		// Unreachable: wide is always 64 bytes.
		panic(err)
	}
	return c
}

func randomScalar(p crypto.Provider) (*ed.Scalar, error) {
	if p == nil {
		p = crypto.Default()
	}
	seed, err := p.Random(64)
	if err != nil {
		return nil, err
	}
	return ed.NewScalar().SetUniformBytes(seed)
}
