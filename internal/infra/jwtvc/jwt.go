package jwtvc

import (
	"crypto/ed25519"
	"errors"
	"time"

	"addrproof/internal/domain"
	"addrproof/internal/infra/keys/soft"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries a signed credential inside a compact JWT so it can travel
// through systems that only understand bearer tokens.
type Claims struct {
	Credential domain.Credential `json:"vc"`
	jwt.RegisteredClaims
}

type Envelope struct {
	audience string
	now      func() time.Time
}

func NewEnvelope(audience string, now func() time.Time) *Envelope {
	if now == nil {
		now = time.Now
	}
	return &Envelope{audience: audience, now: now}
}

// Seal wraps cred in an EdDSA JWT. The registered claims mirror the
// credential so generic JWT tooling can check expiry.
func (e *Envelope) Seal(cred domain.Credential, privateKey []byte) (string, error) {
	if cred.Proof == nil {
		return "", domain.InputError("seal credential", "credential is not signed")
	}
	key, err := soft.PrivateKey(privateKey)
	if err != nil {
		return "", domain.NewError(domain.CodeInput, "seal credential", err)
	}
	claims := Claims{
		Credential: cred,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       cred.ID,
			Issuer:   cred.IssuerID,
			Subject:  cred.SubjectID,
			IssuedAt: jwt.NewNumericDate(cred.IssuedAt),
		},
	}
	if cred.ExpiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*cred.ExpiresAt)
	}
	if e.audience != "" {
		claims.Audience = []string{e.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", domain.NewError(domain.CodeCrypto, "seal credential", err)
	}
	return signed, nil
}

// Open checks the JWT signature and registered claims and returns the
// embedded credential. The credential's own proof is not checked here.
func (e *Envelope) Open(token string, publicKey []byte) (domain.Credential, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return domain.Credential{}, domain.InputError("open credential", "invalid ed25519 public key length")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(e.now),
		jwt.WithIssuedAt(),
	}
	if e.audience != "" {
		opts = append(opts, jwt.WithAudience(e.audience))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return ed25519.PublicKey(publicKey), nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Credential{}, domain.NewError(domain.CodeExpired, "open credential", domain.ErrExpired)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return domain.Credential{}, domain.InputError("open credential", "malformed token")
		default:
			return domain.Credential{}, domain.NewError(domain.CodeCrypto, "open credential", errors.Join(domain.ErrSignatureInvalid, err))
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Credential{}, domain.NewError(domain.CodeCrypto, "open credential", domain.ErrSignatureInvalid)
	}
	if claims.ID != claims.Credential.ID || claims.Issuer != claims.Credential.IssuerID || claims.Subject != claims.Credential.SubjectID {
		return domain.Credential{}, domain.StructuralError("open credential", "registered claims do not match credential")
	}
	return claims.Credential, nil
}
