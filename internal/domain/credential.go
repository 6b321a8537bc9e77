package domain

import "time"

// Claim names the proof engine relies on. Issuers may add any others.
const (
	ClaimPID              = "pid"
	ClaimFieldDigest      = "field_digest"
	ClaimLockerCommitment = "locker_commitment"
	ClaimHolderKey        = "holder_key"
)

const CredentialProofType = "Ed25519Signature"

type Claims map[string]any

// Credential binds a subject to claims. A signed credential is never
// mutated; renewal produces a new one.
type Credential struct {
	ID        string           `json:"id"`
	SubjectID string           `json:"subject_id"`
	IssuerID  string           `json:"issuer_id"`
	Claims    Claims           `json:"claims"`
	IssuedAt  time.Time        `json:"issued_at"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	Proof     *CredentialProof `json:"proof,omitempty"`
}

type CredentialProof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verification_method"`
	Signature          string    `json:"signature"`
}

type CredentialState string

const (
	CredentialDraft   CredentialState = "draft"
	CredentialSigned  CredentialState = "signed"
	CredentialActive  CredentialState = "active"
	CredentialExpired CredentialState = "expired"
	CredentialRevoked CredentialState = "revoked"
)

func (c Credential) ClaimString(key string) (string, bool) {
	if c.Claims == nil {
		return "", false
	}
	v, ok := c.Claims[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ExpiredAt reports whether now is at or past the expiry. Credentials
// without an expiry never expire.
func (c Credential) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Identifiers lists every id a revocation entry may name for this credential.
func (c Credential) Identifiers() []string {
	ids := make([]string, 0, 3)
	for _, id := range []string{c.ID, c.SubjectID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if pid, ok := c.ClaimString(ClaimPID); ok {
		ids = append(ids, pid)
	}
	return ids
}
