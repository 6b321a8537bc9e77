package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
)

type CredentialIssuer struct {
	keys  domain.KeyManager
	now   func() time.Time
	newID func() string
}

func NewCredentialIssuer(keys domain.KeyManager, now func() time.Time) *CredentialIssuer {
	if now == nil {
		now = time.Now
	}
	return &CredentialIssuer{
		keys:  keys,
		now:   now,
		newID: func() string { return "urn:uuid:" + uuid.NewString() },
	}
}

// Issue builds an unsigned credential. Claims are copied so later changes
// by the caller do not leak in.
func (i *CredentialIssuer) Issue(subjectID, issuerID string, claims domain.Claims, expiresAt *time.Time) (domain.Credential, error) {
	subjectID = strings.TrimSpace(subjectID)
	issuerID = strings.TrimSpace(issuerID)
	if subjectID == "" {
		return domain.Credential{}, domain.InputError("issue credential", "subject_id is required")
	}
	if issuerID == "" {
		return domain.Credential{}, domain.InputError("issue credential", "issuer_id is required")
	}
	issuedAt := timestamp(i.now())
	var exp *time.Time
	if expiresAt != nil {
		e := timestamp(*expiresAt)
		if !e.After(issuedAt) {
			return domain.Credential{}, domain.InputError("issue credential", "expires_at must be after issued_at")
		}
		exp = &e
	}
	copied := make(domain.Claims, len(claims))
	for k, v := range claims {
		copied[k] = v
	}
	return domain.Credential{
		ID:        i.newID(),
		SubjectID: subjectID,
		IssuerID:  issuerID,
		Claims:    copied,
		IssuedAt:  issuedAt,
		ExpiresAt: exp,
	}, nil
}

// Sign attaches an issuer signature over the canonical form of cred. A
// credential that already carries a proof is refused.
func (i *CredentialIssuer) Sign(cred domain.Credential, privateKey []byte) (domain.Credential, error) {
	if cred.Proof != nil {
		return domain.Credential{}, domain.InputError("sign credential", "credential %s is already signed", cred.ID)
	}
	if cred.ID == "" || cred.IssuerID == "" {
		return domain.Credential{}, domain.InputError("sign credential", "credential id and issuer_id are required")
	}
	sig, err := crypto.SignPayload(i.keys, privateKey, cred)
	if err != nil {
		return domain.Credential{}, err
	}
	cred.Proof = &domain.CredentialProof{
		Type:               domain.CredentialProofType,
		Created:            timestamp(i.now()),
		VerificationMethod: cred.IssuerID,
		Signature:          sig,
	}
	return cred, nil
}

// Verify checks the signature only. Expiry and revocation are separate
// checks.
func (i *CredentialIssuer) Verify(cred domain.Credential, publicKey []byte) bool {
	return VerifyCredentialSignature(i.keys, cred, publicKey) == nil
}

// Renew issues and signs a successor with a fresh id and issue time. The
// original credential is left as it was.
func (i *CredentialIssuer) Renew(cred domain.Credential, privateKey []byte, expiresAt *time.Time) (domain.Credential, error) {
	next, err := i.Issue(cred.SubjectID, cred.IssuerID, cred.Claims, expiresAt)
	if err != nil {
		return domain.Credential{}, err
	}
	return i.Sign(next, privateKey)
}

// State derives the lifecycle state at now. Revocation is decided by list
// alone; the credential holds no timers of its own.
func (i *CredentialIssuer) State(cred domain.Credential, publicKey []byte, now time.Time, list *domain.RevocationList) (domain.CredentialState, error) {
	if cred.Proof == nil {
		return domain.CredentialDraft, nil
	}
	if len(publicKey) == 0 {
		return domain.CredentialSigned, nil
	}
	if err := VerifyCredentialSignature(i.keys, cred, publicKey); err != nil {
		return "", err
	}
	for _, id := range cred.Identifiers() {
		if IsRevoked(id, list) {
			return domain.CredentialRevoked, nil
		}
	}
	if cred.ExpiredAt(now) {
		return domain.CredentialExpired, nil
	}
	return domain.CredentialActive, nil
}

func VerifyCredentialSignature(keys domain.KeyManager, cred domain.Credential, publicKey []byte) error {
	if keys == nil {
		return errors.New("key manager is required")
	}
	if cred.Proof == nil {
		return fmt.Errorf("%w: credential is unsigned", domain.ErrSignatureInvalid)
	}
	if cred.Proof.Type != domain.CredentialProofType {
		return fmt.Errorf("%w: unsupported proof type %q", domain.ErrSignatureInvalid, cred.Proof.Type)
	}
	sig := cred.Proof.Signature
	cred.Proof = nil
	return crypto.VerifyPayload(keys, publicKey, cred, sig)
}
