package usecase

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
	"addrproof/internal/infra/disclosure"
	"addrproof/internal/infra/merkle"
	"addrproof/internal/infra/schnorr"
)

const defaultBatchConcurrency = 8

type ProofVerifier struct {
	provider    crypto.Provider
	keys        domain.KeyManager
	commitments *crypto.Commitments
	disclosure  *disclosure.Engine
	observer    VerificationObserver
	now         func() time.Time
	concurrency int
}

type ProofVerifierConfig struct {
	Provider    crypto.Provider
	Keys        domain.KeyManager
	Observer    VerificationObserver
	Now         func() time.Time
	Concurrency int
}

func NewProofVerifier(cfg ProofVerifierConfig) *ProofVerifier {
	if cfg.Provider == nil {
		cfg.Provider = crypto.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultBatchConcurrency
	}
	return &ProofVerifier{
		provider:    cfg.Provider,
		keys:        cfg.Keys,
		commitments: crypto.NewCommitments(cfg.Provider),
		disclosure:  disclosure.New(cfg.Provider),
		observer:    cfg.Observer,
		now:         cfg.Now,
		concurrency: cfg.Concurrency,
	}
}

// VerifyCredential checks signature and expiry, not revocation.
func (v *ProofVerifier) VerifyCredential(cred domain.Credential, issuerPublicKey []byte, now time.Time) bool {
	if err := VerifyCredentialSignature(v.keys, cred, issuerPublicKey); err != nil {
		return false
	}
	return !cred.ExpiredAt(now)
}

func (v *ProofVerifier) VerifyMembership(proof domain.MerkleProof, expectedRoot []byte) bool {
	return merkle.VerifyProof(v.provider, proof, expectedRoot)
}

func (v *ProofVerifier) VerifyDisclosure(set domain.DisclosureSet) domain.DisclosureResult {
	return v.disclosure.VerifySet(set)
}

// VerifyFull runs every check in order and stops at the first failure. It
// never panics: bundles come from untrusted parties.
func (v *ProofVerifier) VerifyFull(bundle domain.ProofBundle, vctx domain.VerificationContext) (verdict domain.Verdict) {
	started := time.Now()
	at := vctx.Now
	if at.IsZero() {
		at = v.now()
	}
	defer func() {
		if r := recover(); r != nil {
			verdict = domain.Fail(domain.CheckInput, domain.InputError("verify", "malformed bundle: %v", r), at)
		}
		if v.observer != nil {
			v.observer.ObserveVerdict(verdict, time.Since(started))
		}
	}()

	if check, err := v.runChecks(bundle, vctx, at); err != nil {
		verdict = domain.Fail(check, err, at)
		if bundle.Proof != nil {
			verdict.ProofType = bundle.Proof.Kind()
		}
		return verdict
	}

	verdict = domain.Verdict{Valid: true, ProofType: bundle.Proof.Kind(), CheckedAt: at}
	if p, ok := bundle.Proof.(domain.DisclosureProof); ok {
		result := v.disclosure.VerifySet(p.Disclosure)
		verdict.Disclosed = copyStrings(p.Disclosure.RevealedValues)
		verdict.VerifiedFields = result.VerifiedFields
	}
	return verdict
}

func (v *ProofVerifier) runChecks(bundle domain.ProofBundle, vctx domain.VerificationContext, at time.Time) (domain.Check, error) {
	cred := bundle.Credential
	if err := checkInput(bundle, vctx); err != nil {
		return domain.CheckInput, err
	}
	if err := VerifyCredentialSignature(v.keys, cred, vctx.IssuerPublicKey); err != nil {
		return domain.CheckSignature, domain.NewError(domain.CodeCrypto, "signature", err)
	}
	if cred.ExpiredAt(at) {
		return domain.CheckExpiry, domain.NewError(domain.CodeExpired, "expiry", fmt.Errorf("%w at %s", domain.ErrExpired, cred.ExpiresAt.Format(time.RFC3339)))
	}
	for _, id := range cred.Identifiers() {
		if IsRevoked(id, vctx.Revocations) {
			return domain.CheckRevocation, domain.NewError(domain.CodeRevoked, "revocation", fmt.Errorf("%w: %s", domain.ErrRevoked, id))
		}
	}
	if err := v.checkHolder(bundle, vctx); err != nil {
		return domain.CheckHolderBinding, err
	}

	switch p := bundle.Proof.(type) {
	case domain.MembershipProof:
		return domain.CheckMembership, v.checkMembership(cred, p, vctx)
	case domain.DisclosureProof:
		return domain.CheckDisclosure, v.checkDisclosure(cred, p)
	case domain.VersionProof:
		return domain.CheckVersion, checkVersion(cred, p, vctx)
	case domain.LockerProof:
		return domain.CheckLocker, v.checkLocker(cred, p)
	default:
		return domain.CheckInput, domain.InputError("verify", "unsupported proof type %T", bundle.Proof)
	}
}

func checkInput(bundle domain.ProofBundle, vctx domain.VerificationContext) error {
	if bundle.Proof == nil {
		return domain.InputError("verify", "proof is required")
	}
	if bundle.Credential.ID == "" || bundle.Credential.IssuerID == "" {
		return domain.InputError("verify", "credential id and issuer_id are required")
	}
	if bundle.Credential.Proof == nil {
		return domain.InputError("verify", "credential is unsigned")
	}
	if len(vctx.IssuerPublicKey) == 0 {
		return domain.InputError("verify", "issuer public key is required")
	}
	return nil
}

// checkHolder runs when the relying party asked for holder binding or
// issued a challenge. A transcript the relying party did not ask for is
// ignored.
func (v *ProofVerifier) checkHolder(bundle domain.ProofBundle, vctx domain.VerificationContext) error {
	if !vctx.RequireHolderBinding && len(vctx.Challenge) == 0 {
		return nil
	}
	const op = "holder binding"
	if bundle.Holder == nil {
		return domain.InputError(op, "holder proof is required")
	}
	if len(vctx.Challenge) == 0 {
		return domain.InputError(op, "no challenge was issued")
	}
	holderKey, err := claimBytes(bundle.Credential, domain.ClaimHolderKey)
	if err != nil {
		return domain.InputError(op, "%v", err)
	}
	if !schnorr.VerifyFor(v.provider, holderKey, *bundle.Holder, vctx.Challenge) {
		return domain.NewError(domain.CodeCrypto, op, fmt.Errorf("%w: holder proof rejected for this challenge", domain.ErrSignatureInvalid))
	}
	return nil
}

func (v *ProofVerifier) checkMembership(cred domain.Credential, p domain.MembershipProof, vctx domain.VerificationContext) error {
	const op = "membership"
	pid, ok := cred.ClaimString(domain.ClaimPID)
	if !ok {
		return domain.InputError(op, "credential has no %s claim", domain.ClaimPID)
	}
	if len(vctx.ExpectedRoot) == 0 {
		return domain.InputError(op, "expected root is required")
	}
	if len(p.Root) > 0 && !bytes.Equal(p.Root, vctx.ExpectedRoot) {
		return domain.NewError(domain.CodeCrypto, op, errors.New("proof targets a different root"))
	}
	if string(p.Merkle.Leaf) != pid {
		return domain.NewError(domain.CodeCrypto, op, errors.New("leaf is not the credential pid"))
	}
	if err := merkle.CheckShape(p.Merkle); err != nil {
		return err
	}
	if !merkle.VerifyProof(v.provider, p.Merkle, vctx.ExpectedRoot) {
		return domain.NewError(domain.CodeCrypto, op, errors.New("path does not lead to the expected root"))
	}
	return nil
}

func (v *ProofVerifier) checkDisclosure(cred domain.Credential, p domain.DisclosureProof) error {
	const op = "disclosure"
	digest, err := claimBytes(cred, domain.ClaimFieldDigest)
	if err != nil {
		return domain.InputError(op, "%v", err)
	}
	if len(p.Disclosure.RevealedValues) == 0 {
		return domain.InputError(op, "no fields revealed")
	}
	if subtle.ConstantTimeCompare(digest, v.disclosure.Digest(p.Disclosure.PerFieldHash)) != 1 {
		return domain.NewError(domain.CodeCrypto, op, fmt.Errorf("%w: field hashes do not match the credential", domain.ErrCommitmentMismatch))
	}
	result := v.disclosure.VerifySet(p.Disclosure)
	if len(result.Unknown) > 0 {
		return domain.StructuralError(op, "revealed fields without a hash: %s", strings.Join(result.Unknown, ","))
	}
	if !result.Valid {
		return domain.NewError(domain.CodeCrypto, op, fmt.Errorf("%w: fields %s", domain.ErrCommitmentMismatch, strings.Join(result.Mismatched, ",")))
	}
	return nil
}

func checkVersion(cred domain.Credential, p domain.VersionProof, vctx domain.VerificationContext) error {
	const op = "version"
	pid, ok := cred.ClaimString(domain.ClaimPID)
	if !ok {
		return domain.InputError(op, "credential has no %s claim", domain.ClaimPID)
	}
	if p.PreviousID == "" {
		return domain.InputError(op, "previous_id is required")
	}
	if vctx.Revocations == nil {
		return domain.InputError(op, "revocation list is required")
	}
	next, ok := ResolveForward(p.PreviousID, vctx.Revocations)
	if !ok {
		return domain.NewError(domain.CodeNotFound, op, fmt.Errorf("%w: %s has no successor", domain.ErrNotFound, p.PreviousID))
	}
	if next != pid {
		return domain.StructuralError(op, "%s forwards to %s, not %s", p.PreviousID, next, pid)
	}
	return nil
}

func (v *ProofVerifier) checkLocker(cred domain.Credential, p domain.LockerProof) error {
	const op = "locker"
	commitment, err := claimBytes(cred, domain.ClaimLockerCommitment)
	if err != nil {
		return domain.InputError(op, "%v", err)
	}
	if p.LockerID == "" || len(p.Randomness) == 0 {
		return domain.InputError(op, "locker_id and randomness are required")
	}
	if !v.commitments.Open(commitment, []byte(p.LockerID), p.Randomness) {
		return domain.NewError(domain.CodeCrypto, op, domain.ErrCommitmentMismatch)
	}
	return nil
}

// VerifyBatch verifies independent bundles concurrently. Verdicts line up
// with bundles; the only error is ctx cancellation.
func (v *ProofVerifier) VerifyBatch(ctx context.Context, bundles []domain.ProofBundle, vctx domain.VerificationContext) ([]domain.Verdict, error) {
	if vctx.Now.IsZero() {
		vctx.Now = v.now()
	}
	verdicts := make([]domain.Verdict, len(bundles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i := range bundles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			verdicts[i] = v.VerifyFull(bundles[i], vctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

// claimBytes decodes a base64 claim.
func claimBytes(cred domain.Credential, key string) ([]byte, error) {
	raw, ok := cred.ClaimString(key)
	if !ok {
		return nil, fmt.Errorf("credential has no %s claim", key)
	}
	out, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("claim %s is not base64", key)
	}
	return out, nil
}

func copyStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
