package usecase

import (
	"encoding/base64"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
	"addrproof/internal/infra/disclosure"
	"addrproof/internal/infra/merkle"
	"addrproof/internal/infra/schnorr"
)

// ProofBuilder assembles bundles on the holder side. Everything here runs
// for trusted callers, so failures are returned as errors.
type ProofBuilder struct {
	provider    crypto.Provider
	commitments *crypto.Commitments
	disclosure  *disclosure.Engine
}

func NewProofBuilder(provider crypto.Provider) *ProofBuilder {
	if provider == nil {
		provider = crypto.Default()
	}
	return &ProofBuilder{
		provider:    provider,
		commitments: crypto.NewCommitments(provider),
		disclosure:  disclosure.New(provider),
	}
}

// AddressClaimsInput lists what an issuer binds into an address
// credential. Record, HolderKey and Locker are optional.
type AddressClaimsInput struct {
	PID       string
	Record    map[string]string
	HolderKey []byte
	Locker    *domain.Commitment
}

func (b *ProofBuilder) AddressClaims(in AddressClaimsInput) (domain.Claims, error) {
	if in.PID == "" {
		return nil, domain.InputError("address claims", "pid is required")
	}
	claims := domain.Claims{domain.ClaimPID: in.PID}
	if len(in.Record) > 0 {
		hashes, err := b.disclosure.Prepare(in.Record)
		if err != nil {
			return nil, err
		}
		claims[domain.ClaimFieldDigest] = base64.StdEncoding.EncodeToString(b.disclosure.Digest(hashes))
	}
	if len(in.HolderKey) > 0 {
		claims[domain.ClaimHolderKey] = base64.StdEncoding.EncodeToString(in.HolderKey)
	}
	if in.Locker != nil {
		claims[domain.ClaimLockerCommitment] = base64.StdEncoding.EncodeToString(in.Locker.Hash)
	}
	return claims, nil
}

// CommitLocker commits to a parcel locker id for a locker credential.
func (b *ProofBuilder) CommitLocker(lockerID string) (domain.Commitment, error) {
	if lockerID == "" {
		return domain.Commitment{}, domain.InputError("commit locker", "locker_id is required")
	}
	return b.commitments.Commit([]byte(lockerID), nil)
}

func (b *ProofBuilder) Membership(cred domain.Credential, tree *merkle.Tree) (domain.ProofBundle, error) {
	pid, ok := cred.ClaimString(domain.ClaimPID)
	if !ok {
		return domain.ProofBundle{}, domain.InputError("membership bundle", "credential has no %s claim", domain.ClaimPID)
	}
	if tree == nil {
		return domain.ProofBundle{}, domain.InputError("membership bundle", "tree is required")
	}
	proof, err := tree.ProveLeaf(pid)
	if err != nil {
		return domain.ProofBundle{}, err
	}
	return domain.ProofBundle{
		Credential: cred,
		Proof:      domain.MembershipProof{Root: tree.Root(), Merkle: proof},
	}, nil
}

// Disclosure reveals fields of record. The returned nonce opens the
// unrevealed commitment later and stays with the holder.
func (b *ProofBuilder) Disclosure(cred domain.Credential, record map[string]string, fields []string) (domain.ProofBundle, []byte, error) {
	set, nonce, err := b.disclosure.Reveal(record, fields)
	if err != nil {
		return domain.ProofBundle{}, nil, err
	}
	return domain.ProofBundle{
		Credential: cred,
		Proof:      domain.DisclosureProof{Disclosure: set},
	}, nonce, nil
}

func (b *ProofBuilder) Version(cred domain.Credential, previousID string) domain.ProofBundle {
	return domain.ProofBundle{Credential: cred, Proof: domain.VersionProof{PreviousID: previousID}}
}

func (b *ProofBuilder) Locker(cred domain.Credential, lockerID string, randomness []byte) domain.ProofBundle {
	return domain.ProofBundle{
		Credential: cred,
		Proof:      domain.LockerProof{LockerID: lockerID, Randomness: append([]byte(nil), randomness...)},
	}
}

// BindHolder answers a relying party challenge with the holder key.
func (b *ProofBuilder) BindHolder(bundle domain.ProofBundle, holderPrivateKey []byte, challenge []byte) (domain.ProofBundle, error) {
	binding, err := schnorr.Prove(b.provider, holderPrivateKey, challenge)
	if err != nil {
		return domain.ProofBundle{}, err
	}
	bundle.Holder = &binding
	return bundle, nil
}
