package domain

import "time"

type ProofKind string

const (
	ProofMembership      ProofKind = "membership"
	ProofSelectiveReveal ProofKind = "selective-reveal"
	ProofVersion         ProofKind = "version"
	ProofLocker          ProofKind = "locker"
)

// Proof is one of MembershipProof, DisclosureProof, VersionProof or
// LockerProof. Each variant carries only the fields its check needs.
type Proof interface {
	Kind() ProofKind
	isProof()
}

// MembershipProof shows the credential's pid is a leaf under Root.
type MembershipProof struct {
	Root   []byte
	Merkle MerkleProof
}

// DisclosureProof reveals a subset of the fields bound by the credential's
// field digest.
type DisclosureProof struct {
	Disclosure DisclosureSet
}

// VersionProof shows the credential's pid is the forwarding target of a
// previously revoked identifier.
type VersionProof struct {
	PreviousID string
}

// LockerProof opens the credential's locker commitment.
type LockerProof struct {
	LockerID   string
	Randomness []byte
}

func (MembershipProof) Kind() ProofKind { return ProofMembership }
func (DisclosureProof) Kind() ProofKind { return ProofSelectiveReveal }
func (VersionProof) Kind() ProofKind    { return ProofVersion }
func (LockerProof) Kind() ProofKind     { return ProofLocker }

func (MembershipProof) isProof() {}
func (DisclosureProof) isProof() {}
func (VersionProof) isProof()    {}
func (LockerProof) isProof()     {}

// HolderBinding is a Schnorr transcript: Commitment is R, Challenge is the
// relying party's nonce, Response is s.
type HolderBinding struct {
	Commitment []byte
	Challenge  []byte
	Response   []byte
}

type ProofBundle struct {
	Credential Credential
	Proof      Proof
	Holder     *HolderBinding
}

// VerificationContext is everything a relying party resolved out of band
// before verifying a bundle.
type VerificationContext struct {
	IssuerPublicKey      []byte
	Now                  time.Time
	Revocations          *RevocationList
	ExpectedRoot         []byte
	Challenge            []byte
	RequireHolderBinding bool
}
