// Package bundle is the transport encoding of proof bundles. It is the only
// place that knows the JSON field names relying parties exchange.
package bundle

import (
	"time"

	"addrproof/internal/domain"
)

// Wire is the flat JSON form of a domain.ProofBundle. Digests, points and
// randomness are hex; the credential signature stays base64.
type Wire struct {
	ProofType  string             `json:"proof_type"`
	Credential *domain.Credential `json:"credential"`

	Commitment string `json:"commitment,omitempty"`
	Challenge  string `json:"challenge,omitempty"`
	Response   string `json:"response,omitempty"`

	MerkleRoot string   `json:"merkle_root,omitempty"`
	MerklePath []string `json:"merkle_path,omitempty"`
	Index      *int     `json:"index,omitempty"`
	LeafCount  int      `json:"leaf_count,omitempty"`
	Leaf       string   `json:"leaf,omitempty"`

	DisclosedFields      map[string]string `json:"disclosed_fields,omitempty"`
	FieldHashes          map[string]string `json:"field_hashes,omitempty"`
	UnrevealedCommitment string            `json:"unrevealed_commitment,omitempty"`

	PreviousID string `json:"previous_id,omitempty"`
	LockerID   string `json:"locker_id,omitempty"`
	Randomness string `json:"randomness,omitempty"`

	Signature string     `json:"signature,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
