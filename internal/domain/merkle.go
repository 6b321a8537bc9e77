package domain

import "time"

// MerkleProof is an inclusion path for one leaf. LeafCount tells the
// verifier at which levels the last node was promoted without a sibling.
type MerkleProof struct {
	Leaf      []byte   `json:"leaf"`
	Path      [][]byte `json:"path"`
	Index     int      `json:"index"`
	LeafCount int      `json:"leaf_count"`
}

// LeafSet is a published, versioned set of registered identifiers.
type LeafSet struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Leaves    []string  `json:"leaves"`
	Root      []byte    `json:"root"`
	UpdatedAt time.Time `json:"updated_at"`
}
