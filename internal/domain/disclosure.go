package domain

// DisclosureSet is what a holder hands to a relying party: hashes for every
// field, plain values for the revealed ones, and a commitment over the rest.
type DisclosureSet struct {
	PerFieldHash         map[string][]byte `json:"field_hashes"`
	RevealedValues       map[string]string `json:"disclosed_fields"`
	UnrevealedCommitment []byte            `json:"unrevealed_commitment,omitempty"`
}

// DisclosureResult reports each revealed field separately so a caller can
// tell "nothing revealed" apart from "one field tampered".
type DisclosureResult struct {
	Valid          bool     `json:"valid"`
	VerifiedFields []string `json:"verified_fields"`
	Mismatched     []string `json:"mismatched_fields,omitempty"`
	Unknown        []string `json:"unknown_fields,omitempty"`
}
