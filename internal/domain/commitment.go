package domain

// Commitment is a hiding and binding digest of a message. Randomness must be
// kept by the committer; without it the commitment can never be opened.
type Commitment struct {
	Hash       []byte `json:"commitment"`
	Randomness []byte `json:"randomness"`
}
