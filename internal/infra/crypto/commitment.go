package crypto

import (
	"crypto/subtle"
	"encoding/binary"

	"addrproof/internal/domain"
)

const DefaultRandomnessSize = 32

// Commitments computes H(tag ‖ len(r) ‖ r ‖ m). The length prefix keeps
// (r, m) pairs from sliding into each other.
type Commitments struct {
	provider Provider
}

func NewCommitments(provider Provider) *Commitments {
	if provider == nil {
		provider = Default()
	}
	return &Commitments{provider: provider}
}

// Commit binds message under randomness, drawing fresh randomness when none
// is supplied.
func (c *Commitments) Commit(message []byte, randomness []byte) (domain.Commitment, error) {
	if len(randomness) == 0 {
		fresh, err := c.provider.Random(DefaultRandomnessSize)
		if err != nil {
			return domain.Commitment{}, domain.NewError(domain.CodeCrypto, "commit", err)
		}
		randomness = fresh
	} else {
		randomness = append([]byte(nil), randomness...)
	}
	return domain.Commitment{
		Hash:       c.digest(message, randomness),
		Randomness: randomness,
	}, nil
}

// Open reports whether commitment was produced from (message, randomness).
func (c *Commitments) Open(commitment []byte, message []byte, randomness []byte) bool {
	if len(commitment) != DigestSize || len(randomness) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(commitment, c.digest(message, randomness)) == 1
}

func (c *Commitments) digest(message, randomness []byte) []byte {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(randomness)))
	return c.provider.Sum([]byte{TagCommitment}, size[:], randomness, message)
}
