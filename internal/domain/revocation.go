package domain

import "time"

type RevocationEntry struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason"`
	NewID     string    `json:"new_id,omitempty"`
	RevokedAt time.Time `json:"revoked_at"`
}

// RevocationList is append-only. Every mutation yields version+1 and each
// version is signed on its own.
type RevocationList struct {
	Issuer    string            `json:"issuer"`
	Version   int64             `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Entries   []RevocationEntry `json:"entries"`
	Head      string            `json:"head"`
	Signature string            `json:"signature,omitempty"`
}

func (l *RevocationList) Clone() *RevocationList {
	if l == nil {
		return nil
	}
	out := *l
	out.Entries = append([]RevocationEntry(nil), l.Entries...)
	return &out
}
