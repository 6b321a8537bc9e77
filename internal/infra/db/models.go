package db

import "time"

// RevocationListModel is one signed version of an issuer's list. Versions
// are never updated in place.
type RevocationListModel struct {
	IssuerID   string    `gorm:"primaryKey"`
	Version    int64     `gorm:"primaryKey"`
	Head       string    `gorm:"not null"`
	Signature  string    `gorm:"not null"`
	EntryCount int       `gorm:"not null"`
	Payload    []byte    `gorm:"type:jsonb;not null"`
	UpdatedAt  time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (RevocationListModel) TableName() string {
	return "revocation_lists"
}
