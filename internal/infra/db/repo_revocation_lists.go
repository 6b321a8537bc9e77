package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"addrproof/internal/domain"

	"gorm.io/gorm"
)

type RevocationListRepository struct {
	db *gorm.DB
}

func NewRevocationListRepository(db *gorm.DB) *RevocationListRepository {
	return &RevocationListRepository{db: db}
}

func (r *RevocationListRepository) Latest(ctx context.Context, issuerID string) (*domain.RevocationList, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RevocationListModel
	err := r.db.WithContext(ctx).
		Where("issuer_id = ?", issuerID).
		Order("version DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return listFromModel(model)
}

func (r *RevocationListRepository) GetVersion(ctx context.Context, issuerID string, version int64) (*domain.RevocationList, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RevocationListModel
	err := r.db.WithContext(ctx).
		Where("issuer_id = ? AND version = ?", issuerID, version).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return listFromModel(model)
}

// Append stores the next version. The stored latest must be exactly one
// behind; anything else means another writer got there first.
func (r *RevocationListRepository) Append(ctx context.Context, list domain.RevocationList) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if list.Issuer == "" {
		return domain.InputError("append revocation list", "issuer is required")
	}
	if list.Version < 1 {
		return domain.InputError("append revocation list", "version must be positive")
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal revocation list: %w", err)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext(?))`, list.Issuer).Error; err != nil {
			return err
		}
		var latest int64
		if err := tx.Raw(
			`SELECT COALESCE(MAX(version), 0) FROM revocation_lists WHERE issuer_id = ?`,
			list.Issuer,
		).Scan(&latest).Error; err != nil {
			return err
		}
		if list.Version != latest+1 {
			return domain.StructuralError("append revocation list", "version %d does not follow stored version %d", list.Version, latest)
		}
		model := RevocationListModel{
			IssuerID:   list.Issuer,
			Version:    list.Version,
			Head:       list.Head,
			Signature:  list.Signature,
			EntryCount: len(list.Entries),
			Payload:    payload,
			UpdatedAt:  list.UpdatedAt,
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.Create(&model).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.StructuralError("append revocation list", "version %d already stored", list.Version)
			}
			return err
		}
		return nil
	})
}

func listFromModel(model RevocationListModel) (*domain.RevocationList, error) {
	var list domain.RevocationList
	if err := json.Unmarshal(model.Payload, &list); err != nil {
		return nil, fmt.Errorf("decode revocation list %s v%d: %w", model.IssuerID, model.Version, err)
	}
	if list.Issuer != model.IssuerID || list.Version != model.Version {
		return nil, domain.StructuralError("load revocation list", "payload of %s v%d names %s v%d", model.IssuerID, model.Version, list.Issuer, list.Version)
	}
	if list.Entries == nil {
		list.Entries = []domain.RevocationEntry{}
	}
	return &list, nil
}
