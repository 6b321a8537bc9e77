package tinkkeys

import (
	"encoding/base64"
	"errors"
	"sync"

	"addrproof/internal/config"
	"addrproof/internal/domain"
)

// Keyring maps issuers to serialized private keysets.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string][]byte)}
}

// NewKeyringFromConfig loads ISSUER_KEYSET_BASE64 for the configured issuer.
func NewKeyringFromConfig(cfg config.Config) (*Keyring, error) {
	ring := NewKeyring()
	if cfg.IssuerID == "" || cfg.IssuerKeysetBase64 == "" {
		return ring, nil
	}
	raw, err := base64.StdEncoding.DecodeString(cfg.IssuerKeysetBase64)
	if err != nil {
		return nil, errors.New("issuer keyset is not valid base64")
	}
	if err := ring.Put(cfg.IssuerID, raw); err != nil {
		return nil, err
	}
	return ring, nil
}

// Put checks that privateKey parses as a keyset before storing it.
func (k *Keyring) Put(issuerID string, privateKey []byte) error {
	if issuerID == "" {
		return errors.New("issuer_id is required")
	}
	if _, err := PublicKey(privateKey); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[issuerID] = append([]byte(nil), privateKey...)
	return nil
}

func (k *Keyring) KeyPair(issuerID string) (domain.KeyPair, error) {
	k.mu.RLock()
	priv, ok := k.keys[issuerID]
	k.mu.RUnlock()
	if !ok {
		return domain.KeyPair{}, domain.NewError(domain.CodeNotFound, "issuer key", domain.ErrNotFound)
	}
	pub, err := PublicKey(priv)
	if err != nil {
		return domain.KeyPair{}, domain.NewError(domain.CodeCrypto, "issuer key", err)
	}
	return domain.KeyPair{PrivateKey: append([]byte(nil), priv...), PublicKey: pub}, nil
}

func (k *Keyring) PublicKey(issuerID string) ([]byte, error) {
	pair, err := k.KeyPair(issuerID)
	if err != nil {
		return nil, err
	}
	return pair.PublicKey, nil
}
