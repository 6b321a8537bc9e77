package soft

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sync"

	"addrproof/internal/config"
	"addrproof/internal/domain"
)

// Keyring stands in for the external key store: it hands issuer key pairs to
// the signing paths and never serializes them.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]ed25519.PrivateKey)}
}

// NewKeyringFromConfig loads the configured issuer key. The base64 form wins
// over the hex seed when both are set.
func NewKeyringFromConfig(cfg config.Config) (*Keyring, error) {
	ring := NewKeyring()
	if cfg.IssuerID == "" {
		return ring, nil
	}
	key := readPrivateKeyBase64(cfg.IssuerPrivateKeyBase64)
	if key == nil {
		key = readPrivateKeyHex(cfg.IssuerPrivateKeySeedHex)
	}
	if key == nil {
		if cfg.IssuerPrivateKeyBase64 != "" || cfg.IssuerPrivateKeySeedHex != "" {
			return nil, errors.New("issuer private key is malformed")
		}
		return ring, nil
	}
	ring.keys[cfg.IssuerID] = key
	return ring, nil
}

func (k *Keyring) Put(issuerID string, privateKey []byte) error {
	if k == nil {
		return errors.New("keyring is required")
	}
	if issuerID == "" {
		return errors.New("issuer_id is required")
	}
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.keys == nil {
		k.keys = make(map[string]ed25519.PrivateKey)
	}
	k.keys[issuerID] = append(ed25519.PrivateKey(nil), key...)
	return nil
}

func (k *Keyring) Delete(issuerID string) {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, issuerID)
}

func (k *Keyring) KeyPair(issuerID string) (domain.KeyPair, error) {
	if k == nil {
		return domain.KeyPair{}, domain.ErrNotFound
	}
	k.mu.RLock()
	key, ok := k.keys[issuerID]
	k.mu.RUnlock()
	if !ok {
		return domain.KeyPair{}, domain.NewError(domain.CodeNotFound, "issuer key", domain.ErrNotFound)
	}
	return domain.KeyPair{
		PrivateKey: append([]byte(nil), key...),
		PublicKey:  append([]byte(nil), key.Public().(ed25519.PublicKey)...),
	}, nil
}

func (k *Keyring) PublicKey(issuerID string) ([]byte, error) {
	pair, err := k.KeyPair(issuerID)
	if err != nil {
		return nil, err
	}
	return pair.PublicKey, nil
}

func readPrivateKeyBase64(value string) ed25519.PrivateKey {
	if value == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	key, err := parsePrivateKey(raw)
	if err != nil {
		return nil
	}
	return key
}

func readPrivateKeyHex(value string) ed25519.PrivateKey {
	if value == "" {
		return nil
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil
	}
	key, err := parsePrivateKey(raw)
	if err != nil {
		return nil
	}
	return key
}
