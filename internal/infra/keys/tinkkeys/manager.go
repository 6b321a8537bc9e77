// Package tinkkeys is a KeyManager backed by tink signature keysets. Private
// keys are serialized cleartext keysets and public keys are the matching
// public keysets, both opaque to the rest of the engine.
package tinkkeys

import (
	"bytes"
	"errors"

	"github.com/tink-crypto/tink-go/v2/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/v2/keyset"
	"github.com/tink-crypto/tink-go/v2/signature"

	"addrproof/internal/domain"
)

const Alg = "tink-ed25519"

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Alg() string {
	return Alg
}

func (m *Manager) GenerateKeyPair() (domain.KeyPair, error) {
	handle, err := keyset.NewHandle(signature.ED25519KeyTemplate())
	if err != nil {
		return domain.KeyPair{}, domain.NewError(domain.CodeCrypto, "generate keyset", err)
	}
	priv := &bytes.Buffer{}
	if err := insecurecleartextkeyset.Write(handle, keyset.NewBinaryWriter(priv)); err != nil {
		return domain.KeyPair{}, domain.NewError(domain.CodeCrypto, "write keyset", err)
	}
	pubHandle, err := handle.Public()
	if err != nil {
		return domain.KeyPair{}, domain.NewError(domain.CodeCrypto, "public keyset", err)
	}
	pub, err := writePublic(pubHandle)
	if err != nil {
		return domain.KeyPair{}, err
	}
	return domain.KeyPair{PrivateKey: priv.Bytes(), PublicKey: pub}, nil
}

func (m *Manager) Sign(message []byte, privateKey []byte) ([]byte, error) {
	if len(privateKey) == 0 {
		return nil, domain.InputError("sign", "private keyset is required")
	}
	handle, err := insecurecleartextkeyset.Read(keyset.NewBinaryReader(bytes.NewReader(privateKey)))
	if err != nil {
		return nil, domain.NewError(domain.CodeInput, "read keyset", err)
	}
	signer, err := signature.NewSigner(handle)
	if err != nil {
		return nil, domain.NewError(domain.CodeCrypto, "signer", err)
	}
	sig, err := signer.Sign(message)
	if err != nil {
		return nil, domain.NewError(domain.CodeCrypto, "sign", err)
	}
	return sig, nil
}

func (m *Manager) Verify(message []byte, sig []byte, publicKey []byte) bool {
	if len(publicKey) == 0 || len(sig) == 0 {
		return false
	}
	handle, err := keyset.ReadWithNoSecrets(keyset.NewBinaryReader(bytes.NewReader(publicKey)))
	if err != nil {
		return false
	}
	verifier, err := signature.NewVerifier(handle)
	if err != nil {
		return false
	}
	return verifier.Verify(sig, message) == nil
}

// PublicKey returns the public keyset for a serialized private keyset.
func PublicKey(privateKey []byte) ([]byte, error) {
	handle, err := insecurecleartextkeyset.Read(keyset.NewBinaryReader(bytes.NewReader(privateKey)))
	if err != nil {
		return nil, err
	}
	pubHandle, err := handle.Public()
	if err != nil {
		return nil, err
	}
	return writePublic(pubHandle)
}

func writePublic(handle *keyset.Handle) ([]byte, error) {
	if handle == nil {
		return nil, errors.New("keyset handle is required")
	}
	buf := &bytes.Buffer{}
	if err := handle.WriteWithNoSecrets(keyset.NewBinaryWriter(buf)); err != nil {
		return nil, domain.NewError(domain.CodeCrypto, "write public keyset", err)
	}
	return buf.Bytes(), nil
}
