package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"

	"addrproof/internal/domain"
)

// SignPayload signs the canonical JSON form of payload and returns the
// signature base64 encoded.
func SignPayload(keys domain.KeyManager, privateKey []byte, payload any) (string, error) {
	if keys == nil {
		return "", errors.New("key manager is required")
	}
	canonical, err := CanonicalizeAny(payload)
	if err != nil {
		return "", domain.NewError(domain.CodeInput, "canonicalize", err)
	}
	sig, err := keys.Sign(canonical, privateKey)
	if err != nil {
		return "", domain.NewError(domain.CodeCrypto, "sign", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyPayload checks a SignPayload signature. Every failure wraps
// domain.ErrSignatureInvalid except unusable payloads.
func VerifyPayload(keys domain.KeyManager, publicKey []byte, payload any, signatureB64 string) error {
	if keys == nil {
		return errors.New("key manager is required")
	}
	if signatureB64 == "" {
		return fmt.Errorf("%w: signature value is required", domain.ErrSignatureInvalid)
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("%w: invalid signature encoding", domain.ErrSignatureInvalid)
	}
	canonical, err := CanonicalizeAny(payload)
	if err != nil {
		return domain.NewError(domain.CodeInput, "canonicalize", err)
	}
	if !keys.Verify(canonical, sig, publicKey) {
		return fmt.Errorf("%w: signature verification failed", domain.ErrSignatureInvalid)
	}
	return nil
}
