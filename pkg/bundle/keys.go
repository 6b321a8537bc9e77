package bundle

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// DecodeKey accepts hex or base64 (standard or raw URL), as keys are
// passed around in all of these forms.
func DecodeKey(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("key is empty")
	}
	if raw, err := hex.DecodeString(value); err == nil {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(value); err == nil {
		return raw, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, errors.New("key is neither hex nor base64")
	}
	return raw, nil
}
