package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// SecretPrefix marks secrets produced by GenerateSecret.
const SecretPrefix = "hsec_"

// GenerateSecret returns "hsec_" followed by 32 random bytes in hex.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return SecretPrefix + hex.EncodeToString(b), nil
}
