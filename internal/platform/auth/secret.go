package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MintSecret returns a fresh per-submission capability token. Workers echo
// it back on every status callback; it is the only thing that authorizes a
// state change, a job id alone never does.
func MintSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("mint secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SecretsEqual compares two secrets in constant time.
func SecretsEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return hmac.Equal([]byte(a), []byte(b))
}
