package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TokenPrefix marks registration tokens so they are recognizable in
// configuration files and support tickets without revealing anything.
const TokenPrefix = "rk_"

// GenerateToken mints a new opaque bearer token and returns it together with
// the digest to persist. The raw token is shown to the owner once and never
// stored.
func GenerateToken() (token string, digest string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate random token: %w", err)
	}

	token = TokenPrefix + hex.EncodeToString(b)
	return token, DigestToken(token), nil
}

// DigestToken computes the deterministic digest of a presented token. The
// same digest doubles as the validation-cache key.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
