// Package token generates and fingerprints the opaque refresh tokens the
// auth module hands out alongside JWT access tokens.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// GenerateRandomToken returns size bytes of crypto/rand entropy encoded as
// unpadded URL-safe base64, ready to travel in a cookie.
func GenerateRandomToken(size int) (string, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashSHA256 returns the hex digest of a token. The database only ever
// holds this digest, never the raw token.
func HashSHA256(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
