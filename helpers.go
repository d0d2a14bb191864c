package gourdianauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	refreshTokenBytes     = 32
	maxRefreshTokenLength = 512
)

// newRefreshToken returns a URL-safe opaque token carrying 256 bits of entropy.
func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken returns the hex SHA-256 of token. Registries key sessions by this
// hash so plaintext tokens are never held at rest.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// acceptableToken rejects inputs that cannot have been issued by newRefreshToken.
func acceptableToken(token string) bool {
	return token != "" && len(token) <= maxRefreshTokenLength
}

func validateSessionArgs(principalID uuid.UUID, ttl time.Duration) error {
	if principalID == uuid.Nil {
		return fmt.Errorf("%w: empty id", ErrInvalidPrincipal)
	}
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}
