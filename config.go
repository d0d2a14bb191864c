package gourdianauth

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// TokenType represents the type of a signed token.
type TokenType string

const (
	AccessTokenType TokenType = "access" // Access token type
)

// SigningMethod represents the key signing method (symmetric or asymmetric).
type SigningMethod string

const (
	Symmetric  SigningMethod = "symmetric"  // Symmetric key signing (HMAC)
	Asymmetric SigningMethod = "asymmetric" // Asymmetric key signing (RSA, ECDSA, EdDSA)
)

const (
	minSymmetricKeyLength = 32
	defaultPurgeInterval  = 5 * time.Minute
)

// Config holds the startup configuration for token issuance, verification and
// refresh session storage.
//
// Fields:
//   - Algorithm: Signing algorithm (e.g., "HS256", "RS256", "ES256", "EdDSA")
//   - SigningMethod: Method to use for signing (symmetric or asymmetric)
//   - SymmetricKey: Shared secret, at least 32 bytes (Symmetric only)
//   - PrivateKeyPath: Path to the PEM private key (Asymmetric only)
//   - PublicKeyPath: Path to the PEM public key or certificate (Asymmetric only)
//   - Issuer: Value of the iss claim, checked on verification
//   - Audience: Values of the aud claim, at least one; verification requires the first entry
//   - AccessTokenTTL: Access token lifetime
//   - RefreshTokenTTL: Refresh session lifetime
//   - PurgeInterval: How often the in-memory registry drops expired sessions
type Config struct {
	Algorithm       string
	SigningMethod   SigningMethod
	SymmetricKey    string
	PrivateKeyPath  string
	PublicKeyPath   string
	Issuer          string
	Audience        []string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	PurgeInterval   time.Duration
}

// DefaultConfig returns an HS256 configuration with a 15 minute access token,
// a 7 day refresh session and a 5 minute purge interval.
func DefaultConfig(symmetricKey string) Config {
	return Config{
		Algorithm:       "HS256",
		SigningMethod:   Symmetric,
		SymmetricKey:    symmetricKey,
		Issuer:          "gourdianauth",
		Audience:        []string{"gourdianauth-clients"},
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		PurgeInterval:   defaultPurgeInterval,
	}
}

func validateConfig(config *Config) error {
	switch config.SigningMethod {
	case Symmetric:
		if config.SymmetricKey == "" {
			return configErrorf("symmetric key is required for symmetric signing method")
		}
		if len(config.SymmetricKey) < minSymmetricKeyLength {
			return configErrorf("symmetric key must be at least %d bytes", minSymmetricKeyLength)
		}
		if config.PrivateKeyPath != "" || config.PublicKeyPath != "" {
			return configErrorf("key paths must be empty for symmetric signing method")
		}
		if !strings.HasPrefix(config.Algorithm, "HS") {
			return configErrorf("algorithm %s is not compatible with symmetric signing", config.Algorithm)
		}
	case Asymmetric:
		if config.PrivateKeyPath == "" || config.PublicKeyPath == "" {
			return configErrorf("private and public key paths are required for asymmetric signing method")
		}
		if config.SymmetricKey != "" {
			return configErrorf("symmetric key must be empty for asymmetric signing method")
		}
		if strings.HasPrefix(config.Algorithm, "HS") {
			return configErrorf("algorithm %s is not compatible with asymmetric signing", config.Algorithm)
		}
		if err := checkFilePermissions(config.PrivateKeyPath, 0600); err != nil {
			return configErrorf("insecure private key file permissions: %v", err)
		}
	default:
		return configErrorf("unsupported signing method: %s, supports %s and %s", config.SigningMethod, Symmetric, Asymmetric)
	}

	if strings.TrimSpace(config.Issuer) == "" {
		return configErrorf("issuer is required")
	}
	if len(config.Audience) == 0 {
		return configErrorf("audience is required")
	}
	for _, aud := range config.Audience {
		if strings.TrimSpace(aud) == "" {
			return configErrorf("audience cannot contain empty strings")
		}
	}
	if config.AccessTokenTTL <= 0 {
		return configErrorf("access token ttl must be positive")
	}
	if config.RefreshTokenTTL <= 0 {
		return configErrorf("refresh token ttl must be positive")
	}
	if config.RefreshTokenTTL < config.AccessTokenTTL {
		return configErrorf("refresh token ttl %s is shorter than access token ttl %s", config.RefreshTokenTTL, config.AccessTokenTTL)
	}
	if config.PurgeInterval < 0 {
		return configErrorf("purge interval cannot be negative")
	}
	return nil
}

func checkFilePermissions(path string, requiredPerm os.FileMode) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	actualPerm := info.Mode().Perm()

	// More permissive than required
	if actualPerm&^requiredPerm != 0 {
		return fmt.Errorf("file %s has permissions %#o, expected %#o", path, actualPerm, requiredPerm)
	}

	return nil
}
