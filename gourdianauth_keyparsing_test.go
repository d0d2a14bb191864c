// gourdianauth_keyparsing_test.go
package gourdianauth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyParsingEdgeCases(t *testing.T) {
	t.Run("Invalid PEM Block", func(t *testing.T) {
		_, err := parseRSAPrivateKey([]byte("not a pem block"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to parse PEM block")
	})

	t.Run("Corrupted RSA Private Key", func(t *testing.T) {
		privKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		privBytes := x509.MarshalPKCS1PrivateKey(privKey)
		privBytes[10] ^= 0xFF

		block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes}
		_, err = parseRSAPrivateKey(pem.EncodeToMemory(block))
		require.Error(t, err)
	})

	t.Run("PKCS8 RSA Private Key", func(t *testing.T) {
		privKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		privBytes, err := x509.MarshalPKCS8PrivateKey(privKey)
		require.NoError(t, err)

		parsed, err := parseRSAPrivateKey(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}))
		require.NoError(t, err)
		require.True(t, privKey.Equal(parsed))
	})

	t.Run("RSA Public Key From Certificate", func(t *testing.T) {
		_, publicPath := generateTempCertificate(t)
		certPEM, err := os.ReadFile(publicPath)
		require.NoError(t, err)

		_, err = parseRSAPublicKey(certPEM)
		require.NoError(t, err)
	})

	t.Run("ECDSA Key Passed As RSA", func(t *testing.T) {
		_, publicPath := generateTempECDSAPair(t)
		publicPEM, err := os.ReadFile(publicPath)
		require.NoError(t, err)

		_, err = parseRSAPublicKey(publicPEM)
		require.Error(t, err)
		require.Contains(t, err.Error(), "not a valid RSA public key")
	})

	t.Run("Ed25519 Key Parsing", func(t *testing.T) {
		pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		privBytes, err := x509.MarshalPKCS8PrivateKey(privKey)
		require.NoError(t, err)
		parsedPriv, err := parseEdDSAPrivateKey(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}))
		require.NoError(t, err)
		require.Equal(t, privKey, parsedPriv)

		pubBytes, err := x509.MarshalPKIXPublicKey(pubKey)
		require.NoError(t, err)
		parsedPub, err := parseEdDSAPublicKey(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}))
		require.NoError(t, err)
		require.Equal(t, pubKey, parsedPub)
	})

	t.Run("Uncommon EC Curve", func(t *testing.T) {
		privKey, err := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
		require.NoError(t, err)

		privBytes, err := x509.MarshalECPrivateKey(privKey)
		require.NoError(t, err)

		_, err = parseECDSAPrivateKey(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes}))
		require.NoError(t, err)
	})

	t.Run("File Permission Checks", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "insecure.key")
		require.NoError(t, os.WriteFile(tempFile, []byte("test data"), 0600))
		require.NoError(t, os.Chmod(tempFile, 0666))

		err := checkFilePermissions(tempFile, 0600)
		require.Error(t, err)
		require.Contains(t, err.Error(), "has permissions")
	})
}

func TestAsymmetricMakers(t *testing.T) {
	cases := []struct {
		name      string
		algorithm string
		keys      func(t *testing.T) (string, string)
	}{
		{"RSA", "RS256", generateTempRSAPair},
		{"RSA certificate", "RS384", generateTempCertificate},
		{"ECDSA", "ES256", generateTempECDSAPair},
		{"EdDSA", "EdDSA", generateTempEd25519Pair},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			privatePath, publicPath := tc.keys(t)

			config := testConfig()
			config.Algorithm = tc.algorithm
			config.SigningMethod = Asymmetric
			config.SymmetricKey = ""
			config.PrivateKeyPath = privatePath
			config.PublicKeyPath = publicPath

			maker, err := NewJWTMaker(config)
			require.NoError(t, err)

			principal := testPrincipal()
			token, err := maker.Issue(principal)
			require.NoError(t, err)

			verified, err := maker.Verify(token.Token)
			require.NoError(t, err)
			require.Equal(t, principal, *verified)
		})
	}

	t.Run("Mismatched key type", func(t *testing.T) {
		privatePath, publicPath := generateTempECDSAPair(t)

		config := testConfig()
		config.Algorithm = "RS256"
		config.SigningMethod = Asymmetric
		config.SymmetricKey = ""
		config.PrivateKeyPath = privatePath
		config.PublicKeyPath = publicPath

		_, err := NewJWTMaker(config)
		require.ErrorIs(t, err, ErrConfiguration)
	})
}
