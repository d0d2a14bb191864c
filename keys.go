package gourdianauth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// resolveSigningMethod maps a configured algorithm name to its jwt signing method.
func resolveSigningMethod(algorithm string) (jwt.SigningMethod, error) {
	switch algorithm {
	case "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	case "RS256":
		return jwt.SigningMethodRS256, nil
	case "RS384":
		return jwt.SigningMethodRS384, nil
	case "RS512":
		return jwt.SigningMethodRS512, nil
	case "ES256":
		return jwt.SigningMethodES256, nil
	case "ES384":
		return jwt.SigningMethodES384, nil
	case "ES512":
		return jwt.SigningMethodES512, nil
	case "EdDSA":
		return jwt.SigningMethodEdDSA, nil
	case "none":
		return nil, configErrorf("unsecured tokens are not allowed")
	default:
		return nil, configErrorf("unsupported algorithm: %s", algorithm)
	}
}

// initializeKeys loads the signing and verification keys for the configured method.
func (maker *JWTMaker) initializeKeys() error {
	switch maker.config.SigningMethod {
	case Symmetric:
		maker.privateKey = []byte(maker.config.SymmetricKey)
		maker.publicKey = []byte(maker.config.SymmetricKey)
		return nil

	case Asymmetric:
		return maker.parseKeyPair()

	default:
		return configErrorf("unsupported signing method: %s", maker.config.SigningMethod)
	}
}

func (maker *JWTMaker) parseKeyPair() error {
	privateKeyBytes, err := os.ReadFile(maker.config.PrivateKeyPath)
	if err != nil {
		return configErrorf("failed to read private key file: %v", err)
	}

	publicKeyBytes, err := os.ReadFile(maker.config.PublicKeyPath)
	if err != nil {
		return configErrorf("failed to read public key file: %v", err)
	}

	switch maker.signingMethod.Alg() {
	case "RS256", "RS384", "RS512":
		if maker.privateKey, err = parseRSAPrivateKey(privateKeyBytes); err != nil {
			return configErrorf("failed to parse RSA private key: %v", err)
		}
		if maker.publicKey, err = parseRSAPublicKey(publicKeyBytes); err != nil {
			return configErrorf("failed to parse RSA public key: %v", err)
		}

	case "ES256", "ES384", "ES512":
		if maker.privateKey, err = parseECDSAPrivateKey(privateKeyBytes); err != nil {
			return configErrorf("failed to parse ECDSA private key: %v", err)
		}
		if maker.publicKey, err = parseECDSAPublicKey(publicKeyBytes); err != nil {
			return configErrorf("failed to parse ECDSA public key: %v", err)
		}

	case "EdDSA":
		if maker.privateKey, err = parseEdDSAPrivateKey(privateKeyBytes); err != nil {
			return configErrorf("failed to parse EdDSA private key: %v", err)
		}
		if maker.publicKey, err = parseEdDSAPublicKey(publicKeyBytes); err != nil {
			return configErrorf("failed to parse EdDSA public key: %v", err)
		}

	default:
		return configErrorf("unsupported algorithm for asymmetric signing: %s", maker.signingMethod.Alg())
	}

	return nil
}

func decodePEM(pemBytes []byte, what string) (*pem.Block, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the %s", what)
	}
	return block, nil
}

// parsePublicKey accepts PKIX public keys and X.509 certificates.
func parsePublicKey(pemBytes []byte, what string) (interface{}, error) {
	block, err := decodePEM(pemBytes, what)
	if err != nil {
		return nil, err
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err == nil {
		return pub, nil
	}

	cert, certErr := x509.ParseCertificate(block.Bytes)
	if certErr != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", what, err)
	}
	return cert.PublicKey, nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, err := decodePEM(pemBytes, "RSA private key")
	if err != nil {
		return nil, err
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	pkcs8Key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}
	rsaKey, ok := pkcs8Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not a valid RSA private key")
	}
	return rsaKey, nil
}

func parseRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	pub, err := parsePublicKey(pemBytes, "RSA public key")
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not a valid RSA public key")
	}
	return rsaPub, nil
}

func parseECDSAPrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, err := decodePEM(pemBytes, "ECDSA private key")
	if err != nil {
		return nil, err
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	pkcs8Key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ECDSA private key: %w", err)
	}
	ecKey, ok := pkcs8Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not a valid ECDSA private key")
	}
	return ecKey, nil
}

func parseECDSAPublicKey(pemBytes []byte) (*ecdsa.PublicKey, error) {
	pub, err := parsePublicKey(pemBytes, "ECDSA public key")
	if err != nil {
		return nil, err
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not a valid ECDSA public key")
	}
	return ecdsaPub, nil
}

func parseEdDSAPrivateKey(pemBytes []byte) (ed25519.PrivateKey, error) {
	block, err := decodePEM(pemBytes, "EdDSA private key")
	if err != nil {
		return nil, err
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EdDSA private key: %w", err)
	}
	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not a valid EdDSA private key")
	}
	return edKey, nil
}

func parseEdDSAPublicKey(pemBytes []byte) (ed25519.PublicKey, error) {
	pub, err := parsePublicKey(pemBytes, "EdDSA public key")
	if err != nil {
		return nil, err
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not a valid EdDSA public key")
	}
	return edPub, nil
}
