package gourdianauth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenMaker issues and verifies signed access tokens.
//
// Methods:
//   - Issue: Signs a new access token for a principal
//   - Verify: Validates a token and returns the principal it was issued for
//   - VerifyClaims: Validates a token and returns its full claim set
type AccessTokenMaker interface {
	Issue(principal Principal) (*AccessToken, error)
	Verify(tokenString string) (*Principal, error)
	VerifyClaims(tokenString string) (*AccessClaims, error)
}

// JWTMaker is the JWT implementation of AccessTokenMaker. It holds no mutable
// state after construction and is safe for concurrent use.
type JWTMaker struct {
	config        Config
	signingMethod jwt.SigningMethod
	privateKey    interface{} // []byte for HMAC, *rsa.PrivateKey, *ecdsa.PrivateKey or ed25519.PrivateKey
	publicKey     interface{} // []byte for HMAC, *rsa.PublicKey, *ecdsa.PublicKey or ed25519.PublicKey
	parser        *jwt.Parser
	logger        *slog.Logger
	now           func() time.Time
}

var _ AccessTokenMaker = (*JWTMaker)(nil)

// NewJWTMaker validates config and loads its keys. Any failure wraps
// ErrConfiguration and should abort startup.
func NewJWTMaker(config Config, opts ...Option) (*JWTMaker, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	signingMethod, err := resolveSigningMethod(config.Algorithm)
	if err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	maker := &JWTMaker{
		config:        config,
		signingMethod: signingMethod,
		logger:        o.logger,
		now:           o.now,
	}

	if err := maker.initializeKeys(); err != nil {
		return nil, err
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(config.Issuer),
		jwt.WithAudience(config.Audience[0]),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(maker.now),
	}
	maker.parser = jwt.NewParser(parserOpts...)

	return maker, nil
}

// Issue signs an access token for principal that expires AccessTokenTTL from now.
func (maker *JWTMaker) Issue(principal Principal) (*AccessToken, error) {
	now := maker.now().UTC().Truncate(time.Second)

	claims, err := newAccessClaims(principal, maker.config.Issuer, maker.config.Audience, now, maker.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(maker.signingMethod, toMapClaims(claims))

	signedToken, err := token.SignedString(maker.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &AccessToken{
		Token:     signedToken,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Verify checks signature, issuer, audience and expiry (no leeway) and returns
// the embedded principal. Every failure is reported as ErrVerificationFailed.
func (maker *JWTMaker) Verify(tokenString string) (*Principal, error) {
	claims, err := maker.VerifyClaims(tokenString)
	if err != nil {
		return nil, err
	}
	principal := claims.Principal()
	return &principal, nil
}

// VerifyClaims performs the same checks as Verify and returns the full claim set.
func (maker *JWTMaker) VerifyClaims(tokenString string) (*AccessClaims, error) {
	claims, err := maker.parse(tokenString)
	if err != nil {
		maker.logger.Debug("access token rejected", slog.String("reason", err.Error()))
		return nil, ErrVerificationFailed
	}
	return claims, nil
}

func (maker *JWTMaker) parse(tokenString string) (*AccessClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty token")
	}

	token, err := maker.parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != maker.signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return maker.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return mapToAccessClaims(mapClaims)
}
