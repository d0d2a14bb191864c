package gourdianauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const maxLoginLength = 1024

// Principal is the authenticated identity a token represents.
//
// Fields:
//   - ID: Principal identifier (user ID)
//   - Login: Login name, carried as the token subject
//   - Role: Role name
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Login string    `json:"login"`
	Role  string    `json:"role"`
}

// Validate reports ErrInvalidPrincipal when the principal has no ID or login.
func (p Principal) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: empty id", ErrInvalidPrincipal)
	}
	if strings.TrimSpace(p.Login) == "" {
		return fmt.Errorf("%w: empty login", ErrInvalidPrincipal)
	}
	if len(p.Login) > maxLoginLength {
		return fmt.Errorf("%w: login too long", ErrInvalidPrincipal)
	}
	return nil
}

// AccessToken is a signed access token and the instant it stops being valid.
type AccessToken struct {
	Token     string    `json:"tok"`
	TokenID   uuid.UUID `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// AccessClaims contains the claim set embedded in an access token.
//
// Fields:
//   - ID: Unique token ID (JWT ID)
//   - Subject: Principal login
//   - PrincipalID: Principal identifier
//   - Role: Principal role
//   - Issuer: Token issuer
//   - Audience: Intended recipients
//   - IssuedAt: Token issuance time
//   - ExpiresAt: Token expiration time
//   - TokenType: Token type (access)
type AccessClaims struct {
	ID          uuid.UUID `json:"jti"`
	Subject     string    `json:"sub"`
	PrincipalID uuid.UUID `json:"uid"`
	Role        string    `json:"rol"`
	Issuer      string    `json:"iss"`
	Audience    []string  `json:"aud"`
	IssuedAt    time.Time `json:"iat"`
	ExpiresAt   time.Time `json:"exp"`
	TokenType   TokenType `json:"typ"`
}

// Principal projects the claims back onto the identity they were issued for.
func (c *AccessClaims) Principal() Principal {
	return Principal{ID: c.PrincipalID, Login: c.Subject, Role: c.Role}
}

// newAccessClaims builds the claim set for principal. now must already be
// truncated to the second so that ExpiresAt matches the encoded exp claim.
func newAccessClaims(principal Principal, issuer string, audience []string, now time.Time, ttl time.Duration) (AccessClaims, error) {
	if err := principal.Validate(); err != nil {
		return AccessClaims{}, err
	}

	tokenID, err := uuid.NewRandom()
	if err != nil {
		return AccessClaims{}, fmt.Errorf("failed to generate token ID: %w", err)
	}

	return AccessClaims{
		ID:          tokenID,
		Subject:     principal.Login,
		PrincipalID: principal.ID,
		Role:        principal.Role,
		Issuer:      issuer,
		Audience:    audience,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		TokenType:   AccessTokenType,
	}, nil
}

// toMapClaims converts claims to jwt.MapClaims.
func toMapClaims(claims AccessClaims) jwt.MapClaims {
	mapClaims := jwt.MapClaims{
		"jti": claims.ID.String(),
		"sub": claims.Subject,
		"uid": claims.PrincipalID.String(),
		"rol": claims.Role,
		"iss": claims.Issuer,
		"iat": claims.IssuedAt.Unix(),
		"exp": claims.ExpiresAt.Unix(),
		"typ": string(claims.TokenType),
	}
	if len(claims.Audience) > 0 {
		mapClaims["aud"] = claims.Audience
	}
	return mapClaims
}

// mapToAccessClaims converts verified JWT claims to AccessClaims.
func mapToAccessClaims(claims jwt.MapClaims) (*AccessClaims, error) {
	requiredClaims := []string{"jti", "sub", "uid", "rol", "iat", "exp", "typ"}
	for _, claim := range requiredClaims {
		if _, ok := claims[claim]; !ok {
			return nil, fmt.Errorf("missing required claim: %s", claim)
		}
	}

	tokenType, ok := claims["typ"].(string)
	if !ok || TokenType(tokenType) != AccessTokenType {
		return nil, fmt.Errorf("invalid token type: expected %s", AccessTokenType)
	}

	jti, ok := claims["jti"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid token ID type: expected string")
	}
	tokenID, err := uuid.Parse(jti)
	if err != nil {
		return nil, fmt.Errorf("invalid token ID: %w", err)
	}

	uid, ok := claims["uid"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid principal ID type: expected string")
	}
	principalID, err := uuid.Parse(uid)
	if err != nil {
		return nil, fmt.Errorf("invalid principal ID: %w", err)
	}

	subject, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	role, ok := claims["rol"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid role type: expected string")
	}

	issuer, err := claims.GetIssuer()
	if err != nil {
		return nil, fmt.Errorf("invalid issuer: %w", err)
	}

	audience, err := claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("invalid audience: %w", err)
	}

	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return nil, fmt.Errorf("invalid iat claim")
	}

	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, fmt.Errorf("invalid exp claim")
	}

	decoded := &AccessClaims{
		ID:          tokenID,
		Subject:     subject,
		PrincipalID: principalID,
		Role:        role,
		Issuer:      issuer,
		Audience:    []string(audience),
		IssuedAt:    issuedAt.UTC(),
		ExpiresAt:   expiresAt.UTC(),
		TokenType:   AccessTokenType,
	}

	if err := decoded.Principal().Validate(); err != nil {
		return nil, err
	}
	return decoded, nil
}
