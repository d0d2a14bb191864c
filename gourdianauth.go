// gourdianauth.go

package gourdianauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TokenPair is the result of issuing or rotating credentials.
type TokenPair struct {
	Access  AccessToken    `json:"access"`
	Refresh RefreshSession `json:"refresh"`
}

// Coordinator issues and rotates access/refresh token pairs. It composes a
// JWTMaker with a SessionRegistry and keeps no other state. All methods are safe
// for concurrent use.
//
// Per principal the lifecycle is:
//
//	no session --IssueInitialPair--> one live session
//	one live session --Rotate ok--> one live session (old one destroyed)
//	one live session --Rotate failure / Logout--> no session
//
// A principal never holds two valid sessions at once.
type Coordinator struct {
	maker        *JWTMaker
	registry     SessionRegistry
	ownsRegistry bool
	refreshTTL   time.Duration

	logger  *slog.Logger
	metrics *Metrics
}

// NewCoordinator builds a Coordinator from config. When registry is nil an
// in-memory registry is created and closed together with the coordinator.
// Configuration errors wrap ErrConfiguration and should abort startup.
func NewCoordinator(config Config, registry SessionRegistry, opts ...Option) (*Coordinator, error) {
	maker, err := NewJWTMaker(config, opts...)
	if err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	c := &Coordinator{
		maker:      maker,
		registry:   registry,
		refreshTTL: config.RefreshTokenTTL,
		logger:     o.logger,
		metrics:    o.metrics,
	}
	if c.registry == nil {
		c.registry = NewMemorySessionRegistry(config.PurgeInterval, opts...)
		c.ownsRegistry = true
	}
	return c, nil
}

// IssueInitialPair creates an access token and a refresh session for a principal
// whose credentials the caller has already verified. Any previous session of the
// principal is invalidated.
func (c *Coordinator) IssueInitialPair(ctx context.Context, principal Principal) (*TokenPair, error) {
	if err := principal.Validate(); err != nil {
		c.logger.Error("refusing to issue tokens for invalid principal", slog.String("error", err.Error()))
		return nil, err
	}

	pair, err := c.issuePair(ctx, principal)
	if err != nil {
		return nil, err
	}

	c.logger.Info("issued initial token pair", slog.String("principal_id", principal.ID.String()))
	return pair, nil
}

// Rotate exchanges presentedToken for a new pair. The token is consumed first;
// an absent, expired or already used token yields ErrRotationFailed. If the
// consumed session belongs to someone other than principal, the session stays
// consumed, nothing is issued and an *IdentityMismatchError is returned.
func (c *Coordinator) Rotate(ctx context.Context, presentedToken string, principal Principal) (*TokenPair, error) {
	if err := principal.Validate(); err != nil {
		c.logger.Error("refusing to rotate tokens for invalid principal", slog.String("error", err.Error()))
		return nil, err
	}

	session, err := c.registry.Consume(ctx, presentedToken)
	if errors.Is(err, ErrSessionNotFound) {
		c.metrics.rotation(resultFailure)
		c.logger.Info("refresh token rejected", slog.String("principal_id", principal.ID.String()))
		return nil, ErrRotationFailed
	}
	if err != nil {
		c.metrics.rotation(resultError)
		return nil, fmt.Errorf("failed to consume refresh session: %w", err)
	}

	if session.PrincipalID != principal.ID {
		c.metrics.rotation(resultMismatch)
		mismatch := &IdentityMismatchError{SessionOwner: session.PrincipalID, Presented: principal.ID}
		c.logger.Error("refresh session identity mismatch",
			slog.String("session_owner", session.PrincipalID.String()),
			slog.String("presented", principal.ID.String()),
		)
		return nil, mismatch
	}

	pair, err := c.issuePair(ctx, principal)
	if err != nil {
		c.metrics.rotation(resultError)
		return nil, err
	}

	c.metrics.rotation(resultSuccess)
	return pair, nil
}

// Verify validates an access token and returns the principal it was issued for.
// All failures are ErrVerificationFailed.
func (c *Coordinator) Verify(tokenString string) (*Principal, error) {
	principal, err := c.maker.Verify(tokenString)
	c.metrics.verification(err == nil)
	return principal, err
}

// VerifyClaims validates an access token and returns its full claim set.
func (c *Coordinator) VerifyClaims(tokenString string) (*AccessClaims, error) {
	claims, err := c.maker.VerifyClaims(tokenString)
	c.metrics.verification(err == nil)
	return claims, err
}

// SessionOwner returns the principal that owns presentedToken without consuming
// it, so a transport can reload that principal before calling Rotate.
func (c *Coordinator) SessionOwner(ctx context.Context, presentedToken string) (uuid.UUID, error) {
	session, err := c.registry.Lookup(ctx, presentedToken)
	if errors.Is(err, ErrSessionNotFound) {
		return uuid.Nil, ErrRotationFailed
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to look up refresh session: %w", err)
	}
	return session.PrincipalID, nil
}

// Logout destroys the session behind presentedToken. Unknown tokens are ignored.
func (c *Coordinator) Logout(ctx context.Context, presentedToken string) error {
	session, err := c.registry.Consume(ctx, presentedToken)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to consume refresh session: %w", err)
	}

	c.logger.Info("logged out", slog.String("principal_id", session.PrincipalID.String()))
	return nil
}

// RevokePrincipal destroys whatever session principalID currently holds.
func (c *Coordinator) RevokePrincipal(ctx context.Context, principalID uuid.UUID) error {
	if err := c.registry.RevokePrincipal(ctx, principalID); err != nil {
		return fmt.Errorf("failed to revoke principal session: %w", err)
	}

	c.logger.Info("revoked principal session", slog.String("principal_id", principalID.String()))
	return nil
}

// Close releases the registry when the coordinator created it.
func (c *Coordinator) Close() error {
	if c.ownsRegistry {
		return c.registry.Close()
	}
	return nil
}

func (c *Coordinator) issuePair(ctx context.Context, principal Principal) (*TokenPair, error) {
	access, err := c.maker.Issue(principal)
	if err != nil {
		return nil, err
	}

	session, err := c.registry.CreateSession(ctx, principal.ID, c.refreshTTL)
	if err != nil {
		if errors.Is(err, ErrTokenCollision) {
			c.logger.Error("refresh token collision", slog.String("principal_id", principal.ID.String()))
		}
		return nil, fmt.Errorf("failed to create refresh session: %w", err)
	}

	c.metrics.pairIssued()
	return &TokenPair{Access: *access, Refresh: *session}, nil
}
