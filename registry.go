package gourdianauth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshSession is a server-tracked, single-use renewal credential.
//
// Fields:
//   - Token: Opaque random token presented by the client
//   - PrincipalID: Owner of the session
//   - CreatedAt: Creation time
//   - ExpiresAt: Expiration time, always after CreatedAt
type RefreshSession struct {
	Token       string    `json:"tok"`
	PrincipalID uuid.UUID `json:"pid"`
	CreatedAt   time.Time `json:"cat"`
	ExpiresAt   time.Time `json:"exp"`
}

// expiredAt reports whether the session is no longer usable at now.
func (s *RefreshSession) expiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionRegistry stores refresh sessions keyed by their token.
//
// Implementations must guarantee that:
//   - a principal has at most one live session; CreateSession evicts the previous one
//   - Consume removes a session exactly once, so of two concurrent calls on the
//     same token one succeeds and the other gets ErrSessionNotFound
//   - expired sessions are never returned, whether or not they were purged yet
type SessionRegistry interface {
	// CreateSession replaces every session of principalID with a new one valid for ttl.
	CreateSession(ctx context.Context, principalID uuid.UUID, ttl time.Duration) (*RefreshSession, error)

	// Consume atomically removes and returns the live session for token.
	Consume(ctx context.Context, token string) (*RefreshSession, error)

	// Lookup returns the live session for token without removing it.
	// Never use Lookup followed by a separate removal for rotation; call Consume.
	Lookup(ctx context.Context, token string) (*RefreshSession, error)

	// RevokePrincipal removes the session of principalID, if any.
	RevokePrincipal(ctx context.Context, principalID uuid.UUID) error

	// Purge removes sessions expired at now and returns how many were removed.
	Purge(ctx context.Context, now time.Time) (int, error)

	// Close releases background resources.
	Close() error
}
