// File: gourdianauth.registry.inmemory.imp.go

package gourdianauth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionEntry is a stored refresh session. The plaintext token is not kept.
type sessionEntry struct {
	principalID uuid.UUID
	createdAt   time.Time
	expiresAt   time.Time
}

func (e sessionEntry) session(token string) *RefreshSession {
	return &RefreshSession{
		Token:       token,
		PrincipalID: e.principalID,
		CreatedAt:   e.createdAt,
		ExpiresAt:   e.expiresAt,
	}
}

// MemorySessionRegistry is the in-process SessionRegistry. Sessions do not
// survive a restart. A single instance is meant to be created at startup,
// shared by all request handlers and closed on shutdown.
type MemorySessionRegistry struct {
	mu          sync.RWMutex
	sessions    map[string]sessionEntry // token hash -> session
	byPrincipal map[uuid.UUID]string    // principal -> token hash

	purgeInterval time.Duration
	stopPurge     chan struct{}
	purgeDone     chan struct{}
	closeOnce     sync.Once

	logger   *slog.Logger
	now      func() time.Time
	metrics  *Metrics
	newToken func() (string, error)
}

var _ SessionRegistry = (*MemorySessionRegistry)(nil)

// NewMemorySessionRegistry creates an in-memory registry and starts its
// background purge. purgeInterval determines how often expired sessions are
// removed (default: 5 minutes).
func NewMemorySessionRegistry(purgeInterval time.Duration, opts ...Option) *MemorySessionRegistry {
	if purgeInterval <= 0 {
		purgeInterval = defaultPurgeInterval
	}

	o := buildOptions(opts)
	registry := &MemorySessionRegistry{
		sessions:      make(map[string]sessionEntry),
		byPrincipal:   make(map[uuid.UUID]string),
		purgeInterval: purgeInterval,
		stopPurge:     make(chan struct{}),
		purgeDone:     make(chan struct{}),
		logger:        o.logger,
		now:           o.now,
		metrics:       o.metrics,
		newToken:      o.newToken,
	}

	go registry.periodicPurge()

	return registry
}

// CreateSession evicts the current session of principalID, if any, and stores a
// new one. Eviction and insertion happen under one lock, so concurrent readers
// see either the old session or the new one.
func (m *MemorySessionRegistry) CreateSession(ctx context.Context, principalID uuid.UUID, ttl time.Duration) (*RefreshSession, error) {
	if err := validateSessionArgs(principalID, ttl); err != nil {
		return nil, err
	}

	token, err := m.newToken()
	if err != nil {
		return nil, err
	}
	tokenHash := hashToken(token)

	now := m.now().UTC()
	entry := sessionEntry{
		principalID: principalID,
		createdAt:   now,
		expiresAt:   now.Add(ttl),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[tokenHash]; exists {
		return nil, ErrTokenCollision
	}

	if previous, ok := m.byPrincipal[principalID]; ok {
		delete(m.sessions, previous)
	}
	m.sessions[tokenHash] = entry
	m.byPrincipal[principalID] = tokenHash

	return entry.session(token), nil
}

// Consume removes the session for token and returns it if it was still live.
func (m *MemorySessionRegistry) Consume(ctx context.Context, token string) (*RefreshSession, error) {
	if !acceptableToken(token) {
		return nil, ErrSessionNotFound
	}
	tokenHash := hashToken(token)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[tokenHash]
	if !ok {
		return nil, ErrSessionNotFound
	}
	m.removeLocked(tokenHash, entry.principalID)

	if !m.now().Before(entry.expiresAt) {
		return nil, ErrSessionNotFound
	}

	return entry.session(token), nil
}

// Lookup returns the live session for token without consuming it.
func (m *MemorySessionRegistry) Lookup(ctx context.Context, token string) (*RefreshSession, error) {
	if !acceptableToken(token) {
		return nil, ErrSessionNotFound
	}
	tokenHash := hashToken(token)

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[tokenHash]
	if !ok || !m.now().Before(entry.expiresAt) {
		return nil, ErrSessionNotFound
	}

	return entry.session(token), nil
}

// RevokePrincipal removes the session owned by principalID.
func (m *MemorySessionRegistry) RevokePrincipal(ctx context.Context, principalID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tokenHash, ok := m.byPrincipal[principalID]; ok {
		m.removeLocked(tokenHash, principalID)
	}
	return nil
}

// Purge removes sessions whose expiry is at or before now.
func (m *MemorySessionRegistry) Purge(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for tokenHash, entry := range m.sessions {
		if !now.Before(entry.expiresAt) {
			m.removeLocked(tokenHash, entry.principalID)
			removed++
		}
	}

	m.metrics.sessionsPurged(removed)
	return removed, nil
}

// removeLocked deletes a session and its principal index entry. m.mu must be held.
func (m *MemorySessionRegistry) removeLocked(tokenHash string, principalID uuid.UUID) {
	delete(m.sessions, tokenHash)
	if m.byPrincipal[principalID] == tokenHash {
		delete(m.byPrincipal, principalID)
	}
}

func (m *MemorySessionRegistry) periodicPurge() {
	defer close(m.purgeDone)

	ticker := time.NewTicker(m.purgeInterval)
	defer ticker.Stop()

	ctx := context.Background()

	for {
		select {
		case <-m.stopPurge:
			return
		case <-ticker.C:
			removed, _ := m.Purge(ctx, m.now())
			if removed > 0 {
				m.logger.Debug("purged expired refresh sessions", slog.Int("count", removed))
			}
		}
	}
}

// Close stops the background purge goroutine and waits for it to exit.
func (m *MemorySessionRegistry) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopPurge)
	})
	<-m.purgeDone
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet purged.
func (m *MemorySessionRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}
