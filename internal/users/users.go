// Package users holds the account store and password check that precede
// token issuance in gourdianauthd.
package users

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gourdian25/gourdianauth"
)

// User is a stored account.
type User struct {
	ID           uuid.UUID
	Login        string
	Role         string
	PasswordHash string
}

// Principal returns the identity carried in tokens issued for u.
func (u *User) Principal() gourdianauth.Principal {
	return gourdianauth.Principal{ID: u.ID, Login: u.Login, Role: u.Role}
}

// Store looks up accounts.
type Store interface {
	GetByLogin(ctx context.Context, login string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byLogin map[string]*User
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*User),
		byLogin: make(map[string]*User),
	}
}

// Add stores a copy of user. A nil ID is replaced with a fresh one.
func (s *MemoryStore) Add(user User) (*User, error) {
	user.Login = strings.TrimSpace(user.Login)
	if user.Login == "" {
		return nil, fmt.Errorf("%w: empty login", gourdianauth.ErrInvalidPrincipal)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byLogin[user.Login]; exists {
		return nil, ErrUserExists
	}
	if _, exists := s.byID[user.ID]; exists {
		return nil, ErrUserExists
	}

	stored := user
	s.byID[stored.ID] = &stored
	s.byLogin[stored.Login] = &stored

	out := stored
	return &out, nil
}

// SetRole changes the role of an existing user.
func (s *MemoryStore) SetRole(id uuid.UUID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.Role = role
	return nil
}

func (s *MemoryStore) GetByLogin(_ context.Context, login string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byLogin[strings.TrimSpace(login)]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

// ParseSeed reads "login:password[:role]" and returns a user with a hashed password.
func ParseSeed(seed string, hasher PasswordHasher) (User, error) {
	parts := strings.SplitN(seed, ":", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}

	hash, err := hasher.Hash(parts[1])
	if err != nil {
		return User{}, err
	}

	user := User{Login: strings.TrimSpace(parts[0]), PasswordHash: hash}
	if len(parts) == 3 {
		user.Role = strings.TrimSpace(parts[2])
	}
	return user, nil
}
