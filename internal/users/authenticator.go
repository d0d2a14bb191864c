package users

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gourdian25/gourdianauth"
)

// Authenticator checks a login and password against a Store.
type Authenticator struct {
	store  Store
	hasher PasswordHasher
	log    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthenticator(store Store, hasher PasswordHasher, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Authenticator{store: store, hasher: hasher, log: log}
}

// Authenticate returns the principal for valid credentials. Unknown logins and
// wrong passwords both yield ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, login, password string) (gourdianauth.Principal, error) {
	user, err := a.store.GetByLogin(ctx, login)
	if errors.Is(err, ErrUserNotFound) {
		// Spend the same work as a real comparison.
		a.hasher.Compare(a.fallbackHash(), password)
		return gourdianauth.Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return gourdianauth.Principal{}, err
	}

	if user.PasswordHash == "" || !a.hasher.Compare(user.PasswordHash, password) {
		a.log.Info("users.authenticate.rejected", "user_id", user.ID.String())
		return gourdianauth.Principal{}, ErrInvalidCredentials
	}

	return user.Principal(), nil
}

// Principal reloads the current principal for id.
func (a *Authenticator) Principal(ctx context.Context, id uuid.UUID) (gourdianauth.Principal, error) {
	user, err := a.store.GetByID(ctx, id)
	if err != nil {
		return gourdianauth.Principal{}, err
	}
	return user.Principal(), nil
}

func (a *Authenticator) fallbackHash() string {
	a.dummyOnce.Do(func() {
		hash, err := a.hasher.Hash("gourdianauth-timing-equalizer")
		if err != nil {
			a.log.Warn("users.authenticate.dummy_hash.fail", "err", err)
		}
		a.dummyHash = hash
	})
	return a.dummyHash
}
