// Package gourdianauth issues and rotates short-lived access tokens and
// single-use refresh sessions.
//
// # Overview
//
// The package provides:
//   - Signed JWT access tokens carrying a principal's id, login and role
//     (HS256/384/512, RS256/384/512, ES256/384/512, EdDSA)
//   - Stateless verification of signature, issuer, audience and expiry with no clock skew
//   - A refresh session registry with single-use rotation and one live session per principal
//   - In-memory and Redis registry backends
//   - Prometheus metrics and slog logging hooks
//
// # Lifecycle
//
// After an external credential check, IssueInitialPair returns an access token
// and a refresh session. Rotate consumes the presented refresh token and returns
// a fresh pair; a consumed, expired or unknown token fails with ErrRotationFailed
// and the caller must re-authenticate. Issuing a new pair for a principal
// invalidates any session it held before.
//
// # Usage Example
//
//	config := gourdianauth.DefaultConfig(os.Getenv("GOURDIANAUTH_JWT_KEY"))
//	config.Issuer = "auth.example.com"
//	config.Audience = []string{"api.example.com"}
//
//	coordinator, err := gourdianauth.NewCoordinator(config, nil)
//	if err != nil {
//	    log.Fatal(err) // weak keys and bad TTLs are startup errors
//	}
//	defer coordinator.Close()
//
//	pair, err := coordinator.IssueInitialPair(ctx, principal)
//	// deliver pair.Refresh.Token as an http-only cookie, pair.Access.Token to the client
//
//	pair, err = coordinator.Rotate(ctx, presentedRefreshToken, principal)
//	if errors.Is(err, gourdianauth.ErrRotationFailed) {
//	    // ask the client to log in again
//	}
//
//	p, err := coordinator.Verify(accessToken)
package gourdianauth
