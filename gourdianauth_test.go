// gourdianauth_test.go
package gourdianauth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Login, verify, rotate and replay", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)
		alice := Principal{ID: uuid.New(), Login: "alice", Role: "admin"}

		pair, err := coordinator.IssueInitialPair(ctx, alice)
		require.NoError(t, err)
		require.NotEmpty(t, pair.Access.Token)
		require.NotEmpty(t, pair.Refresh.Token)
		assert.Equal(t, alice.ID, pair.Refresh.PrincipalID)

		verified, err := coordinator.Verify(pair.Access.Token)
		require.NoError(t, err)
		assert.Equal(t, alice, *verified)

		rotated, err := coordinator.Rotate(ctx, pair.Refresh.Token, alice)
		require.NoError(t, err)
		assert.NotEqual(t, pair.Refresh.Token, rotated.Refresh.Token)
		assert.NotEqual(t, pair.Access.TokenID, rotated.Access.TokenID)

		_, err = coordinator.Verify(rotated.Access.Token)
		require.NoError(t, err)

		// Replaying the consumed token fails and issues nothing.
		replayed, err := coordinator.Rotate(ctx, pair.Refresh.Token, alice)
		require.ErrorIs(t, err, ErrRotationFailed)
		assert.Nil(t, replayed)

		// The rotated session is still live.
		_, err = coordinator.Rotate(ctx, rotated.Refresh.Token, alice)
		require.NoError(t, err)
	})

	t.Run("Second login evicts the first session", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)
		principal := testPrincipal()

		first, err := coordinator.IssueInitialPair(ctx, principal)
		require.NoError(t, err)
		second, err := coordinator.IssueInitialPair(ctx, principal)
		require.NoError(t, err)

		_, err = coordinator.Rotate(ctx, first.Refresh.Token, principal)
		require.ErrorIs(t, err, ErrRotationFailed)

		_, err = coordinator.Rotate(ctx, second.Refresh.Token, principal)
		require.NoError(t, err)
	})

	t.Run("Unknown refresh token", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)

		for _, token := range []string{"", "not-a-real-token", "a.b.c"} {
			_, err := coordinator.Rotate(ctx, token, testPrincipal())
			require.ErrorIs(t, err, ErrRotationFailed)
		}
	})

	t.Run("Access token is not a refresh token", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)
		principal := testPrincipal()

		pair, err := coordinator.IssueInitialPair(ctx, principal)
		require.NoError(t, err)

		_, err = coordinator.Rotate(ctx, pair.Access.Token, principal)
		require.ErrorIs(t, err, ErrRotationFailed)
	})

	t.Run("Identity mismatch consumes the session", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)
		alice := testPrincipal()
		mallory := Principal{ID: uuid.New(), Login: "mallory", Role: "user"}

		pair, err := coordinator.IssueInitialPair(ctx, alice)
		require.NoError(t, err)

		stolen, err := coordinator.Rotate(ctx, pair.Refresh.Token, mallory)
		require.Nil(t, stolen)
		require.ErrorIs(t, err, ErrIdentityMismatch)
		require.NotErrorIs(t, err, ErrRotationFailed)

		var mismatch *IdentityMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, alice.ID, mismatch.SessionOwner)
		assert.Equal(t, mallory.ID, mismatch.Presented)

		// The rightful owner cannot reuse it either.
		_, err = coordinator.Rotate(ctx, pair.Refresh.Token, alice)
		require.ErrorIs(t, err, ErrRotationFailed)
	})

	t.Run("Invalid principal leaves the session intact", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)
		principal := testPrincipal()

		pair, err := coordinator.IssueInitialPair(ctx, principal)
		require.NoError(t, err)

		_, err = coordinator.Rotate(ctx, pair.Refresh.Token, Principal{ID: principal.ID})
		require.ErrorIs(t, err, ErrInvalidPrincipal)

		_, err = coordinator.Rotate(ctx, pair.Refresh.Token, principal)
		require.NoError(t, err)
	})

	t.Run("Invalid principal on login", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)

		pair, err := coordinator.IssueInitialPair(ctx, Principal{Login: "alice"})
		require.ErrorIs(t, err, ErrInvalidPrincipal)
		assert.Nil(t, pair)
	})

	t.Run("Expiry of both tokens", func(t *testing.T) {
		clock := newTestClock()
		coordinator := newTestCoordinator(t, nil, WithClock(clock.Now))
		principal := testPrincipal()

		pair, err := coordinator.IssueInitialPair(ctx, principal)
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(15*time.Minute), pair.Access.ExpiresAt)
		assert.Equal(t, clock.Now().Add(7*24*time.Hour), pair.Refresh.ExpiresAt)

		clock.Advance(15 * time.Minute)
		_, err = coordinator.Verify(pair.Access.Token)
		require.ErrorIs(t, err, ErrVerificationFailed)

		// An expired access token does not prevent rotation.
		rotated, err := coordinator.Rotate(ctx, pair.Refresh.Token, principal)
		require.NoError(t, err)

		clock.Advance(7 * 24 * time.Hour)
		_, err = coordinator.Rotate(ctx, rotated.Refresh.Token, principal)
		require.ErrorIs(t, err, ErrRotationFailed)
	})

	t.Run("Verify claims", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)
		principal := testPrincipal()

		pair, err := coordinator.IssueInitialPair(ctx, principal)
		require.NoError(t, err)

		claims, err := coordinator.VerifyClaims(pair.Access.Token)
		require.NoError(t, err)
		assert.Equal(t, pair.Access.TokenID, claims.ID)
		assert.Equal(t, principal, claims.Principal())

		_, err = coordinator.VerifyClaims("garbage")
		require.Equal(t, ErrVerificationFailed, err)
	})
}

func TestCoordinatorSessionManagement(t *testing.T) {
	ctx := context.Background()

	t.Run("Session owner does not consume", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)
		principal := testPrincipal()

		pair, err := coordinator.IssueInitialPair(ctx, principal)
		require.NoError(t, err)

		owner, err := coordinator.SessionOwner(ctx, pair.Refresh.Token)
		require.NoError(t, err)
		assert.Equal(t, principal.ID, owner)

		_, err = coordinator.Rotate(ctx, pair.Refresh.Token, principal)
		require.NoError(t, err)

		_, err = coordinator.SessionOwner(ctx, pair.Refresh.Token)
		require.ErrorIs(t, err, ErrRotationFailed)
	})

	t.Run("Logout", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)
		principal := testPrincipal()

		pair, err := coordinator.IssueInitialPair(ctx, principal)
		require.NoError(t, err)

		require.NoError(t, coordinator.Logout(ctx, pair.Refresh.Token))
		_, err = coordinator.Rotate(ctx, pair.Refresh.Token, principal)
		require.ErrorIs(t, err, ErrRotationFailed)

		// Logging out twice or with garbage is harmless.
		require.NoError(t, coordinator.Logout(ctx, pair.Refresh.Token))
		require.NoError(t, coordinator.Logout(ctx, "garbage"))
	})

	t.Run("Revoke principal", func(t *testing.T) {
		coordinator := newTestCoordinator(t, nil)
		principal := testPrincipal()

		pair, err := coordinator.IssueInitialPair(ctx, principal)
		require.NoError(t, err)

		require.NoError(t, coordinator.RevokePrincipal(ctx, principal.ID))
		_, err = coordinator.Rotate(ctx, pair.Refresh.Token, principal)
		require.ErrorIs(t, err, ErrRotationFailed)
	})

	t.Run("Shared Redis registry", func(t *testing.T) {
		client, _ := testRedisClient(t)
		registry, err := NewRedisSessionRegistry(client, "")
		require.NoError(t, err)

		// Two coordinators behind a load balancer share sessions.
		first := newTestCoordinator(t, registry)
		second := newTestCoordinator(t, registry)
		principal := testPrincipal()

		pair, err := first.IssueInitialPair(ctx, principal)
		require.NoError(t, err)

		rotated, err := second.Rotate(ctx, pair.Refresh.Token, principal)
		require.NoError(t, err)

		_, err = first.Rotate(ctx, pair.Refresh.Token, principal)
		require.ErrorIs(t, err, ErrRotationFailed)

		_, err = first.Verify(rotated.Access.Token)
		require.NoError(t, err)
	})

	t.Run("Close leaves a caller registry open", func(t *testing.T) {
		registry := NewMemorySessionRegistry(time.Hour)
		defer registry.Close()

		coordinator, err := NewCoordinator(testConfig(), registry)
		require.NoError(t, err)
		require.NoError(t, coordinator.Close())

		_, err = registry.CreateSession(ctx, uuid.New(), time.Hour)
		require.NoError(t, err)
	})
}

func TestCoordinatorTokenCollision(t *testing.T) {
	ctx := context.Background()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	coordinator := newTestCoordinator(t, nil, WithLogger(logger), withTokenSource(fixedTokenSource(t)))

	alice := testPrincipal()
	first, err := coordinator.IssueInitialPair(ctx, alice)
	require.NoError(t, err)

	pair, err := coordinator.IssueInitialPair(ctx, Principal{ID: uuid.New(), Login: "bob", Role: "user"})
	require.ErrorIs(t, err, ErrTokenCollision)
	assert.Nil(t, pair)
	assert.Contains(t, logs.String(), "refresh token collision")

	// A failed issuance does not disturb the existing session.
	owner, err := coordinator.SessionOwner(ctx, first.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, owner)
}

func TestCoordinatorMetrics(t *testing.T) {
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	coordinator := newTestCoordinator(t, nil, WithMetrics(metrics))
	alice := testPrincipal()

	pair, err := coordinator.IssueInitialPair(ctx, alice)
	require.NoError(t, err)

	rotated, err := coordinator.Rotate(ctx, pair.Refresh.Token, alice)
	require.NoError(t, err)

	_, err = coordinator.Rotate(ctx, pair.Refresh.Token, alice)
	require.ErrorIs(t, err, ErrRotationFailed)

	_, err = coordinator.Rotate(ctx, rotated.Refresh.Token, testPrincipal())
	require.ErrorIs(t, err, ErrIdentityMismatch)

	_, err = coordinator.Verify(rotated.Access.Token)
	require.NoError(t, err)
	_, err = coordinator.Verify("garbage")
	require.Error(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.tokensIssued))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rotations.WithLabelValues(resultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rotations.WithLabelValues(resultFailure)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rotations.WithLabelValues(resultMismatch)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.verifications.WithLabelValues(resultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.verifications.WithLabelValues(resultFailure)))

	t.Run("Duplicate registration", func(t *testing.T) {
		_, err := NewMetrics(reg)
		require.Error(t, err)
	})

	t.Run("Nil metrics are a no-op", func(t *testing.T) {
		var m *Metrics
		m.pairIssued()
		m.rotation(resultSuccess)
		m.verification(true)
		m.sessionsPurged(3)
	})
}
