// ABOUTME: Tests for admin user and session store methods
// ABOUTME: Covers uniqueness, revocation, pruning and first-admin bootstrap

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestUser(t *testing.T, s *SQLiteStore, id, username string) *AdminUser {
	t.Helper()
	u := &AdminUser{ID: id, Username: username, PasswordHash: "hash", DisplayName: "Coach " + username}
	require.NoError(t, s.CreateAdminUser(context.Background(), u))
	return u
}

func TestAdminUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "u1", "magnus")

	got, err := s.GetAdminUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "magnus", got.Username)
	assert.Equal(t, "Coach magnus", got.DisplayName)

	got, err = s.GetAdminUserByUsername(ctx, "magnus")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	err = s.CreateAdminUser(ctx, &AdminUser{ID: "u2", Username: "magnus", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrUsernameExists)

	_, err = s.GetAdminUser(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpdateAdminUserPassword(ctx, "u1", "newhash"))
	got, err = s.GetAdminUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)
	assert.ErrorIs(t, s.UpdateAdminUserPassword(ctx, "nope", "x"), ErrNotFound)

	n, err := s.CountAdminUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdminSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "u1", "judit")

	sess := &AdminSession{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateAdminSession(ctx, sess))

	got, err := s.GetAdminSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Nil(t, got.RevokedAt)
	assert.True(t, got.Active(time.Now()))

	require.NoError(t, s.RevokeAdminSession(ctx, "s1"))
	got, err = s.GetAdminSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.False(t, got.Active(time.Now()))

	// Revoking again keeps the original timestamp.
	first := *got.RevokedAt
	require.NoError(t, s.RevokeAdminSession(ctx, "s1"))
	got, err = s.GetAdminSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, first.Equal(*got.RevokedAt))

	assert.ErrorIs(t, s.RevokeAdminSession(ctx, "missing"), ErrNotFound)
	_, err = s.GetAdminSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminSession_Active(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	assert.True(t, (&AdminSession{ExpiresAt: now.Add(time.Minute)}).Active(now))
	assert.False(t, (&AdminSession{ExpiresAt: now}).Active(now))
	assert.False(t, (&AdminSession{ExpiresAt: now.Add(time.Minute), RevokedAt: &revoked}).Active(now))
}

func TestStartAdminSession_PrunesDeadSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "u1", "hikaru")
	createTestUser(t, s, "u2", "fabiano")

	require.NoError(t, s.CreateAdminSession(ctx, &AdminSession{ID: "old", UserID: "u1", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, s.CreateAdminSession(ctx, &AdminSession{ID: "live", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.CreateAdminSession(ctx, &AdminSession{ID: "other", UserID: "u2", ExpiresAt: time.Now().Add(-time.Hour)}))

	require.NoError(t, s.StartAdminSession(ctx, &AdminSession{ID: "new", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))

	_, err := s.GetAdminSession(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetAdminSession(ctx, "live")
	assert.NoError(t, err)
	_, err = s.GetAdminSession(ctx, "new")
	assert.NoError(t, err)
	// Other users' sessions are untouched.
	_, err = s.GetAdminSession(ctx, "other")
	assert.NoError(t, err)
}

func TestDeleteExpiredAdminSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "u1", "wesley")

	require.NoError(t, s.CreateAdminSession(ctx, &AdminSession{ID: "old", UserID: "u1", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, s.CreateAdminSession(ctx, &AdminSession{ID: "live", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))

	n, err := s.DeleteExpiredAdminSessions(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBootstrapAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BootstrapAdmin(ctx, &AdminUser{ID: "u1", Username: "first", PasswordHash: "h"}))

	err := s.BootstrapAdmin(ctx, &AdminUser{ID: "u2", Username: "second", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrAlreadyBootstrapped)

	n, err := s.CountAdminUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
