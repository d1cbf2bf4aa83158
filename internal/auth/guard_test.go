// ABOUTME: Tests for Guard token verification and denial reasons
// ABOUTME: Covers each rejection reason, the injected clock and the deny hook

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/academy-gateway/internal/store"
)

// mockSessions is an in-memory SessionStore.
type mockSessions struct {
	sessions map[string]*store.AdminSession
	users    map[string]*store.AdminUser
	err      error
	panicMsg string
	calls    int
}

func newMockSessions() *mockSessions {
	return &mockSessions{
		sessions: map[string]*store.AdminSession{},
		users:    map[string]*store.AdminUser{},
	}
}

func (m *mockSessions) GetAdminSession(_ context.Context, id string) (*store.AdminSession, error) {
	m.calls++
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessions) GetAdminUser(_ context.Context, id string) (*store.AdminUser, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

type guardFixture struct {
	guard    *Guard
	verifier *JWTVerifier
	sessions *mockSessions
	denied   []Reason
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	f := &guardFixture{verifier: newTestVerifier(t), sessions: newMockSessions()}
	f.sessions.users["u1"] = &store.AdminUser{ID: "u1", Username: "coach", DisplayName: "Coach"}
	f.sessions.sessions["s1"] = &store.AdminSession{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	f.guard = NewGuard(f.verifier, f.sessions, nil, WithDenyHook(func(r Reason) { f.denied = append(f.denied, r) }))
	return f
}

func (f *guardFixture) token(t *testing.T, userID, sessionID string, exp time.Time) string {
	t.Helper()
	tok, err := f.verifier.Generate(userID, sessionID, exp)
	require.NoError(t, err)
	return tok
}

func TestGuard_Authorized(t *testing.T) {
	f := newGuardFixture(t)

	d := f.guard.Verify(context.Background(), f.token(t, "u1", "s1", time.Now().Add(time.Hour)))
	require.True(t, d.Authorized)
	require.NotNil(t, d.Principal)
	assert.Equal(t, "u1", d.Principal.UserID)
	assert.Equal(t, "coach", d.Principal.Username)
	assert.Equal(t, "s1", d.Principal.SessionID)
	assert.NoError(t, d.Err())
	assert.Empty(t, f.denied)
}

func TestGuard_MissingToken(t *testing.T) {
	f := newGuardFixture(t)

	d := f.guard.Verify(context.Background(), "")
	assert.False(t, d.Authorized)
	assert.Equal(t, ReasonMissingToken, d.Reason)
	assert.Nil(t, d.Principal)
	assert.Zero(t, f.sessions.calls, "no lookup without a token")

	var ae *AuthError
	require.ErrorAs(t, d.Err(), &ae)
	assert.Equal(t, ReasonMissingToken, ae.Reason)
}

func TestGuard_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *guardFixture) string
		want  Reason
	}{
		{
			name:  "garbage token",
			setup: func(t *testing.T, f *guardFixture) string { return "abc" },
			want:  ReasonInvalidToken,
		},
		{
			name: "expired jwt",
			setup: func(t *testing.T, f *guardFixture) string {
				return f.token(t, "u1", "s1", time.Now().Add(-time.Minute))
			},
			want: ReasonExpiredToken,
		},
		{
			name: "unknown session",
			setup: func(t *testing.T, f *guardFixture) string {
				return f.token(t, "u1", "nope", time.Now().Add(time.Hour))
			},
			want: ReasonInvalidToken,
		},
		{
			name: "revoked session",
			setup: func(t *testing.T, f *guardFixture) string {
				now := time.Now()
				f.sessions.sessions["s1"].RevokedAt = &now
				return f.token(t, "u1", "s1", time.Now().Add(time.Hour))
			},
			want: ReasonInvalidToken,
		},
		{
			name: "session expired before token",
			setup: func(t *testing.T, f *guardFixture) string {
				f.sessions.sessions["s1"].ExpiresAt = time.Now().Add(-time.Second)
				return f.token(t, "u1", "s1", time.Now().Add(time.Hour))
			},
			want: ReasonExpiredToken,
		},
		{
			name: "session of another user",
			setup: func(t *testing.T, f *guardFixture) string {
				return f.token(t, "u2", "s1", time.Now().Add(time.Hour))
			},
			want: ReasonInvalidToken,
		},
		{
			name: "deleted user",
			setup: func(t *testing.T, f *guardFixture) string {
				delete(f.sessions.users, "u1")
				return f.token(t, "u1", "s1", time.Now().Add(time.Hour))
			},
			want: ReasonInvalidToken,
		},
		{
			name: "store unavailable",
			setup: func(t *testing.T, f *guardFixture) string {
				f.sessions.err = &store.StoreError{Op: "get admin session", Err: errors.New("database is closed")}
				return f.token(t, "u1", "s1", time.Now().Add(time.Hour))
			},
			want: ReasonVerificationUnreachable,
		},
		{
			name: "store panics",
			setup: func(t *testing.T, f *guardFixture) string {
				f.sessions.panicMsg = "driver exploded"
				return f.token(t, "u1", "s1", time.Now().Add(time.Hour))
			},
			want: ReasonVerificationUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGuardFixture(t)
			token := tt.setup(t, f)

			var d Decision
			require.NotPanics(t, func() { d = f.guard.Verify(context.Background(), token) })
			assert.False(t, d.Authorized)
			assert.Nil(t, d.Principal)
			assert.Equal(t, tt.want, d.Reason)
			assert.Equal(t, []Reason{tt.want}, f.denied)
		})
	}
}

func TestGuard_Clock(t *testing.T) {
	f := newGuardFixture(t)
	later := time.Now().Add(2 * time.Hour)
	g := NewGuard(f.verifier, f.sessions, nil, WithClock(func() time.Time { return later }))

	d := g.Verify(context.Background(), f.token(t, "u1", "s1", time.Now().Add(3*time.Hour)))
	assert.Equal(t, ReasonExpiredToken, d.Reason)
}

func TestReason_HTTPStatus(t *testing.T) {
	assert.Equal(t, 401, ReasonMissingToken.HTTPStatus())
	assert.Equal(t, 401, ReasonInvalidToken.HTTPStatus())
	assert.Equal(t, 401, ReasonExpiredToken.HTTPStatus())
	assert.Equal(t, 503, ReasonVerificationUnreachable.HTTPStatus())
}
