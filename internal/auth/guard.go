// ABOUTME: Admin session guard, the single authority for admin authorization
// ABOUTME: Verifies a token against its JWT signature, session row and user row

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/academy-gateway/internal/store"
)

// SessionStore is the read-only slice of the store the guard consults.
type SessionStore interface {
	GetAdminSession(ctx context.Context, id string) (*store.AdminSession, error)
	GetAdminUser(ctx context.Context, id string) (*store.AdminUser, error)
}

// Principal is the authenticated admin behind a request.
type Principal struct {
	UserID      string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	SessionID   string    `json:"-"`
	ExpiresAt   time.Time `json:"-"`
}

// Decision is the outcome of Guard.Verify. Exactly one of Principal (when
// Authorized) or Reason (otherwise) is meaningful.
type Decision struct {
	Authorized bool
	Principal  *Principal
	Reason     Reason

	cause error
}

// Err returns nil for an authorized decision and an *AuthError otherwise.
func (d Decision) Err() error {
	if d.Authorized {
		return nil
	}
	return &AuthError{Reason: d.Reason, Err: d.cause}
}

func deny(reason Reason, cause error) Decision {
	return Decision{Reason: reason, cause: cause}
}

// Guard verifies admin session tokens.
type Guard struct {
	verifier TokenVerifier
	sessions SessionStore
	logger   *slog.Logger
	now      func() time.Time
	onDeny   func(Reason)
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithDenyHook registers fn to be called with the reason of every rejection.
func WithDenyHook(fn func(Reason)) GuardOption {
	return func(g *Guard) { g.onDeny = fn }
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a guard backed by verifier and sessions.
func NewGuard(verifier TokenVerifier, sessions SessionStore, logger *slog.Logger, opts ...GuardOption) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{
		verifier: verifier,
		sessions: sessions,
		logger:   logger.With("component", "auth"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// reject denies without a lookup and reports the denial.
func (g *Guard) reject(reason Reason, cause error) Decision {
	g.notifyDeny(reason)
	return deny(reason, cause)
}

func (g *Guard) notifyDeny(reason Reason) {
	if g.onDeny != nil {
		g.onDeny(reason)
	}
}

// Verify decides whether token belongs to a live admin session. It has no
// side effects beyond the lookups and never panics; a failing lookup becomes
// ReasonVerificationUnreachable.
func (g *Guard) Verify(ctx context.Context, token string) (d Decision) {
	defer func() {
		if !d.Authorized {
			g.notifyDeny(d.Reason)
		}
	}()

	if token == "" {
		return deny(ReasonMissingToken, nil)
	}

	defer func() {
		if p := recover(); p != nil {
			g.logger.Error("session verification panicked", "panic", p)
			d = deny(ReasonVerificationUnreachable, fmt.Errorf("verification panicked: %v", p))
		}
	}()

	claims, err := g.verifier.Verify(token)
	if errors.Is(err, ErrExpiredToken) {
		return deny(ReasonExpiredToken, err)
	}
	if err != nil {
		return deny(ReasonInvalidToken, err)
	}

	session, err := g.sessions.GetAdminSession(ctx, claims.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return deny(ReasonInvalidToken, errors.New("session not found"))
	}
	if err != nil {
		g.logger.Warn("session lookup failed", "error", err)
		return deny(ReasonVerificationUnreachable, err)
	}

	if session.UserID != claims.UserID {
		return deny(ReasonInvalidToken, errors.New("session belongs to another user"))
	}
	if session.RevokedAt != nil {
		return deny(ReasonInvalidToken, errors.New("session revoked"))
	}
	if !g.now().Before(session.ExpiresAt) {
		return deny(ReasonExpiredToken, errors.New("session expired"))
	}

	user, err := g.sessions.GetAdminUser(ctx, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return deny(ReasonInvalidToken, errors.New("user not found"))
	}
	if err != nil {
		g.logger.Warn("user lookup failed", "error", err)
		return deny(ReasonVerificationUnreachable, err)
	}

	return Decision{
		Authorized: true,
		Principal: &Principal{
			UserID:      user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			SessionID:   session.ID,
			ExpiresAt:   session.ExpiresAt,
		},
	}
}
