// ABOUTME: Admin login and logout: bcrypt password check, session row, signed token
// ABOUTME: The only place that creates or revokes admin sessions

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/academy-gateway/internal/store"
)

// ErrInvalidCredentials is returned by Login for an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// DefaultSessionTTL is used when the issuer is created with a zero TTL.
const DefaultSessionTTL = 24 * time.Hour

// dummyHash keeps Login timing the same whether or not the user exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// IssuerStore is the slice of the store needed to start and end sessions.
type IssuerStore interface {
	GetAdminUserByUsername(ctx context.Context, username string) (*store.AdminUser, error)
	StartAdminSession(ctx context.Context, session *store.AdminSession) error
	RevokeAdminSession(ctx context.Context, id string) error
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Principal *Principal
}

// Issuer creates and revokes admin sessions.
type Issuer struct {
	store    IssuerStore
	verifier *JWTVerifier
	ttl      time.Duration
	logger   *slog.Logger
}

// NewIssuer creates an issuer whose sessions last ttl.
func NewIssuer(s IssuerStore, verifier *JWTVerifier, ttl time.Duration, logger *slog.Logger) *Issuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{store: s, verifier: verifier, ttl: ttl, logger: logger.With("component", "auth")}
}

// Login checks the password and starts a new session.
func (i *Issuer) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := i.store.GetAdminUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up admin user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		i.logger.Info("admin login rejected", "username", username)
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	session := &store.AdminSession{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(i.ttl),
	}
	if err := i.store.StartAdminSession(ctx, session); err != nil {
		return nil, fmt.Errorf("starting admin session: %w", err)
	}

	token, err := i.verifier.Generate(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}

	i.logger.Info("admin logged in", "user_id", user.ID, "session_id", session.ID)
	return &LoginResult{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		Principal: &Principal{
			UserID:      user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			SessionID:   session.ID,
			ExpiresAt:   session.ExpiresAt,
		},
	}, nil
}

// Logout revokes the principal's session.
func (i *Issuer) Logout(ctx context.Context, p *Principal) error {
	if p == nil || p.SessionID == "" {
		return errors.New("no session to revoke")
	}
	if err := i.store.RevokeAdminSession(ctx, p.SessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("revoking admin session: %w", err)
	}
	i.logger.Info("admin logged out", "user_id", p.UserID, "session_id", p.SessionID)
	return nil
}

// HashPassword returns the bcrypt hash stored for an admin password.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
