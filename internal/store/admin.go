// ABOUTME: Admin user and session types and store methods
// ABOUTME: Sessions back the bearer tokens checked by the admin guard

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyBootstrapped is returned by BootstrapAdmin when an admin already exists.
var ErrAlreadyBootstrapped = errors.New("admin user already exists")

// AdminUser is an account allowed to use admin routes.
type AdminUser struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash
	DisplayName  string
	CreatedAt    time.Time
}

// AdminSession is a server-side login session. A session is usable while it is
// neither revoked nor past ExpiresAt.
type AdminSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authorize requests at now.
func (s *AdminSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// CreateAdminUser creates a new admin user.
func (q *queries) CreateAdminUser(ctx context.Context, user *AdminUser) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := q.Exec(ctx, Q(`
		INSERT INTO admin_users (id, username, password_hash, display_name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.DisplayName, formatTime(user.CreatedAt),
	))
	if errors.Is(err, errUniqueConstraint) {
		return ErrUsernameExists
	}
	if err != nil {
		return wrapErr("create admin user", err)
	}

	q.logger.Info("created admin user", "id", user.ID, "username", user.Username)
	return nil
}

// GetAdminUser retrieves an admin user by ID.
func (q *queries) GetAdminUser(ctx context.Context, id string) (*AdminUser, error) {
	r, err := q.QueryOne(ctx, Q(`
		SELECT id, username, password_hash, display_name, created_at
		FROM admin_users
		WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr("get admin user", err)
	}
	return adminUserFromRecord(r), nil
}

// GetAdminUserByUsername retrieves an admin user by username.
func (q *queries) GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error) {
	r, err := q.QueryOne(ctx, Q(`
		SELECT id, username, password_hash, display_name, created_at
		FROM admin_users
		WHERE username = ?`, username))
	if err != nil {
		return nil, wrapErr("get admin user by username", err)
	}
	return adminUserFromRecord(r), nil
}

// UpdateAdminUserPassword replaces an admin user's password hash.
func (q *queries) UpdateAdminUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := q.Exec(ctx, Q(`UPDATE admin_users SET password_hash = ? WHERE id = ?`, passwordHash, id))
	if err != nil {
		return wrapErr("update admin user password", err)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	q.logger.Info("updated admin user password", "id", id)
	return nil
}

// CountAdminUsers returns the number of admin users.
func (q *queries) CountAdminUsers(ctx context.Context) (int, error) {
	r, err := q.QueryOne(ctx, Q(`SELECT COUNT(*) AS n FROM admin_users`))
	if err != nil {
		return 0, wrapErr("count admin users", err)
	}
	return int(r.Int64("n")), nil
}

// CreateAdminSession stores a new session.
func (q *queries) CreateAdminSession(ctx context.Context, session *AdminSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := q.Exec(ctx, Q(`
		INSERT INTO admin_sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, formatTime(session.CreatedAt), formatTime(session.ExpiresAt),
	))
	if err != nil {
		return wrapErr("create admin session", err)
	}

	q.logger.Debug("created admin session", "id", session.ID, "user_id", session.UserID)
	return nil
}

// GetAdminSession returns the session with the given ID, including revoked and
// expired ones. Callers decide validity with AdminSession.Active.
func (q *queries) GetAdminSession(ctx context.Context, id string) (*AdminSession, error) {
	r, err := q.QueryOne(ctx, Q(`
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM admin_sessions
		WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr("get admin session", err)
	}
	return &AdminSession{
		ID:        r.String("id"),
		UserID:    r.String("user_id"),
		CreatedAt: r.Time("created_at"),
		ExpiresAt: r.Time("expires_at"),
		RevokedAt: r.NullableTime("revoked_at"),
	}, nil
}

// RevokeAdminSession marks a session revoked. Revoking twice is not an error.
func (q *queries) RevokeAdminSession(ctx context.Context, id string) error {
	res, err := q.Exec(ctx, Q(`
		UPDATE admin_sessions
		SET revoked_at = COALESCE(revoked_at, ?)
		WHERE id = ?`, formatTime(time.Now()), id))
	if err != nil {
		return wrapErr("revoke admin session", err)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	q.logger.Info("revoked admin session", "id", id)
	return nil
}

// DeleteExpiredAdminSessions removes sessions that expired or were revoked
// before now. It returns the number of rows removed.
func (q *queries) DeleteExpiredAdminSessions(ctx context.Context, now time.Time) (int64, error) {
	cutoff := formatTime(now)
	res, err := q.Exec(ctx, Q(`
		DELETE FROM admin_sessions
		WHERE expires_at <= ? OR (revoked_at IS NOT NULL AND revoked_at <= ?)`, cutoff, cutoff))
	if err != nil {
		return 0, wrapErr("delete expired admin sessions", err)
	}
	return res.RowsAffected, nil
}

// StartAdminSession prunes the user's dead sessions and stores a new one in a
// single transaction.
func (s *SQLiteStore) StartAdminSession(ctx context.Context, session *AdminSession) error {
	return s.RunInTransaction(ctx, func(tx *Tx) error {
		cutoff := formatTime(time.Now())
		if _, err := tx.Exec(ctx, Q(`
			DELETE FROM admin_sessions
			WHERE user_id = ? AND (expires_at <= ? OR revoked_at IS NOT NULL)`,
			session.UserID, cutoff)); err != nil {
			return wrapErr("prune admin sessions", err)
		}
		return tx.CreateAdminSession(ctx, session)
	})
}

// BootstrapAdmin creates user only if no admin exists yet.
func (s *SQLiteStore) BootstrapAdmin(ctx context.Context, user *AdminUser) error {
	return s.RunInTransaction(ctx, func(tx *Tx) error {
		n, err := tx.CountAdminUsers(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyBootstrapped
		}
		return tx.CreateAdminUser(ctx, user)
	})
}

func adminUserFromRecord(r Record) *AdminUser {
	return &AdminUser{
		ID:           r.String("id"),
		Username:     r.String("username"),
		PasswordHash: r.String("password_hash"),
		DisplayName:  r.String("display_name"),
		CreatedAt:    r.Time("created_at"),
	}
}
