// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session defaults.
const (
	DefaultShortTTL   = 10 * time.Second
	DefaultCookieName = "session"
)

// LongLivedCookieExpiry is the cookie expiry sent for long-lived sessions.
// The server never expires such sessions; this date is the effective
// lifetime on the client.
var LongLivedCookieExpiry = time.Date(2037, time.December, 31, 23, 55, 55, 0, time.UTC)

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	// ShortTTL is the lifetime of sessions created without "remember".
	ShortTTL time.Duration
	// CookieName is the name of the session cookie.
	CookieName string
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ShortTTL:   DefaultShortTTL,
		CookieName: DefaultCookieName,
	}
}

// Validate checks the configuration.
func (c SessionConfig) Validate() error {
	if c.ShortTTL < time.Microsecond {
		return oops.Code("AUTH_INVALID_CONFIG").With("short_ttl", c.ShortTTL.String()).Errorf("short TTL must be at least 1µs")
	}
	if c.CookieName == "" {
		return oops.Code("AUTH_INVALID_CONFIG").Errorf("cookie name is required")
	}
	return nil
}

// SessionManagerOption configures optional SessionManager behaviour.
type SessionManagerOption func(*SessionManager)

// WithClock replaces time.Now as the manager's time source.
func WithClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		m.now = now
	}
}

// WithSessionLogger sets the manager's logger.
func WithSessionLogger(logger *slog.Logger) SessionManagerOption {
	return func(m *SessionManager) {
		m.logger = logger
	}
}

// SessionManager issues and validates sessions.
type SessionManager struct {
	sessions SessionRepository
	cfg      SessionConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(sessions SessionRepository, cfg SessionConfig, opts ...SessionManagerOption) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("sessions repository is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &SessionManager{
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.now == nil || m.logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("clock and logger cannot be nil")
	}
	return m, nil
}

// CookieName returns the configured session cookie name.
func (m *SessionManager) CookieName() string {
	return m.cfg.CookieName
}

// CreateSession issues and stores a session for userID. Remembered sessions
// never expire server-side; others expire after the short TTL.
func (m *SessionManager) CreateSession(ctx context.Context, userID ulid.ULID, remember bool) (*Session, error) {
	// Timestamps are stored with microsecond precision.
	now := m.now().UTC().Truncate(time.Microsecond)

	var expiresAt *time.Time
	if !remember {
		t := now.Add(m.cfg.ShortTTL)
		expiresAt = &t
	}

	session, err := NewSession(userID, expiresAt, now)
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "build session").
			With("user_id", userID.String()).
			Wrap(err)
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID.String()).
			Wrap(err)
	}

	m.logger.DebugContext(ctx, "session created",
		"user_id", userID.String(),
		"long_lived", session.IsLongLived(),
	)
	return session, nil
}

// Cookie returns the cookie that binds the client to session.
func (m *SessionManager) Cookie(session *Session) *http.Cookie {
	expires := LongLivedCookieExpiry
	if session.ExpiresAt != nil {
		expires = session.ExpiresAt.UTC()
	}
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  expires,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// SerializeCookie renders the Set-Cookie header value for session.
func (m *SessionManager) SerializeCookie(session *Session) string {
	return m.Cookie(session).String()
}

// ClearCookie returns a cookie that removes the session cookie from the client.
func (m *SessionManager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// ResolveSession returns the user that owns sessionID. It fails with
// SessionNotFound for unknown IDs and SessionExpired once the expiry
// instant is reached.
func (m *SessionManager) ResolveSession(ctx context.Context, sessionID string) (ulid.ULID, error) {
	if sessionID == "" {
		return ulid.ULID{}, oops.Code(CodeSessionNotFound).Errorf("session not found")
	}

	session, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code(CodeSessionNotFound).Errorf("session not found")
		}
		return ulid.ULID{}, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by id").
			Wrap(err)
	}

	if session.IsExpiredAt(m.now()) {
		return ulid.ULID{}, oops.Code(CodeSessionExpired).
			With("expired_at", *session.ExpiresAt).
			Errorf("session has expired")
	}

	return session.UserID, nil
}

// RevokeSession deletes a session, ending it immediately.
func (m *SessionManager) RevokeSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return oops.Code(CodeSessionNotFound).Errorf("session not found")
	}

	if err := m.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeSessionNotFound).Errorf("session not found")
		}
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}

	m.logger.DebugContext(ctx, "session revoked")
	return nil
}

// PurgeExpired deletes every session that is expired now.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpired(ctx, m.now().UTC())
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	m.logger.InfoContext(ctx, "expired sessions purged", "count", n)
	return n, nil
}
