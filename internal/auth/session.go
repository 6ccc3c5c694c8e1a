// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionIDBytes is the amount of randomness in a session ID (64 hex chars).
const SessionIDBytes = 32

// Session is a server-side authorization record. Its ID is the bearer token
// presented by the client.
type Session struct {
	ID     string
	UserID ulid.ULID
	// ExpiresAt is nil for long-lived ("remember me") sessions.
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// NewSession creates a validated Session with a fresh random ID.
// A nil expiresAt makes the session long-lived.
func NewSession(userID ulid.ULID, expiresAt *time.Time, now time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("expires_at", *expiresAt).
			Errorf("expiry must be after creation time")
	}

	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// IsLongLived reports whether the session has no expiry.
func (s *Session) IsLongLived() bool {
	return s.ExpiresAt == nil
}

// IsExpiredAt reports whether the session is expired at t. A session is
// expired from its expiry instant onwards.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(t)
}

// GenerateSessionID returns a hex-encoded random session identifier.
func GenerateSessionID() (string, error) {
	b := make([]byte, SessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_ID_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionIDBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByID retrieves a session by ID. Expired sessions are returned too.
	GetByID(ctx context.Context, id string) (*Session, error)

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every session expired at now and returns the
	// number of rows removed. Long-lived sessions are never removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
