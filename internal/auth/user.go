// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package auth

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Credential size limits. They bound storage and hashing work; they are
// not a password strength policy.
const (
	MaxUsernameLength = 64
	MaxPasswordLength = 1024
)

// User is a registered identity.
type User struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser creates a validated User with a fresh ID.
func NewUser(username, passwordHash string) (*User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// ValidateCredentials checks the shape of a username/password pair.
// Usernames are case-sensitive and are not normalized.
func ValidateCredentials(username, password string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if password == "" {
		return oops.Code(CodeInvalidRequest).Errorf("password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return oops.Code(CodeInvalidRequest).
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

func validateUsername(username string) error {
	if username == "" {
		return oops.Code(CodeInvalidRequest).Errorf("username cannot be empty")
	}
	if len(username) > MaxUsernameLength {
		return oops.Code(CodeInvalidRequest).
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d bytes", MaxUsernameLength)
	}
	if !utf8.ValidString(username) {
		return oops.Code(CodeInvalidRequest).Errorf("username must be valid UTF-8")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns an error wrapping ErrAlreadyExists
	// when the username is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// ExistsByUsername reports whether a user with the username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// UpdatePasswordHash replaces the stored hash for a user.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error
}
