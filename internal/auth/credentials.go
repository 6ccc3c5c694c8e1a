// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CredentialStore registers users and checks their passwords.
type CredentialStore struct {
	users     UserRepository
	hasher    PasswordHasher
	logger    *slog.Logger
	dummyHash string
}

// NewCredentialStore creates a CredentialStore that logs to slog.Default().
func NewCredentialStore(users UserRepository, hasher PasswordHasher) (*CredentialStore, error) {
	return NewCredentialStoreWithLogger(users, hasher, slog.Default())
}

// NewCredentialStoreWithLogger creates a CredentialStore with an explicit logger.
func NewCredentialStoreWithLogger(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*CredentialStore, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}

	// Unknown usernames are verified against this hash so the lookup outcome
	// does not show in response times. It is hashed with the live parameters
	// to cost the same as a real verification.
	filler := make([]byte, 16)
	if _, err := rand.Read(filler); err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("operation", "generate dummy password").Wrap(err)
	}
	dummyHash, err := hasher.Hash(hex.EncodeToString(filler))
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("operation", "hash dummy password").Wrap(err)
	}

	return &CredentialStore{
		users:     users,
		hasher:    hasher,
		logger:    logger,
		dummyHash: dummyHash,
	}, nil
}

// Register creates a user and returns its ID. The existence check is only a
// fast path; the repository's uniqueness constraint decides concurrent races.
func (s *CredentialStore) Register(ctx context.Context, username, password string) (ulid.ULID, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return ulid.ULID{}, err
	}

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check username").
			Wrap(err)
	}
	if exists {
		return ulid.ULID{}, userAlreadyExists(username)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, hash)
	if err != nil {
		return ulid.ULID{}, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.logger.DebugContext(ctx, "registration lost uniqueness race", "username", username)
			return ulid.ULID{}, userAlreadyExists(username)
		}
		return ulid.ULID{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user.ID, nil
}

// Authenticate verifies a password and returns the matching user's ID.
// An unknown username fails with InvalidCredentials and a wrong password
// with IncorrectCredentials.
func (s *CredentialStore) Authenticate(ctx context.Context, username, password string) (ulid.ULID, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return ulid.ULID{}, err
	}

	user, lookupErr := s.users.GetByUsername(ctx, username)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return ulid.ULID{}, oops.Code("AUTH_AUTHENTICATE_FAILED").
			With("operation", "get user by username").
			Wrap(lookupErr)
	}

	if lookupErr != nil {
		_, _ = s.hasher.Verify(password, s.dummyHash) //nolint:errcheck // timing only
		return ulid.ULID{}, oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_AUTHENTICATE_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if !valid {
		return ulid.ULID{}, oops.Code(CodeIncorrectCredentials).Errorf("incorrect username or password")
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	return user.ID, nil
}

// upgradeHash rehashes with the current parameters. Failures are logged and
// do not fail the login.
func (s *CredentialStore) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID.String(), "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade not stored", "user_id", user.ID.String(), "error", err)
		return
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID.String())
}

func userAlreadyExists(username string) error {
	return oops.Code(CodeUserAlreadyExists).
		With("username", username).
		Errorf("user already exists")
}
