// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noriauth/nori/internal/auth"
	"github.com/noriauth/nori/pkg/errutil"
)

// cheapParams keeps hashing fast in tests.
var cheapParams = auth.Argon2Params{
	MemoryKiB:   1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func newCheapHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	hasher, err := auth.NewArgon2idHasherWithParams(cheapParams)
	require.NoError(t, err)
	return hasher
}

func TestHashPassword(t *testing.T) {
	hasher := newCheapHasher(t)

	t.Run("produces PHC string with configured parameters", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"), hash)
		assert.Len(t, strings.Split(hash, "$"), 6)
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
	})
}

func TestDefaultHasherUsesDefaultParams(t *testing.T) {
	hasher := auth.NewArgon2idHasher()
	assert.Equal(t, auth.DefaultArgon2Params(), hasher.Params())
	require.NoError(t, hasher.Params().Validate())
}

func TestArgon2Params_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *auth.Argon2Params)
	}{
		{"zero iterations", func(p *auth.Argon2Params) { p.Iterations = 0 }},
		{"zero parallelism", func(p *auth.Argon2Params) { p.Parallelism = 0 }},
		{"memory below lane minimum", func(p *auth.Argon2Params) { p.MemoryKiB = 4 }},
		{"short salt", func(p *auth.Argon2Params) { p.SaltLength = 4 }},
		{"long key", func(p *auth.Argon2Params) { p.KeyLength = 256 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := cheapParams
			tt.mutate(&params)
			_, err := auth.NewArgon2idHasherWithParams(params)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH_PARAMS")
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	hasher := newCheapHasher(t)

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("hash from weaker parameters still verifies", func(t *testing.T) {
		weaker := cheapParams
		weaker.MemoryKiB = 512
		old, err := auth.NewArgon2idHasherWithParams(weaker)
		require.NoError(t, err)

		hash, err := old.Hash("password")
		require.NoError(t, err)

		ok, err := hasher.Verify("password", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("hash far above configured cost is rejected", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
	})

	invalid := []struct {
		name string
		hash string
		want string
	}{
		{"invalid hash format", "not-a-valid-hash", "invalid hash format"},
		{"wrong algorithm", "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA", "unsupported hash algorithm"},
		{"invalid version format", "$argon2id$vXX$m=1024,t=1,p=1$c2FsdA$aGFzaA", ""},
		{"unsupported version", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA", "unsupported argon2 version"},
		{"invalid parameters format", "$argon2id$v=19$invalid$c2FsdA$aGFzaA", ""},
		{"invalid salt base64", "$argon2id$v=19$m=1024,t=1,p=1$!!!invalid!!!$aGFzaA", ""},
		{"invalid hash base64", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$!!!invalid!!!", ""},
		{"threads overflow", "$argon2id$v=19$m=1024,t=1,p=256$c2FsdA$aGFzaA", "threads value"},
	}
	for _, tt := range invalid {
		t.Run(tt.name+" returns error", func(t *testing.T) {
			_, err := hasher.Verify("password", tt.hash)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestNeedsUpgrade(t *testing.T) {
	hasher := newCheapHasher(t)

	t.Run("bcrypt hash needs upgrade", func(t *testing.T) {
		assert.True(t, hasher.NeedsUpgrade("$2a$10$N9qo8uLOickgx2ZMRZoMyeIvNq.Uf3hE9tQALNP1Qn9sNp5x5x5x5"))
	})

	t.Run("hash with current parameters does not", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.False(t, hasher.NeedsUpgrade(hash))
	})

	t.Run("hash with other parameters does", func(t *testing.T) {
		other := cheapParams
		other.Iterations = 2
		otherHasher, err := auth.NewArgon2idHasherWithParams(other)
		require.NoError(t, err)

		hash, err := otherHasher.Hash("password")
		require.NoError(t, err)
		assert.True(t, hasher.NeedsUpgrade(hash))
	})
}
