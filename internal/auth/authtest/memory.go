// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

// Package authtest provides in-memory auth repositories and a settable
// clock for tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/noriauth/nori/internal/auth"
)

// Users is an in-memory auth.UserRepository with a unique username index.
type Users struct {
	mu     sync.Mutex
	byName map[string]*auth.User
}

// NewUsers returns an empty user repository.
func NewUsers() *Users {
	return &Users{byName: make(map[string]*auth.User)}
}

func (r *Users) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[user.Username]; ok {
		return auth.ErrAlreadyExists
	}
	stored := *user
	r.byName[user.Username] = &stored
	return nil
}

func (r *Users) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byName {
		if u.ID == id {
			stored := *u
			return &stored, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *Users) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byName[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	stored := *u
	return &stored, nil
}

func (r *Users) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byName[username]
	return ok, nil
}

func (r *Users) UpdatePasswordHash(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byName {
		if u.ID == id {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return auth.ErrNotFound
}

// Count returns the number of stored users.
func (r *Users) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

// Sessions is an in-memory auth.SessionRepository.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*auth.Session
}

// NewSessions returns an empty session repository.
func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*auth.Session)}
}

func (r *Sessions) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[session.ID]; ok {
		return auth.ErrAlreadyExists
	}
	stored := *session
	r.byID[session.ID] = &stored
	return nil
}

func (r *Sessions) GetByID(_ context.Context, id string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	stored := *s
	return &stored, nil
}

func (r *Sessions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if s.IsExpiredAt(now) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored sessions.
func (r *Sessions) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	_ auth.UserRepository    = (*Users)(nil)
	_ auth.SessionRepository = (*Sessions)(nil)
)
