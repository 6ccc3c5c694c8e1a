// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

// Package auth implements password credentials and server-side sessions.
//
// # Components
//
//   - CredentialStore registers users and authenticates them by password.
//   - SessionManager issues, resolves and revokes sessions and renders
//     the session cookie.
//
// Both are built with constructors that validate their dependencies and
// return an error instead of panicking. Persistence is behind the
// UserRepository and SessionRepository interfaces; the PostgreSQL
// implementations live in the postgres subpackage.
//
// # Errors
//
// Every error returned by a component is an oops error with a stable code.
// KindOf maps a code to the client-facing Kind; errors without a known
// code are KindInternal and their text must not be shown to clients.
package auth
