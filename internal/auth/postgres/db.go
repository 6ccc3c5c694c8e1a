// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the query surface the repositories need. *pgxpool.Pool and
// pgxmock pools both satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Constraint names declared in the schema migrations.
const (
	constraintUsersUsername = "users_username_key"
	constraintSessionsPkey  = "sessions_pkey"
	constraintSessionsUser  = "sessions_user_id_fkey"
)

// violation reports whether err is a PostgreSQL error with the given SQLSTATE
// on the given constraint. An empty constraint matches any.
func violation(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isUniqueViolation(err error, constraint string) bool {
	return violation(err, pgerrcode.UniqueViolation, constraint)
}

func isForeignKeyViolation(err error, constraint string) bool {
	return violation(err, pgerrcode.ForeignKeyViolation, constraint)
}
