// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package auth

import (
	"errors"

	"github.com/noriauth/nori/pkg/errutil"
)

// ErrNotFound is returned by repositories when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by repositories when an insert collides with a
// uniqueness constraint.
var ErrAlreadyExists = errors.New("already exists")

// Error codes attached to oops errors returned by this package.
const (
	CodeInvalidRequest       = "AUTH_INVALID_REQUEST"
	CodeInvalidCredentials   = "AUTH_INVALID_CREDENTIALS"
	CodeIncorrectCredentials = "AUTH_INCORRECT_CREDENTIALS"
	CodeUserAlreadyExists    = "AUTH_USER_ALREADY_EXISTS"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeSessionExpired       = "SESSION_EXPIRED"
)

// Kind is the client-facing classification of an authentication failure.
type Kind string

// Failure kinds. The string values are part of the HTTP contract.
const (
	KindInvalidRequest       Kind = "InvalidRequest"
	KindInvalidCredentials   Kind = "InvalidCredentials"
	KindIncorrectCredentials Kind = "IncorrectCredentials"
	KindUserAlreadyExists    Kind = "UserAlreadyExists"
	KindSessionNotFound      Kind = "SessionNotFound"
	KindSessionExpired       Kind = "SessionExpired"
	KindInternal             Kind = "InternalServerError"
)

var kindByCode = map[string]Kind{
	CodeInvalidRequest:       KindInvalidRequest,
	CodeInvalidCredentials:   KindInvalidCredentials,
	CodeIncorrectCredentials: KindIncorrectCredentials,
	CodeUserAlreadyExists:    KindUserAlreadyExists,
	CodeSessionNotFound:      KindSessionNotFound,
	CodeSessionExpired:       KindSessionExpired,
}

// KindOf classifies err. Anything without a recognised code, storage and
// hashing failures included, is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if kind, ok := kindByCode[errutil.Code(err)]; ok {
		return kind
	}
	return KindInternal
}
