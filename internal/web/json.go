// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/samber/oops"

	"github.com/noriauth/nori/internal/auth"
	"github.com/noriauth/nori/internal/schema"
)

// envelope is the body of every API response. Exactly one of Data and
// Error is set.
type envelope struct {
	Status int       `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  auth.Kind `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client may be gone
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Status: status, Data: data})
}

func writeKind(w http.ResponseWriter, kind auth.Kind) {
	status := StatusFor(kind)
	writeJSON(w, status, envelope{Status: status, Error: kind})
}

// StatusFor maps a failure kind to its HTTP status.
func StatusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindInvalidRequest:
		return http.StatusBadRequest
	case auth.KindInvalidCredentials,
		auth.KindIncorrectCredentials,
		auth.KindSessionNotFound,
		auth.KindSessionExpired:
		return http.StatusUnauthorized
	case auth.KindUserAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CredentialsRequest is the body of the register and login endpoints.
type CredentialsRequest struct {
	Username string `json:"username" jsonschema:"required,minLength=1,maxLength=64"`
	Password string `json:"password" jsonschema:"required,minLength=1,maxLength=1024"`
	// Remember asks for a long-lived session.
	Remember *bool `json:"remember,omitempty"`
}

// RememberMe reports whether a long-lived session was requested.
func (r CredentialsRequest) RememberMe() bool {
	return r.Remember != nil && *r.Remember
}

// CredentialsSchemaID is the $id of the CredentialsRequest schema.
const CredentialsSchemaID = "https://nori.dev/schemas/credentials-request.schema.json"

var credentialsSchema = schema.Document{
	ID:          CredentialsSchemaID,
	Title:       "nori credentials request",
	Description: "Body of the register and login endpoints",
	Type:        &CredentialsRequest{},
}

var credentialsValidator = schema.NewValidator(credentialsSchema)

// CredentialsSchema returns the JSON Schema for CredentialsRequest.
func CredentialsSchema() ([]byte, error) {
	return schema.Generate(credentialsSchema)
}

func invalidRequest(format string, args ...any) error {
	return oops.Code(auth.CodeInvalidRequest).Errorf(format, args...)
}

// decodeCredentials reads at most maxBytes of JSON from the request and
// checks it against the CredentialsRequest schema.
func decodeCredentials(w http.ResponseWriter, r *http.Request, maxBytes int64) (CredentialsRequest, error) {
	var req CredentialsRequest

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return req, invalidRequest("content type %q is not application/json", ct)
		}
	}
	if r.Body == nil {
		return req, invalidRequest("empty body")
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, invalidRequest("body exceeds %d bytes", tooLarge.Limit)
		}
		return req, invalidRequest("read body: %v", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return req, invalidRequest("empty body")
	}

	if err := credentialsValidator.ValidateJSON(raw); err != nil {
		return req, invalidRequest("%v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, invalidRequest("decode body: %v", err)
	}
	return req, nil
}
