// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

// Package web serves the JSON authentication API: registration, login,
// logout and session lookup.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noriauth/nori/internal/auth"
	"github.com/noriauth/nori/internal/observability"
	"github.com/noriauth/nori/pkg/errutil"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

const tracerName = "github.com/noriauth/nori/internal/web"

// Credentials registers and authenticates users.
type Credentials interface {
	Register(ctx context.Context, username, password string) (ulid.ULID, error)
	Authenticate(ctx context.Context, username, password string) (ulid.ULID, error)
}

// Sessions issues, resolves and revokes sessions.
type Sessions interface {
	CreateSession(ctx context.Context, userID ulid.ULID, remember bool) (*auth.Session, error)
	Cookie(session *auth.Session) *http.Cookie
	ClearCookie() *http.Cookie
	CookieName() string
	ResolveSession(ctx context.Context, sessionID string) (ulid.ULID, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics records request and authentication metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMaxBodyBytes bounds the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) { h.maxBody = n }
}

// WithTracerProvider sets where request spans go. The global provider is
// used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) { h.tracer = tp.Tracer(tracerName) }
}

// Handler serves the authentication API.
type Handler struct {
	creds    Credentials
	sessions Sessions
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	maxBody  int64
}

// NewHandler creates a Handler.
func NewHandler(creds Credentials, sessions Sessions, opts ...Option) (*Handler, error) {
	if creds == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("credential store is required")
	}
	if sessions == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("session manager is required")
	}
	h := &Handler{
		creds:    creds,
		sessions: sessions,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		maxBody:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("logger cannot be nil")
	}
	if h.maxBody <= 0 {
		return nil, oops.Code("WEB_INVALID_CONFIG").With("max_body_bytes", h.maxBody).Errorf("body limit must be positive")
	}
	return h, nil
}

// Routes returns the API's request multiplexer.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	for _, prefix := range []string{"", "/api"} {
		h.handle(mux, "POST "+prefix+"/register", h.handleRegister)
		h.handle(mux, "POST "+prefix+"/login", h.handleLogin)
		h.handle(mux, "POST "+prefix+"/logout", h.handleLogout)
	}
	h.handle(mux, "GET /api/session", h.handleSession)
	return mux
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, h.instrument(pattern, fn))
}

type sessionIssued struct {
	SessionID string `json:"session_id"`
}

type sessionInfo struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	h.credentialsFlow(w, r, "register", http.StatusCreated, h.creds.Register)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	h.credentialsFlow(w, r, "login", http.StatusOK, h.creds.Authenticate)
}

// credentialsFlow decodes credentials, runs check and, on success, issues a
// session bound to a cookie.
func (h *Handler) credentialsFlow(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	successStatus int,
	check func(ctx context.Context, username, password string) (ulid.ULID, error),
) {
	ctx := r.Context()

	req, err := decodeCredentials(w, r, h.maxBody)
	if err != nil {
		h.metrics.RecordAuthAttempt(operation, string(auth.KindInvalidRequest))
		h.fail(ctx, w, operation, err)
		return
	}

	userID, err := check(ctx, req.Username, req.Password)
	if err != nil {
		h.metrics.RecordAuthAttempt(operation, string(auth.KindOf(err)))
		h.fail(ctx, w, operation, err)
		return
	}
	h.metrics.RecordAuthAttempt(operation, "ok")
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("nori.user_id", userID.String()))

	session, err := h.sessions.CreateSession(ctx, userID, req.RememberMe())
	if err != nil {
		h.fail(ctx, w, operation, err)
		return
	}
	h.metrics.RecordSessionIssued(session.IsLongLived())

	http.SetCookie(w, h.sessions.Cookie(session))
	writeData(w, successStatus, sessionIssued{SessionID: session.ID})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := h.sessionID(r)

	if _, err := h.resolve(ctx, sessionID); err != nil {
		if StatusFor(auth.KindOf(err)) == http.StatusUnauthorized {
			http.SetCookie(w, h.sessions.ClearCookie())
		}
		h.fail(ctx, w, "logout", err)
		return
	}
	if err := h.sessions.RevokeSession(ctx, sessionID); err != nil {
		if StatusFor(auth.KindOf(err)) == http.StatusUnauthorized {
			http.SetCookie(w, h.sessions.ClearCookie())
		}
		h.fail(ctx, w, "logout", err)
		return
	}

	http.SetCookie(w, h.sessions.ClearCookie())
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := h.sessionID(r)

	userID, err := h.resolve(ctx, sessionID)
	if err != nil {
		h.fail(ctx, w, "session", err)
		return
	}
	writeData(w, http.StatusOK, sessionInfo{UserID: userID.String(), SessionID: sessionID})
}

func (h *Handler) resolve(ctx context.Context, sessionID string) (ulid.ULID, error) {
	userID, err := h.sessions.ResolveSession(ctx, sessionID)
	if err != nil {
		h.metrics.RecordSessionResolution(string(auth.KindOf(err)))
		return ulid.ULID{}, err
	}
	h.metrics.RecordSessionResolution("ok")
	return userID, nil
}

// sessionID reads the session cookie, falling back to a bearer token.
func (h *Handler) sessionID(r *http.Request) string {
	if c, err := r.Cookie(h.sessions.CookieName()); err == nil && c.Value != "" {
		return c.Value
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// fail writes the error envelope for err. Internal failures are logged in
// full; their details never reach the client.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	kind := auth.KindOf(err)
	if kind == auth.KindInternal {
		trace.SpanFromContext(ctx).RecordError(err)
		errutil.LogError(ctx, h.logger, operation+" failed", err)
	} else {
		h.logger.DebugContext(ctx, operation+" rejected", "kind", string(kind), "error", err)
	}
	writeKind(w, kind)
}
