// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

// Package config loads nori's configuration from defaults, an optional YAML
// file, NORI_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"net"
	"time"

	"github.com/samber/oops"

	"github.com/noriauth/nori/internal/auth"
)

// Config is the complete server configuration.
type Config struct {
	HTTP     HTTPConfig     `json:"http,omitempty" koanf:"http"`
	Database DatabaseConfig `json:"database,omitempty" koanf:"database"`
	Session  SessionConfig  `json:"session,omitempty" koanf:"session"`
	Password PasswordConfig `json:"password,omitempty" koanf:"password"`
	Log      LogConfig      `json:"log,omitempty" koanf:"log"`
	Metrics  MetricsConfig  `json:"metrics,omitempty" koanf:"metrics"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr              string        `json:"addr,omitempty" koanf:"addr" jsonschema:"description=API listen address"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout,omitempty" koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout,omitempty" koanf:"shutdown_timeout"`
	MaxBodyBytes      int64         `json:"max_body_bytes,omitempty" koanf:"max_body_bytes" jsonschema:"minimum=64"`
	// TLSCertFile and TLSKeyFile enable HTTPS when both are set. Session
	// cookies are Secure, so browsers only return them over HTTPS.
	TLSCertFile string `json:"tls_cert_file,omitempty" koanf:"tls_cert_file" jsonschema:"description=PEM certificate chain for HTTPS"`
	TLSKeyFile  string `json:"tls_key_file,omitempty" koanf:"tls_key_file" jsonschema:"description=PEM private key for HTTPS"`
}

// TLSEnabled reports whether the API listener serves HTTPS.
func (c HTTPConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL             string        `json:"url,omitempty" koanf:"url" jsonschema:"description=postgres:// connection URL"`
	MaxConns        int32         `json:"max_conns,omitempty" koanf:"max_conns" jsonschema:"minimum=0"`
	ConnectAttempts uint64        `json:"connect_attempts,omitempty" koanf:"connect_attempts" jsonschema:"minimum=1"`
	ConnectBackoff  time.Duration `json:"connect_backoff,omitempty" koanf:"connect_backoff"`
	AutoMigrate     bool          `json:"auto_migrate,omitempty" koanf:"auto_migrate" jsonschema:"description=apply pending migrations when serve starts"`
}

// SessionConfig configures issued sessions.
type SessionConfig struct {
	ShortTTL   time.Duration `json:"short_ttl,omitempty" koanf:"short_ttl" jsonschema:"description=lifetime of sessions created without remember"`
	CookieName string        `json:"cookie_name,omitempty" koanf:"cookie_name" jsonschema:"pattern=^[!#$%&'*+.^_|~0-9A-Za-z-]+$"`
}

// PasswordConfig holds the argon2id cost parameters for new hashes.
type PasswordConfig struct {
	MemoryKiB   uint32 `json:"memory_kib,omitempty" koanf:"memory_kib" jsonschema:"minimum=1024"`
	Iterations  uint32 `json:"iterations,omitempty" koanf:"iterations" jsonschema:"minimum=1"`
	Parallelism uint8  `json:"parallelism,omitempty" koanf:"parallelism" jsonschema:"minimum=1"`
	SaltLength  uint32 `json:"salt_length,omitempty" koanf:"salt_length" jsonschema:"minimum=8"`
	KeyLength   uint32 `json:"key_length,omitempty" koanf:"key_length" jsonschema:"minimum=16"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `json:"format,omitempty" koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `json:"level,omitempty" koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" koanf:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	argon := auth.DefaultArgon2Params()
	return Config{
		HTTP: HTTPConfig{
			Addr:              "127.0.0.1:8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		Database: DatabaseConfig{
			ConnectAttempts: 5,
			ConnectBackoff:  500 * time.Millisecond,
		},
		Session: SessionConfig{
			ShortTTL:   auth.DefaultShortTTL,
			CookieName: auth.DefaultCookieName,
		},
		Password: PasswordConfig{
			MemoryKiB:   argon.MemoryKiB,
			Iterations:  argon.Iterations,
			Parallelism: argon.Parallelism,
			SaltLength:  argon.SaltLength,
			KeyLength:   argon.KeyLength,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// Validate reports the first invalid setting. The database URL is not
// checked here because only some commands need it; see RequireDatabase.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
		return invalid("http.addr", c.HTTP.Addr, "must be host:port")
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		return invalid("http.read_header_timeout", c.HTTP.ReadHeaderTimeout, "must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return invalid("http.shutdown_timeout", c.HTTP.ShutdownTimeout, "must be positive")
	}
	if c.HTTP.MaxBodyBytes < 64 {
		return invalid("http.max_body_bytes", c.HTTP.MaxBodyBytes, "must be at least 64")
	}
	if (c.HTTP.TLSCertFile == "") != (c.HTTP.TLSKeyFile == "") {
		return invalid("http.tls_cert_file", c.HTTP.TLSCertFile, "must be set together with http.tls_key_file")
	}
	if c.Database.MaxConns < 0 {
		return invalid("database.max_conns", c.Database.MaxConns, "cannot be negative")
	}
	if c.Database.ConnectAttempts == 0 {
		return invalid("database.connect_attempts", c.Database.ConnectAttempts, "must be at least 1")
	}
	if c.Database.ConnectBackoff <= 0 {
		return invalid("database.connect_backoff", c.Database.ConnectBackoff, "must be positive")
	}
	if err := c.SessionConfig().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("section", "session").Errorf("session: %v", err)
	}
	if err := c.Argon2Params().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("section", "password").Errorf("password: %v", err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", c.Log.Format, "must be json or text")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return invalid("metrics.addr", c.Metrics.Addr, "must be host:port or empty")
		}
	}
	return nil
}

// RequireDatabase fails when no database URL is configured.
func (c Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "", "is required (set NORI_DATABASE_URL or database.url)")
	}
	return nil
}

// SessionConfig converts the session section for auth.NewSessionManager.
func (c Config) SessionConfig() auth.SessionConfig {
	return auth.SessionConfig{
		ShortTTL:   c.Session.ShortTTL,
		CookieName: c.Session.CookieName,
	}
}

// Argon2Params converts the password section for the hasher.
func (c Config) Argon2Params() auth.Argon2Params {
	return auth.Argon2Params{
		MemoryKiB:   c.Password.MemoryKiB,
		Iterations:  c.Password.Iterations,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

func invalid(key string, value any, reason string) error {
	return oops.Code("CONFIG_INVALID").
		With("key", key).
		With("value", value).
		Errorf("%s %s", key, reason)
}
