// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noriauth/nori/internal/auth"
	"github.com/noriauth/nori/internal/config"
	"github.com/noriauth/nori/pkg/errutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nori.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, auth.DefaultShortTTL, cfg.Session.ShortTTL)
	assert.Equal(t, "session", cfg.Session.CookieName)
	assert.Equal(t, auth.DefaultArgon2Params(), cfg.Argon2Params())
	assert.Equal(t, auth.DefaultSessionConfig(), cfg.SessionConfig())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{"bad http addr", func(c *config.Config) { c.HTTP.Addr = "8080" }, "http.addr"},
		{"zero header timeout", func(c *config.Config) { c.HTTP.ReadHeaderTimeout = 0 }, "http.read_header_timeout"},
		{"zero shutdown timeout", func(c *config.Config) { c.HTTP.ShutdownTimeout = 0 }, "http.shutdown_timeout"},
		{"tiny body", func(c *config.Config) { c.HTTP.MaxBodyBytes = 10 }, "http.max_body_bytes"},
		{"cert without key", func(c *config.Config) { c.HTTP.TLSCertFile = "/etc/nori/tls.crt" }, "http.tls_cert_file"},
		{"key without cert", func(c *config.Config) { c.HTTP.TLSKeyFile = "/etc/nori/tls.key" }, "http.tls_cert_file"},
		{"negative conns", func(c *config.Config) { c.Database.MaxConns = -1 }, "database.max_conns"},
		{"no attempts", func(c *config.Config) { c.Database.ConnectAttempts = 0 }, "database.connect_attempts"},
		{"zero backoff", func(c *config.Config) { c.Database.ConnectBackoff = 0 }, "database.connect_backoff"},
		{"bad format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad metrics addr", func(c *config.Config) { c.Metrics.Addr = "nope" }, "metrics.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}

	t.Run("session section", func(t *testing.T) {
		cfg := config.Default()
		cfg.Session.ShortTTL = 0
		err := cfg.Validate()
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		errutil.AssertErrorContext(t, err, "section", "session")
	})

	t.Run("sub-microsecond session ttl", func(t *testing.T) {
		cfg := config.Default()
		cfg.Session.ShortTTL = 500 * time.Nanosecond
		err := cfg.Validate()
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		errutil.AssertErrorContext(t, err, "section", "session")
	})

	t.Run("password section", func(t *testing.T) {
		cfg := config.Default()
		cfg.Password.Parallelism = 0
		err := cfg.Validate()
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		errutil.AssertErrorContext(t, err, "section", "password")
	})

	t.Run("tls with both files", func(t *testing.T) {
		cfg := config.Default()
		cfg.HTTP.TLSCertFile = "/etc/nori/tls.crt"
		cfg.HTTP.TLSKeyFile = "/etc/nori/tls.key"
		require.NoError(t, cfg.Validate())
		assert.True(t, cfg.HTTP.TLSEnabled())
		assert.False(t, config.Default().HTTP.TLSEnabled())
	})

	t.Run("metrics may be disabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.Metrics.Addr = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_RequireDatabase(t *testing.T) {
	cfg := config.Default()
	errutil.AssertErrorCode(t, cfg.RequireDatabase(), "CONFIG_INVALID")

	cfg.Database.URL = "postgres://localhost/nori"
	assert.NoError(t, cfg.RequireDatabase())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: 0.0.0.0:9000
  max_body_bytes: 4096
  tls_cert_file: /etc/nori/tls.crt
  tls_key_file: /etc/nori/tls.key
database:
  url: postgres://nori@db/nori
  auto_migrate: true
session:
  short_ttl: 15m
password:
  memory_kib: 19456
  iterations: 2
  parallelism: 1
log:
  level: debug
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTP.Addr)
	assert.Equal(t, int64(4096), cfg.HTTP.MaxBodyBytes)
	assert.True(t, cfg.HTTP.TLSEnabled())
	assert.Equal(t, "postgres://nori@db/nori", cfg.Database.URL)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 15*time.Minute, cfg.Session.ShortTTL)
	assert.Equal(t, uint32(19456), cfg.Password.MemoryKiB)
	assert.Equal(t, uint8(1), cfg.Password.Parallelism)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "session", cfg.Session.CookieName)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadHeaderTimeout)
}

func TestLoad_FileRejectedBySchema(t *testing.T) {
	tests := map[string]string{
		"unknown section": "cache:\n  size: 10\n",
		"unknown key":     "http:\n  port: 80\n",
		"bad duration":    "session:\n  short_ttl: ten seconds\n",
		"bad enum":        "log:\n  format: xml\n",
		"wrong type":      "database:\n  auto_migrate: [1]\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, body), nil)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "database:\n  url: postgres://file/nori\n  max_conns: 4\n")
	t.Setenv("NORI_DATABASE_URL", "postgres://env/nori")
	t.Setenv("NORI_SESSION_SHORT_TTL", "30s")
	t.Setenv("NORI_LOG_FORMAT", "text")

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/nori", cfg.Database.URL)
	assert.Equal(t, int32(4), cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Session.ShortTTL)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("NORI_HTTP_ADDR", "127.0.0.1:7000")
	t.Setenv("NORI_LOG_LEVEL", "warn")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--listen", "127.0.0.1:7001", "--session-ttl", "2m", "--auto-migrate"}))

	cfg, err := config.Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7001", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Session.ShortTTL)
	assert.True(t, cfg.Database.AutoMigrate)
	// Unset flags do not mask lower layers.
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_InvalidMergedResult(t *testing.T) {
	t.Setenv("NORI_LOG_LEVEL", "loud")
	_, err := config.Load("", nil)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestGenerateSchema(t *testing.T) {
	raw, err := config.GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, config.SchemaID, doc["$id"])

	props := doc["properties"].(map[string]any)
	for _, section := range []string{"http", "database", "session", "password", "log", "metrics"} {
		assert.Contains(t, props, section)
	}
}

func TestValidateFile(t *testing.T) {
	assert.NoError(t, config.ValidateFile(nil))
	assert.NoError(t, config.ValidateFile([]byte("metrics:\n  addr: \"\"\n")))
	assert.Error(t, config.ValidateFile([]byte("metrics: 5\n")))
}
