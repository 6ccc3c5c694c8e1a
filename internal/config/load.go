// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package config

import (
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable Load reads.
// NORI_DATABASE_MAX_CONNS sets database.max_conns.
const EnvPrefix = "NORI_"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"listen":        "http.addr",
	"database-url":  "database.url",
	"auto-migrate":  "database.auto_migrate",
	"session-ttl":   "session.short_ttl",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"metrics-addr":  "metrics.addr",
	"max-body-size": "http.max_body_bytes",
}

// RegisterFlags adds the overridable settings to fs. Their defaults are
// only shown in help; a flag takes effect only when set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("listen", d.HTTP.Addr, "API listen address")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on start")
	fs.Duration("session-ttl", d.Session.ShortTTL, "lifetime of sessions created without remember")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.Int64("max-body-size", d.HTTP.MaxBodyBytes, "maximum request body size in bytes")
}

// Load builds the configuration. path may be empty; flags may be nil.
// The YAML file is checked against the configuration schema before it is
// merged, and the merged result is validated.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		provider := file.Provider(path)
		data, err := provider.ReadBytes()
		if err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateFile(data); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").With("path", path).Errorf("%v", err)
		}
		if err := k.Load(provider, koanfyaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, oops.Code("CONFIG_READ_FAILED").With("source", "environment").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Errorf("decode configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey turns NORI_SECTION_SOME_KEY into section.some_key. Variables with
// no section part are ignored.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return ""
	}
	return section + "." + rest
}
