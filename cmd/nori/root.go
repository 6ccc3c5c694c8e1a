// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/noriauth/nori/internal/config"
	"github.com/noriauth/nori/internal/logging"
	"github.com/noriauth/nori/internal/xdg"
)

const serviceName = "nori"

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

// NewRootCmd creates the root command for the nori CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "nori",
		Short: "nori - credential store and session server",
		Long: `nori registers users, verifies their passwords and issues
server-side sessions bound to a cookie.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/nori/config.yaml if present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd(opts, deps))
	cmd.AddCommand(NewMigrateCmd(opts, deps))
	cmd.AddCommand(NewSessionsCmd(opts, deps))

	return cmd
}

// setup loads the configuration for cmd and installs the process logger.
// Without --config, $XDG_CONFIG_HOME/nori/config.yaml is used if present.
func (o *rootOptions) setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path := o.configFile
	if path == "" {
		found, err := xdg.DefaultConfigFile()
		if err != nil {
			return config.Config{}, nil, err
		}
		path = found
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	}, cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
