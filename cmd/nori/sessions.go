// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/noriauth/nori/internal/auth"
	"github.com/noriauth/nori/internal/auth/postgres"
)

// NewSessionsCmd creates the sessions subcommand.
func NewSessionsCmd(root *rootOptions, deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain stored sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete sessions whose expiry has passed",
		Long: `Delete every session row whose expiry is at or before now.
Long-lived sessions have no expiry and are never purged. Expired sessions
are already rejected on lookup, so purging only reclaims storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			pool, err := deps.withDefaults().PoolFactory(cmd.Context(), poolConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			manager, err := auth.NewSessionManager(postgres.NewSessionRepository(pool), cfg.SessionConfig(),
				auth.WithSessionLogger(logger))
			if err != nil {
				return err
			}

			n, err := manager.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Purged %d expired session(s)\n", n)
			return nil
		},
	})

	return cmd
}
