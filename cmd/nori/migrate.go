// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package main

import (
	"log/slog"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/noriauth/nori/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd(root *rootOptions, deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			return applyMigrations(cmd, deps.withDefaults(), cfg.Database.URL, logger)
		},
	})

	var confirmed bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all users and sessions)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return oops.Code("MIGRATION_CONFIRMATION_REQUIRED").
					Errorf("migrate down deletes every user and session; pass --yes to continue")
			}
			cfg, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			return withMigrator(deps.withDefaults(), cfg.Database.URL, logger, func(m SchemaMigrator) error {
				cmd.Println("Rolling back all migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirmed, "yes", false, "confirm dropping all auth data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			return withMigrator(deps.withDefaults(), cfg.Database.URL, logger, func(m SchemaMigrator) error {
				return printVersion(cmd, m)
			})
		},
	})

	return cmd
}

// applyMigrations runs every pending migration, printing each one first.
func applyMigrations(cmd *cobra.Command, deps *Deps, databaseURL string, logger *slog.Logger) error {
	return withMigrator(deps, databaseURL, logger, func(m SchemaMigrator) error {
		pending, err := m.Pending()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			cmd.Println("Schema is up to date")
			return nil
		}

		for _, v := range pending {
			cmd.Printf("Applying %s\n", migrationLabel(v))
		}
		if err := m.Up(); err != nil {
			return err
		}
		logger.Info("migrations applied", "count", len(pending), "version", pending[len(pending)-1])
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

func printVersion(cmd *cobra.Command, m SchemaMigrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	pending, err := m.Pending()
	if err != nil {
		return err
	}

	if version == 0 {
		cmd.Println("Schema version: none")
	} else {
		cmd.Printf("Schema version: %s\n", migrationLabel(version))
	}
	if dirty {
		cmd.Println("WARNING: the last migration failed partway; fix the schema by hand before migrating again")
	}
	cmd.Printf("Pending migrations: %d\n", len(pending))
	for _, v := range pending {
		cmd.Printf("  %s\n", migrationLabel(v))
	}
	return nil
}

func withMigrator(deps *Deps, databaseURL string, logger *slog.Logger, fn func(SchemaMigrator) error) error {
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("failed to close migrator", "error", err)
		}
	}()
	return fn(m)
}

// migrationLabel names an embedded migration, falling back to the bare
// version for migrations this binary does not ship.
func migrationLabel(version uint) string {
	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		return strconv.FormatUint(uint64(version), 10)
	}
	return name
}
