package main

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/PortNumber53/trialgate/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the postgres entitlement schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := databaseFromEnv()
		if err != nil {
			return err
		}
		defer db.Close()

		log.Info().Msg("applying migrations")
		if err := migrations.Up(db); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		log.Info().Msg("migrations applied successfully")
		return nil
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force the recorded schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}

		db, err := databaseFromEnv()
		if err != nil {
			return err
		}
		defer db.Close()

		log.Info().Uint64("version", v).Msg("forcing database version")
		if err := migrations.ForceVersion(db, uint(v)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
		log.Info().Uint64("version", v).Msg("database version forced")
		return nil
	},
}

var migrateFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Clear a dirty migration state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := databaseFromEnv()
		if err != nil {
			return err
		}
		defer db.Close()

		log.Info().Msg("attempting to fix dirty database")
		if err := migrations.FixDirtyDatabase(db); err != nil {
			return fmt.Errorf("failed to fix dirty database: %w", err)
		}
		log.Info().Msg("database fixed successfully")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := databaseFromEnv()
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := migrations.Status(db)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateForceCmd, migrateFixCmd, migrateStatusCmd)
}
