package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/PortNumber53/trialgate/internal/config"
	"github.com/PortNumber53/trialgate/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "dbtool",
	Short: "Operational tooling for the trial gate",
	Long:  `Manage the entitlement schema, inspect records and sign test webhooks.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load environment variables
		_ = godotenv.Load(
			"../.env",
			"../.dev.vars",
			".env",
		)
		logging.Init(logging.Config{
			Format:    os.Getenv("LOG_FORMAT"),
			Level:     os.Getenv("LOG_LEVEL"),
			Component: "dbtool",
		})
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(webhookCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func databaseFromEnv() (*sql.DB, error) {
	dsn, err := config.LoadDatabaseURL()
	if err != nil {
		return nil, err
	}
	return openDatabase(dsn)
}
