package main

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/PortNumber53/trialgate/internal/config"
	"github.com/PortNumber53/trialgate/internal/entitlement"
	"github.com/PortNumber53/trialgate/internal/models"
	"github.com/PortNumber53/trialgate/internal/store"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspect and repair entitlement records in the configured store",
}

type recordOutput struct {
	Identity string                `json:"identity"`
	Record   *models.Record        `json:"record"`
	Access   models.AccessResponse `json:"access"`
	Created  *bool                 `json:"created,omitempty"`
}

var recordGetCmd = &cobra.Command{
	Use:   "get <email>",
	Short: "Print the stored record and the current access decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService()
		if err != nil {
			return err
		}
		defer closeFn()

		rec, err := svc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		var current models.Record
		if rec != nil {
			current = *rec
		}

		return printJSON(cmd, recordOutput{
			Identity: models.NormalizeIdentity(args[0]),
			Record:   rec,
			Access:   models.NewAccessResponse(svc.Evaluate(current)),
		})
	},
}

var recordGrantTrialCmd = &cobra.Command{
	Use:   "grant-trial <email>",
	Short: "Start the trial for an identity that never had one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService()
		if err != nil {
			return err
		}
		defer closeFn()

		rec, created, err := svc.EnsureTrial(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		log.Info().Str("email", args[0]).Bool("created", created).Msg("trial grant")

		return printJSON(cmd, recordOutput{
			Identity: models.NormalizeIdentity(args[0]),
			Record:   &rec,
			Access:   models.NewAccessResponse(svc.Evaluate(rec)),
			Created:  &created,
		})
	},
}

func init() {
	recordCmd.AddCommand(recordGetCmd, recordGrantTrialCmd)
}

func openService() (*entitlement.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreDriver == "" {
		return nil, nil, errors.New("STORE_DRIVER is required")
	}
	if cfg.StoreDriver == config.DriverMemory {
		return nil, nil, errors.New("the memory store does not outlive the server process")
	}

	var db *sql.DB
	if cfg.StoreDriver == config.DriverPostgres {
		if db, err = openDatabase(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
	}

	records, err := store.Open(cfg.StoreDriver, cfg.BoltPath, db)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}

	svc, err := entitlement.NewService(records, entitlement.Options{
		TrialDuration: cfg.TrialDuration,
		Logger:        log.Logger,
	})
	if err != nil {
		records.Close()
		return nil, nil, err
	}

	return svc, func() {
		records.Close()
		if db != nil {
			db.Close()
		}
	}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
