package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/PortNumber53/trialgate/internal/checkout"
	"github.com/PortNumber53/trialgate/internal/config"
	"github.com/PortNumber53/trialgate/internal/entitlement"
	"github.com/PortNumber53/trialgate/internal/httpserver"
	"github.com/PortNumber53/trialgate/internal/logging"
	"github.com/PortNumber53/trialgate/internal/migrations"
	"github.com/PortNumber53/trialgate/internal/store"
	"github.com/PortNumber53/trialgate/internal/webhook"
)

func main() {
	// Best-effort: load environment variables from .env-style files in local
	// development. These calls are safe to ignore in production environments.
	_ = godotenv.Load(
		"../.env",
		".env",
	)

	logging.Init(logging.Config{Format: "auto", Level: "info", Component: "trialgate"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: "trialgate"})

	deps := httpserver.Deps{
		Interpreter: webhook.NewInterpreter(cfg.WebhookSecret, cfg.WebhookTolerance, time.Now),
		Checkout: checkout.Builder{
			LiveMode:  cfg.LiveMode,
			ProductID: cfg.ProductID,
			ReturnURL: cfg.ReturnURL,
		},
		Logger: logger,
	}
	if cfg.WebhookSecret == "" {
		log.Warn().Msg("DODO_PAYMENTS_WEBHOOK_KEY is not set; webhook deliveries will be rejected")
	}

	if cfg.StoreDriver == "" {
		log.Error().Msg("STORE_DRIVER is not set; serving without a record store")
	} else {
		records, closeStore, err := openStore(cfg)
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open record store")
		}
		defer closeStore()

		svc, err := entitlement.NewService(records, entitlement.Options{
			TrialDuration: cfg.TrialDuration,
			Logger:        logger,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create entitlement service")
		}
		deps.Entitlements = svc
	}

	srv := httpserver.New(cfg, deps)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", cfg.ServerAddress).
		Str("driver", cfg.StoreDriver).
		Bool("live_mode", cfg.LiveMode).
		Dur("trial", cfg.TrialDuration).
		Msg("trialgate starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

// openStore opens the configured backend. The returned func releases it.
func openStore(cfg config.Config) (store.Store, func(), error) {
	var db *sql.DB
	if cfg.StoreDriver == config.DriverPostgres {
		var err error
		db, err = openDatabase(cfg.DatabaseURL)
		if err != nil {
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

	return records, func() {
		if err := records.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close record store")
		}
		if db != nil {
			db.Close()
		}
	}, nil
}

func openDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	logDBTarget("primary", dsn)
	configureDB(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrationsWithDirtyFix(db, "primary"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func configureDB(db *sql.DB) {
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
}

func runMigrationsWithDirtyFix(db *sql.DB, name string) error {
	if err := migrations.Up(db); err != nil {
		log.Warn().Err(err).Str("db", name).Msg("migrations: error detected")
		if strings.Contains(err.Error(), "Dirty database version") {
			log.Warn().Str("db", name).Msg("migrations: dirty database detected, attempting to fix")
			if fixErr := migrations.FixDirtyDatabase(db); fixErr != nil {
				log.Error().Err(fixErr).Str("db", name).Msg("migrations: failed to fix dirty database")
				return err
			}
			return migrations.Up(db)
		}
		return err
	}
	return nil
}

func logDBTarget(name, dsn string) {
	// Avoid logging secrets: only log hostname + database path.
	u, err := url.Parse(dsn)
	if err != nil {
		log.Info().Str("db", name).Msg("database configured (dsn not parseable)")
		return
	}
	log.Info().Str("db", name).Str("host", u.Hostname()).Str("database", strings.TrimPrefix(u.Path, "/")).Msg("database configured")
}
