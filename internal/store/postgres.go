package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/PortNumber53/trialgate/internal/models"
)

const entitlementsTable = "entitlements"

// PostgresStore provides database-backed accessors for entitlement records.
// The table is created by the embedded migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a PostgresStore using the provided sql.DB connection.
func NewPostgres(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	return &PostgresStore{db: db}, nil
}

// A NULL record column marks a row claimed by Update that was never written.
func (s *PostgresStore) Get(ctx context.Context, identity string) (*models.Record, error) {
	var raw []byte
	err := s.db.QueryRowContext(
		ctx,
		`SELECT record FROM entitlements WHERE identity = $1`,
		identity,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("select "+entitlementsTable, err)
	}
	return decodeRecord(raw)
}

func (s *PostgresStore) Put(ctx context.Context, identity string, record models.Record) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO entitlements (identity, record, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (identity) DO UPDATE
		 SET record = EXCLUDED.record,
		     updated_at = now()`,
		identity,
		string(data),
	); err != nil {
		return unavailable("upsert "+entitlementsTable, err)
	}
	return nil
}

// Update claims the identity's row (inserting an empty placeholder when it
// does not exist yet) and holds the row lock for the whole read-modify-write.
func (s *PostgresStore) Update(ctx context.Context, identity string, fn UpdateFunc) (models.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Record{}, unavailable("begin update tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO entitlements (identity, record) VALUES ($1, NULL)
		 ON CONFLICT (identity) DO NOTHING`,
		identity,
	); err != nil {
		return models.Record{}, unavailable("claim "+entitlementsTable, err)
	}

	var raw []byte
	if err := tx.QueryRowContext(
		ctx,
		`SELECT record FROM entitlements WHERE identity = $1 FOR UPDATE`,
		identity,
	).Scan(&raw); err != nil {
		return models.Record{}, unavailable("lock "+entitlementsTable, err)
	}

	result, encoded, write, err := apply(raw, fn)
	if err != nil {
		return models.Record{}, err
	}
	if !write {
		// Rollback drops the placeholder row, if any.
		return result, nil
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE entitlements SET record = $2, updated_at = now() WHERE identity = $1`,
		identity,
		string(encoded),
	); err != nil {
		return models.Record{}, unavailable("update "+entitlementsTable, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Record{}, unavailable("commit update tx", err)
	}
	return result, nil
}

// Close is a no-op; the *sql.DB is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}
