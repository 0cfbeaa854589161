package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PortNumber53/trialgate/internal/models"
)

var (
	// ErrUnavailable wraps every failure of the underlying storage engine.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNoChange may be returned by an UpdateFunc to skip the write.
	ErrNoChange = errors.New("store: no change")
)

// UpdateFunc receives the current record (nil when absent) and returns the
// record to persist.
type UpdateFunc func(current *models.Record) (models.Record, error)

// Store maps an identity to its entitlement record. Identities are expected
// to be normalized by the caller.
type Store interface {
	// Get returns nil, nil when no record exists for identity.
	Get(ctx context.Context, identity string) (*models.Record, error)
	Put(ctx context.Context, identity string, record models.Record) error
	// Update performs an atomic read-modify-write for a single identity and
	// returns the record that is stored afterwards.
	Update(ctx context.Context, identity string, fn UpdateFunc) (models.Record, error)
	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

func unavailable(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %v", op, ErrUnavailable, err)
}

func encodeRecord(record models.Record) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("store: encode record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*models.Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var record models.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("store: decode record: %w", err)
	}
	return &record, nil
}

// apply runs fn against the decoded value of raw. It reports write=false when
// fn asked to skip the write; result is then the current record.
func apply(raw []byte, fn UpdateFunc) (result models.Record, encoded []byte, write bool, err error) {
	current, err := decodeRecord(raw)
	if err != nil {
		return models.Record{}, nil, false, err
	}

	var arg *models.Record
	if current != nil {
		c := current.Clone()
		arg = &c
	}

	next, err := fn(arg)
	if errors.Is(err, ErrNoChange) {
		if current == nil {
			return models.Record{}, nil, false, nil
		}
		return *current, nil, false, nil
	}
	if err != nil {
		return models.Record{}, nil, false, err
	}

	encoded, err = encodeRecord(next)
	if err != nil {
		return models.Record{}, nil, false, err
	}
	return next, encoded, true, nil
}
