package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/PortNumber53/trialgate/internal/models"
)

const entitlementsBucket = "entitlements"

// BoltStore persists records in a single BoltDB file, one JSON value per
// identity key in the entitlements bucket.
type BoltStore struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the database at path and ensures the bucket
// exists.
func NewBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("store: bolt path cannot be empty")
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, unavailable("open bolt", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(entitlementsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, unavailable("create bucket", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, identity string) (*models.Record, error) {
	var record *models.Record
	var decodeErr error

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(entitlementsBucket))
		// Values are only valid for the life of the transaction.
		record, decodeErr = decodeRecord(b.Get([]byte(identity)))
		return nil
	})
	if err != nil {
		return nil, unavailable("get", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return record, nil
}

func (s *BoltStore) Put(ctx context.Context, identity string, record models.Record) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entitlementsBucket)).Put([]byte(identity), data)
	})
	if err != nil {
		return unavailable("put", err)
	}
	return nil
}

func (s *BoltStore) Update(ctx context.Context, identity string, fn UpdateFunc) (models.Record, error) {
	var (
		result   models.Record
		applyErr error
	)

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(entitlementsBucket))

		next, encoded, write, err := apply(b.Get([]byte(identity)), fn)
		if err != nil {
			applyErr = err
			return err
		}
		result = next
		if !write {
			return nil
		}
		return b.Put([]byte(identity), encoded)
	})
	if applyErr != nil {
		return models.Record{}, applyErr
	}
	if err != nil {
		return models.Record{}, unavailable("update", err)
	}
	return result, nil
}

func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close bolt: %w", err)
	}
	return nil
}
