package store

import (
	"database/sql"
	"fmt"
)

// Open returns the Store for driver. db is used by DriverPostgres only and
// must already be reachable and migrated.
func Open(driver, boltPath string, db *sql.DB) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverBolt:
		s, err := NewBolt(boltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPostgres(db)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
