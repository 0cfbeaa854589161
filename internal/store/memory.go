package store

import (
	"context"
	"sync"

	"github.com/PortNumber53/trialgate/internal/models"
)

// MemoryStore keeps serialized records in process memory. Values are stored
// encoded so readers never alias a stored record.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, identity string) (*models.Record, error) {
	m.mu.Lock()
	raw := m.records[identity]
	m.mu.Unlock()
	return decodeRecord(raw)
}

func (m *MemoryStore) Put(ctx context.Context, identity string, record models.Record) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.records[identity] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, identity string, fn UpdateFunc) (models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, encoded, write, err := apply(m.records[identity], fn)
	if err != nil {
		return models.Record{}, err
	}
	if write {
		m.records[identity] = encoded
	}
	return result, nil
}

// Len reports the number of stored identities.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryStore) Close() error {
	return nil
}
