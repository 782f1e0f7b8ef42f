package store

import (
	"context"
	"sync"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

// MemoryStore keeps the snapshot as encoded JSON in memory. It is used by tests
// and by the "memory" backend; QuotaFaults lets tests simulate a full store.
type MemoryStore struct {
	mu        sync.Mutex
	data      []byte
	saves     int
	evictions int
	faults    int
	saveErr   error
	logger    *logger.Logger
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	if log == nil {
		log = logger.Nop()
	}
	return &MemoryStore{logger: log}
}

// Load returns the stored snapshot or defaults
func (m *MemoryStore) Load(ctx context.Context) (models.ProgressionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DecodeSnapshot(m.data)
}

// Save stores the snapshot, evicting and retrying once on a quota error
func (m *MemoryStore) Save(ctx context.Context, snapshot models.ProgressionSnapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return saveWithEviction(ctx, m.logger, "memory",
		func(context.Context) error { return m.write(data) },
		func(err error) bool { return err == ErrQuotaExceeded },
		func(context.Context) error { m.evictions++; return nil },
	)
}

func (m *MemoryStore) write(data []byte) error {
	if m.faults > 0 {
		m.faults--
		return ErrQuotaExceeded
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = data
	m.saves++
	return nil
}

// QuotaFaults makes the next n writes fail with ErrQuotaExceeded
func (m *MemoryStore) QuotaFaults(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = n
}

// FailWith makes every write fail with err; nil clears it
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves returns how many writes succeeded
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Evictions returns how many times the cache was evicted
func (m *MemoryStore) Evictions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictions
}

// Raw returns the stored JSON
func (m *MemoryStore) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Seed stores raw JSON as if written by an earlier version
func (m *MemoryStore) Seed(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}
