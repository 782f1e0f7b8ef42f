package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

// Store persists the player's progression snapshot.
// This abstraction allows swapping implementations (memory, file, Redis, Cassandra)
// without changing the rest of the codebase.
type Store interface {
	// Load returns the stored snapshot, or defaults when nothing is stored
	Load(ctx context.Context) (models.ProgressionSnapshot, error)

	// Save replaces the stored snapshot
	Save(ctx context.Context, snapshot models.ProgressionSnapshot) error
}

// ErrQuotaExceeded is returned by backends that ran out of space
var ErrQuotaExceeded = &StoreError{Message: "storage quota exceeded"}

// StoreError represents a storage error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}

// saveWithEviction runs save. When it fails with a quota error it evicts the
// transient cache entry and tries once more; any other error is returned unchanged.
func saveWithEviction(ctx context.Context, log *logger.Logger, backend string,
	save func(context.Context) error, isQuota func(error) bool, evict func(context.Context) error,
) error {
	err := save(ctx)
	if err == nil || !isQuota(err) {
		return err
	}

	log.Warn("Storage quota exceeded, evicting cache", logger.F("backend", backend), logger.F("error", err.Error()))
	if evictErr := evict(ctx); evictErr != nil {
		log.Error("Cache eviction failed", logger.F("backend", backend), logger.F("error", evictErr.Error()))
	}
	return save(ctx)
}

// EncodeSnapshot serializes a snapshot for a byte-oriented backend
func EncodeSnapshot(s models.ProgressionSnapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a stored snapshot on top of the defaults, so keys
// missing from older data keep their default values.
func DecodeSnapshot(data []byte) (models.ProgressionSnapshot, error) {
	s := models.NewProgressionSnapshot()
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return models.ProgressionSnapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return s, nil
}
