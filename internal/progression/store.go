package progression

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/store"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

// Store owns the player's progression. Every mutation goes through Reduce,
// replaces the snapshot and is saved right away. Related mutations are not
// batched: spending points and adding the pulled creature are two saves.
type Store struct {
	mu       sync.Mutex
	snapshot models.ProgressionSnapshot
	backend  store.Store
	logger   *logger.Logger
}

// Open loads the snapshot, repairs it, migrates legacy tier stats once and
// saves the result when anything changed.
func Open(ctx context.Context, backend store.Store, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load progression: %w", err)
	}

	snapshot := Normalize(loaded)
	migrate := NeedsMigration(snapshot)
	if migrate {
		snapshot = Migrate(snapshot)
		log.Info("Migrated legacy tier stats",
			logger.F("levels", strconv.Itoa(len(snapshot.LevelStats))),
			logger.F("frontier", strconv.Itoa(snapshot.HighestUnlockedLevel)))
	}
	dropped := len(loaded.OwnedCreatures) - len(snapshot.OwnedCreatures)
	if dropped > 0 {
		log.Info("Removed duplicate creatures", logger.F("count", strconv.Itoa(dropped)))
	}

	if migrate || dropped > 0 {
		if err := backend.Save(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("failed to save migrated progression: %w", err)
		}
	}

	return &Store{snapshot: snapshot, backend: backend, logger: log}, nil
}

// Snapshot returns a copy of the current progression
func (s *Store) Snapshot() models.ProgressionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Dispatch applies an action and persists the result. A rejected action
// leaves the state untouched and saves nothing. A failed save keeps the new
// in-memory state and returns the storage error.
func (s *Store) Dispatch(ctx context.Context, a Action) (models.ProgressionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Reduce(s.snapshot, a)
	if err != nil {
		return s.snapshot.Clone(), err
	}
	s.snapshot = next

	if err := s.backend.Save(ctx, next); err != nil {
		s.logger.Error("Failed to persist progression", logger.F("error", err.Error()))
		return next.Clone(), fmt.Errorf("failed to persist progression: %w", err)
	}
	return next.Clone(), nil
}

// AddPoints adds n points
func (s *Store) AddPoints(ctx context.Context, n int) error {
	_, err := s.Dispatch(ctx, AddPoints{N: n})
	return err
}

// SpendPoints removes n points; see ErrInvalidAmount and ErrInsufficientFunds
func (s *Store) SpendPoints(ctx context.Context, n int) error {
	_, err := s.Dispatch(ctx, SpendPoints{N: n})
	return err
}

// AddCreature appends id to the collection
func (s *Store) AddCreature(ctx context.Context, id int) error {
	_, err := s.Dispatch(ctx, AddCreature{ID: id})
	return err
}

// UpdateLevelStats records one play of level
func (s *Store) UpdateLevelStats(ctx context.Context, level, completionTime int, completed bool, stars int) error {
	_, err := s.Dispatch(ctx, UpdateLevelStats{Level: level, CompletionTime: completionTime, Completed: completed, Stars: stars})
	return err
}

// UpdateTierStats records one play of a legacy tier
func (s *Store) UpdateTierStats(ctx context.Context, tier models.Tier, completionTime int, completed bool) error {
	_, err := s.Dispatch(ctx, UpdateTierStats{Tier: tier, CompletionTime: completionTime, Completed: completed})
	return err
}

// UnlockLevel raises the frontier to level
func (s *Store) UnlockLevel(ctx context.Context, level int) error {
	_, err := s.Dispatch(ctx, UnlockLevel{Level: level})
	return err
}

// RecordSession records a finished session as one mutation
func (s *Store) RecordSession(ctx context.Context, r RecordSession) error {
	_, err := s.Dispatch(ctx, r)
	return err
}

// Persist saves the current snapshot again. It completes a mutation whose
// save failed earlier.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Save(ctx, s.snapshot); err != nil {
		return fmt.Errorf("failed to persist progression: %w", err)
	}
	return nil
}

// IsLevelUnlocked reports whether level can be played
func (s *Store) IsLevelUnlocked(level int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IsLevelUnlocked(s.snapshot, level)
}
