package cassandra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/store"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

// querier is the part of gocql.Session the repository uses
type querier interface {
	Query(stmt string, values ...interface{}) *gocql.Query
}

// Repository implements store.Store using Cassandra. Cassandra has no quota
// error class, so every write error is returned to the caller.
type Repository struct {
	client   *Client
	playerID string
	logger   *logger.Logger
	timeout  time.Duration
}

var _ store.Store = (*Repository)(nil)

// NewRepository creates a snapshot repository for playerID
func NewRepository(client *Client, playerID string, log *logger.Logger, timeout time.Duration) *Repository {
	return &Repository{
		client:   client,
		playerID: playerID,
		logger:   log,
		timeout:  timeout,
	}
}

// Load reads the player's snapshot; no row yields defaults
func (r *Repository) Load(ctx context.Context) (models.ProgressionSnapshot, error) {
	queryCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	// Check if context is already cancelled
	if err := queryCtx.Err(); err != nil {
		return models.ProgressionSnapshot{}, fmt.Errorf("context cancelled: %w", err)
	}

	var data string
	err := r.session().Query(selectQuery(r.client.Keyspace()), r.playerID).WithContext(queryCtx).Scan(&data)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return models.NewProgressionSnapshot(), nil
		}
		r.logger.Error("Failed to load snapshot from Cassandra",
			logger.F("player_id", r.playerID),
			logger.F("error", err.Error()))
		return models.ProgressionSnapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return store.DecodeSnapshot([]byte(data))
}

// Save upserts the player's snapshot
func (r *Repository) Save(ctx context.Context, snapshot models.ProgressionSnapshot) error {
	data, err := store.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	queryCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := queryCtx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	err = r.session().Query(upsertQuery(r.client.Keyspace()), r.playerID, string(data), time.Now().UTC()).
		WithContext(queryCtx).Exec()
	if err != nil {
		r.logger.Error("Failed to save snapshot to Cassandra",
			logger.F("player_id", r.playerID),
			logger.F("error", err.Error()))
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	r.logger.Debug("Snapshot saved", logger.F("player_id", r.playerID))
	return nil
}

func (r *Repository) session() querier {
	return r.client.Session()
}

// withTimeout uses the context deadline if present, otherwise the configured timeout
func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline || r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func selectQuery(keyspace string) string {
	return fmt.Sprintf(`
		SELECT snapshot
		FROM %s.progression
		WHERE player_id = ?`, keyspace)
}

func upsertQuery(keyspace string) string {
	return fmt.Sprintf(`
		INSERT INTO %s.progression (player_id, snapshot, updated_at)
		VALUES (?, ?, ?)`, keyspace)
}
