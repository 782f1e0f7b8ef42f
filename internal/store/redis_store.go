package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to redis and checks the connection
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStore implements the Store interface using Redis.
// The snapshot is stored as JSON under one key per player.
type RedisStore struct {
	client   *redis.Client
	key      string
	evictKey string        // transient cache key dropped when redis is out of memory
	ttl      time.Duration // Time-to-live for the snapshot (0 = no expiration)
	logger   *logger.Logger
}

// NewRedisStore creates a new Redis store instance for playerID.
//
// Parameters:
//   - evictKey: key deleted before the retry when redis reports OOM
//   - ttl: Time-to-live for the snapshot (0 = no expiration)
func NewRedisStore(client *redis.Client, playerID, evictKey string, ttl time.Duration, log *logger.Logger) *RedisStore {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisStore{
		client:   client,
		key:      snapshotKey(playerID),
		evictKey: evictKey,
		ttl:      ttl,
		logger:   log,
	}
}

// Load retrieves the snapshot from Redis.
func (s *RedisStore) Load(ctx context.Context) (models.ProgressionSnapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.NewProgressionSnapshot(), nil
		}
		return models.ProgressionSnapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// Save stores the snapshot. An OOM reply evicts the creature cache and retries once.
func (s *RedisStore) Save(ctx context.Context, snapshot models.ProgressionSnapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	err = saveWithEviction(ctx, s.logger, "redis",
		func(ctx context.Context) error { return s.client.Set(ctx, s.key, data, s.ttl).Err() },
		isOutOfMemory,
		func(ctx context.Context) error {
			if s.evictKey == "" {
				return nil
			}
			return s.client.Del(ctx, s.evictKey).Err()
		},
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// isOutOfMemory matches the error redis returns once maxmemory is reached
func isOutOfMemory(err error) bool {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return strings.HasPrefix(rerr.Error(), "OOM ")
	}
	return false
}

// snapshotKey generates a Redis key for a player's snapshot.
func snapshotKey(playerID string) string {
	return fmt.Sprintf("pokedrill:progress:%s", playerID)
}
