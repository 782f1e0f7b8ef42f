package creature

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// CacheKey is the redis hash holding resolved creatures, one field per id.
// It is disposable; the snapshot store evicts it when redis runs out of memory.
const CacheKey = "pokedrill:creature-cache"

// CachedSource decorates a Source with a redis hash cache. Cache failures
// are logged and fall through to the wrapped source.
type CachedSource struct {
	next   Source
	client *redis.Client
	key    string
	logger *logger.Logger
}

// NewCachedSource wraps next with a cache stored under CacheKey
func NewCachedSource(next Source, client *redis.Client, log *logger.Logger) *CachedSource {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedSource{next: next, client: client, key: CacheKey, logger: log}
}

// FetchRandom delegates the pick and caches the result
func (c *CachedSource) FetchRandom(ctx context.Context, level int) (models.Creature, error) {
	cr, err := c.next.FetchRandom(ctx, level)
	if err != nil {
		return models.Creature{}, err
	}
	c.put(ctx, cr)
	return cr, nil
}

// FetchByID serves from the cache when possible
func (c *CachedSource) FetchByID(ctx context.Context, id int) (models.Creature, error) {
	if cr, ok := c.get(ctx, id); ok {
		return cr, nil
	}
	cr, err := c.next.FetchByID(ctx, id)
	if err != nil {
		return models.Creature{}, err
	}
	c.put(ctx, cr)
	return cr, nil
}

// FetchMany resolves ids through the cache, concurrently and in order
func (c *CachedSource) FetchMany(ctx context.Context, ids []int) ([]models.Creature, error) {
	return fetchMany(ctx, ids, c.FetchByID)
}

func (c *CachedSource) get(ctx context.Context, id int) (models.Creature, bool) {
	data, err := c.client.HGet(ctx, c.key, strconv.Itoa(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("Creature cache read failed", logger.F("creature_id", strconv.Itoa(id)), logger.F("error", err.Error()))
		}
		return models.Creature{}, false
	}
	var cr models.Creature
	if err := json.Unmarshal([]byte(data), &cr); err != nil {
		return models.Creature{}, false
	}
	return cr, true
}

func (c *CachedSource) put(ctx context.Context, cr models.Creature) {
	data, err := json.Marshal(cr)
	if err != nil {
		return
	}
	if err := c.client.HSet(ctx, c.key, strconv.Itoa(cr.ID), data).Err(); err != nil {
		c.logger.Debug("Creature cache write failed", logger.F("creature_id", strconv.Itoa(cr.ID)), logger.F("error", err.Error()))
	}
}
