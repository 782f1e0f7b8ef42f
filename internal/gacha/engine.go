package gacha

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/reward"
	"github.com/hyakumasu/pokedrill/internal/rng"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

// PullCost is the point price of one pull
const PullCost = 100

// Rates is a rate table indexed by rarity, ordered common -> legendary
type Rates [models.RarityCount]float64

var (
	// StandardRates apply below the boost level
	StandardRates = Rates{0.90, 0.08, 0.02}
	// BoostRates apply to pulls at or above the boost level
	BoostRates = Rates{0.70, 0.24, 0.06}
	// EncounterRates apply to boosted random encounters outside the gacha
	EncounterRates = Rates{0.50, 0.40, 0.10}
)

// RatesFor picks the pull table for a player level (0 = no level)
func RatesFor(level int) Rates {
	if reward.ShouldApplyRarityBoost(level) {
		return BoostRates
	}
	return StandardRates
}

// RollRarity samples a rarity by walking the cumulative table.
// Rounding slack at the top lands on the last rarity.
func RollRarity(src rng.Source, rates Rates) models.Rarity {
	x := src.Float64()
	acc := 0.0
	for i, p := range rates {
		acc += p
		if x < acc {
			return models.Rarity(i)
		}
	}
	return models.RarityCount - 1
}

// Resolver turns a creature id into display data
type Resolver interface {
	FetchByID(ctx context.Context, id int) (models.Creature, error)
}

// PullResult is the outcome of one pull
type PullResult struct {
	Success         bool             `json:"success"`
	Creature        *models.Creature `json:"creature,omitempty"`
	RemainingPoints int              `json:"remainingPoints"`
}

// Engine performs gacha pulls. It never touches the player's balance; the
// caller spends the points once the pull succeeded.
type Engine struct {
	catalog  *Catalog
	resolver Resolver
	rng      rng.Source
	logger   *logger.Logger
}

// NewEngine creates a gacha engine. A nil source means crypto randomness.
func NewEngine(catalog *Catalog, resolver Resolver, src rng.Source, log *logger.Logger) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if src == nil {
		src = rng.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{catalog: catalog, resolver: resolver, rng: src, logger: log}
}

// Roll picks a rarity and id for a pull at level without resolving it
func (e *Engine) Roll(level int) (int, models.Rarity) {
	r := RollRarity(e.rng, RatesFor(level))
	return e.catalog.RollID(e.rng, r), r
}

// Pull spends PullCost out of points. With too few points it fails without
// consulting the resolver. Resolver errors are returned as is.
func (e *Engine) Pull(ctx context.Context, points, level int) (PullResult, error) {
	if points < PullCost {
		return PullResult{Success: false, RemainingPoints: points}, nil
	}

	id, rarity := e.Roll(level)
	c, err := e.resolver.FetchByID(ctx, id)
	if err != nil {
		e.logger.Error("Gacha resolve failed",
			logger.F("creature_id", strconv.Itoa(id)),
			logger.F("error", err.Error()))
		return PullResult{Success: false, RemainingPoints: points}, fmt.Errorf("resolve creature %d: %w", id, err)
	}
	c.Rarity = rarity

	e.logger.Debug("Gacha pull",
		logger.F("creature_id", strconv.Itoa(id)),
		logger.F("rarity", rarity.String()),
		logger.F("level", strconv.Itoa(level)))

	return PullResult{Success: true, Creature: &c, RemainingPoints: points - PullCost}, nil
}
