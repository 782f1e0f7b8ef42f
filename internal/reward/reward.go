package reward

import (
	"math"

	"github.com/hyakumasu/pokedrill/internal/levels"
	"github.com/hyakumasu/pokedrill/internal/models"
)

// BoostLevel is the first level that gets boosted gacha odds
const BoostLevel = 15

// basePoints is the point table for one tier
type basePoints struct {
	Completion int
	FirstClear int
	NewRecord  int
	NoMistakes int
}

var tierPoints = map[models.Tier]basePoints{
	models.TierEasy:   {Completion: 20, FirstClear: 100, NewRecord: 50, NoMistakes: 30},
	models.TierNormal: {Completion: 40, FirstClear: 200, NewRecord: 100, NoMistakes: 60},
	models.TierHard:   {Completion: 60, FirstClear: 300, NewRecord: 150, NoMistakes: 90},
}

// Params describes a finished session. Exactly one of Level or Tier is set;
// Level wins when both are.
type Params struct {
	Level          int
	Tier           models.Tier
	IsFirstClear   bool
	IsNewRecord    bool
	Mistakes       int
	CompletionTime int
	Creature       *models.Creature
}

// Calculator turns session outcomes into reward line items
type Calculator struct {
	levels *levels.Service
}

// NewCalculator creates a calculator reading multipliers from lv
func NewCalculator(lv *levels.Service) *Calculator {
	return &Calculator{levels: lv}
}

// Calculate returns the rewards for p. The completion reward is always first
// and is the only one carrying the creature.
func (c *Calculator) Calculate(p Params) []models.Reward {
	table := c.table(p)

	rewards := []models.Reward{{
		Type:     models.RewardCompletion,
		Points:   table.Completion,
		Creature: p.Creature,
	}}
	if p.IsFirstClear {
		rewards = append(rewards, models.Reward{Type: models.RewardFirstClear, Points: table.FirstClear})
	}
	if p.IsNewRecord {
		rewards = append(rewards, models.Reward{Type: models.RewardNewRecord, Points: table.NewRecord})
	}
	if p.Mistakes == 0 {
		rewards = append(rewards, models.Reward{Type: models.RewardNoMistakes, Points: table.NoMistakes})
	}
	return rewards
}

func (c *Calculator) table(p Params) basePoints {
	if p.Level > 0 {
		m := c.levels.Multiplier(p.Level)
		n := tierPoints[models.TierNormal]
		return basePoints{
			Completion: scale(n.Completion, m),
			FirstClear: scale(n.FirstClear, m),
			NewRecord:  scale(n.NewRecord, m),
			NoMistakes: scale(n.NoMistakes, m),
		}
	}
	if t, ok := tierPoints[p.Tier]; ok {
		return t
	}
	return tierPoints[models.TierNormal]
}

func scale(points int, multiplier float64) int {
	return int(math.Round(float64(points) * multiplier))
}

// ShouldApplyRarityBoost reports whether pulls at level get boosted odds.
// Level 0 means no level is known.
func ShouldApplyRarityBoost(level int) bool {
	return level >= BoostLevel
}

// Total sums the points of rewards
func Total(rewards []models.Reward) int {
	sum := 0
	for _, r := range rewards {
		sum += r.Points
	}
	return sum
}

// Stars rates a session from 0 to 3.
//
//	3: completed with no mistakes within half the time limit
//	2: completed with at most 3 mistakes
//	1: completed
//	0: not completed
func Stars(completed bool, completionTime, timeLimit, mistakes int) int {
	switch {
	case !completed:
		return 0
	case mistakes == 0 && completionTime*2 <= timeLimit:
		return 3
	case mistakes <= 3:
		return 2
	default:
		return 1
	}
}
