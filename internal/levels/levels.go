package levels

import (
	"strconv"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

// MaxLevel is the highest progression level
const MaxLevel = 20

var (
	addOnly   = []models.Operator{models.OpAdd}
	subOnly   = []models.Operator{models.OpSub}
	mulOnly   = []models.Operator{models.OpMul}
	addSub    = []models.Operator{models.OpAdd, models.OpSub}
	allThree  = []models.Operator{models.OpAdd, models.OpSub, models.OpMul}
	noCarry   = false
	twoByOne  = models.DigitConstraint{Operand1Digits: 2, Operand2Digits: 1}
	singleDig = models.NumberRange{Min: 0, Max: 9}
)

// table is indexed by level-1. It is never written after package init.
var table = [MaxLevel]models.LevelConfig{
	{Level: 1, Name: "Addition 0-5", TimeLimit: 300, Operators: addOnly, NumberRange: models.NumberRange{Min: 0, Max: 5}, PointsMultiplier: 1.0},
	{Level: 2, Name: "Addition 0-6", TimeLimit: 300, Operators: addOnly, NumberRange: models.NumberRange{Min: 0, Max: 6}, PointsMultiplier: 1.0},
	{Level: 3, Name: "Addition 0-7", TimeLimit: 300, Operators: addOnly, NumberRange: models.NumberRange{Min: 0, Max: 7}, PointsMultiplier: 1.0},
	{Level: 4, Name: "Addition 0-8", TimeLimit: 300, Operators: addOnly, NumberRange: models.NumberRange{Min: 0, Max: 8}, PointsMultiplier: 1.0},
	{Level: 5, Name: "Addition 0-9", TimeLimit: 300, Operators: addOnly, NumberRange: singleDig, PointsMultiplier: 1.0},

	{Level: 6, Name: "Subtraction 0-6", TimeLimit: 360, Operators: subOnly, NumberRange: models.NumberRange{Min: 0, Max: 6}, PointsMultiplier: 1.5},
	{Level: 7, Name: "Subtraction 0-9", TimeLimit: 360, Operators: subOnly, NumberRange: singleDig, PointsMultiplier: 1.5},
	{Level: 8, Name: "Multiplication 0-5", TimeLimit: 360, Operators: mulOnly, NumberRange: models.NumberRange{Min: 0, Max: 5}, PointsMultiplier: 1.5},
	{Level: 9, Name: "Multiplication 0-9", TimeLimit: 360, Operators: mulOnly, NumberRange: singleDig, PointsMultiplier: 1.5},
	{Level: 10, Name: "Mixed 0-9", TimeLimit: 360, Operators: allThree, NumberRange: singleDig, PointsMultiplier: 1.5},

	{Level: 11, Name: "Two-digit addition, no carry", TimeLimit: 480, Operators: addOnly, NumberRange: models.NumberRange{Min: 10, Max: 99}, PointsMultiplier: 2.0, AllowCarryOver: &noCarry, DigitConstraint: &twoByOne},
	{Level: 12, Name: "Two-digit addition", TimeLimit: 480, Operators: addOnly, NumberRange: models.NumberRange{Min: 10, Max: 99}, PointsMultiplier: 2.0, DigitConstraint: &twoByOne},
	{Level: 13, Name: "Two-digit subtraction, no borrow", TimeLimit: 480, Operators: subOnly, NumberRange: models.NumberRange{Min: 10, Max: 99}, PointsMultiplier: 2.0, AllowCarryOver: &noCarry, DigitConstraint: &twoByOne},
	{Level: 14, Name: "Two-digit subtraction", TimeLimit: 480, Operators: subOnly, NumberRange: models.NumberRange{Min: 10, Max: 99}, PointsMultiplier: 2.0, DigitConstraint: &twoByOne},
	{Level: 15, Name: "Two-digit addition and subtraction", TimeLimit: 480, Operators: addSub, NumberRange: models.NumberRange{Min: 10, Max: 99}, PointsMultiplier: 2.0, DigitConstraint: &twoByOne},

	{Level: 16, Name: "Two-digit multiplication 10-19", TimeLimit: 600, Operators: mulOnly, NumberRange: models.NumberRange{Min: 10, Max: 19}, PointsMultiplier: 3.0, DigitConstraint: &twoByOne},
	{Level: 17, Name: "Two-digit multiplication 10-39", TimeLimit: 600, Operators: mulOnly, NumberRange: models.NumberRange{Min: 10, Max: 39}, PointsMultiplier: 3.0, DigitConstraint: &twoByOne},
	{Level: 18, Name: "Two-digit multiplication 10-59", TimeLimit: 600, Operators: mulOnly, NumberRange: models.NumberRange{Min: 10, Max: 59}, PointsMultiplier: 3.0, DigitConstraint: &twoByOne},
	{Level: 19, Name: "Two-digit multiplication 10-99", TimeLimit: 600, Operators: mulOnly, NumberRange: models.NumberRange{Min: 10, Max: 99}, PointsMultiplier: 3.0, DigitConstraint: &twoByOne},
	{Level: 20, Name: "Master mix", TimeLimit: 600, Operators: allThree, NumberRange: models.NumberRange{Min: 10, Max: 99}, PointsMultiplier: 3.0, DigitConstraint: &twoByOne},
}

// tierTimeLimits are the legacy per-tier time limits in seconds
var tierTimeLimits = map[models.Tier]int{
	models.TierEasy:   300,
	models.TierNormal: 420,
	models.TierHard:   600,
}

// Valid reports whether level is in 1..MaxLevel
func Valid(level int) bool {
	return level >= 1 && level <= MaxLevel
}

// Lookup returns the config of a level and whether it exists.
func Lookup(level int) (models.LevelConfig, bool) {
	if !Valid(level) {
		return models.LevelConfig{}, false
	}
	return copyConfig(table[level-1]), true
}

// TierTimeLimit returns the legacy time limit of a tier; unknown tiers get the easy limit.
func TierTimeLimit(tier models.Tier) int {
	if v, ok := tierTimeLimits[tier]; ok {
		return v
	}
	return tierTimeLimits[models.TierEasy]
}

// Service answers level configuration queries.
type Service struct {
	logger *logger.Logger
}

// NewService creates a level config service
func NewService(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{logger: log}
}

// Config returns the level's config. Unknown levels fall back to level 1.
func (s *Service) Config(level int) models.LevelConfig {
	cfg, ok := Lookup(level)
	if !ok {
		s.logger.Warn("Unknown level, falling back to level 1", logger.F("level", strconv.Itoa(level)))
		return copyConfig(table[0])
	}
	return cfg
}

// All returns every level config in level order
func (s *Service) All() []models.LevelConfig {
	out := make([]models.LevelConfig, 0, MaxLevel)
	for _, cfg := range table {
		out = append(out, copyConfig(cfg))
	}
	return out
}

// Multiplier returns the points multiplier of a level
func (s *Service) Multiplier(level int) float64 {
	return s.Config(level).PointsMultiplier
}

// copyConfig detaches the slices and pointers so callers cannot write into the table.
func copyConfig(c models.LevelConfig) models.LevelConfig {
	out := c
	out.Operators = append([]models.Operator(nil), c.Operators...)
	if c.AllowCarryOver != nil {
		v := *c.AllowCarryOver
		out.AllowCarryOver = &v
	}
	if c.DigitConstraint != nil {
		v := *c.DigitConstraint
		out.DigitConstraint = &v
	}
	return out
}
