package problem

import (
	"github.com/google/uuid"

	"github.com/hyakumasu/pokedrill/internal/levels"
	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/rng"
)

// maxConstraintAttempts bounds the carry/borrow retry loop
const maxConstraintAttempts = 100

// hardTwoDigitChance is how often a legacy HARD problem gets a two-digit operand
const hardTwoDigitChance = 0.8

var allOperators = []models.Operator{models.OpAdd, models.OpSub, models.OpMul}

// Generator produces arithmetic problems for levels and legacy tiers.
type Generator struct {
	rng    rng.Source
	levels *levels.Service
	newID  func() string
}

// NewGenerator creates a generator. A nil source uses the crypto default.
func NewGenerator(src rng.Source, lv *levels.Service) *Generator {
	if src == nil {
		src = rng.Default()
	}
	if lv == nil {
		lv = levels.NewService(nil)
	}
	return &Generator{
		rng:    src,
		levels: lv,
		newID:  func() string { return "prob_" + uuid.NewString() },
	}
}

// GenerateForLevel creates count problems following the level's config.
func (g *Generator) GenerateForLevel(level, count int) []models.Problem {
	if count <= 0 {
		return []models.Problem{}
	}
	cfg := g.levels.Config(level)
	lo1, hi1 := operandBounds(cfg, 1)
	lo2, hi2 := operandBounds(cfg, 2)

	out := make([]models.Problem, 0, count)
	for i := 0; i < count; i++ {
		op := rng.Pick(g.rng, cfg.Operators)

		var a, b int
		for attempt := 0; attempt < maxConstraintAttempts; attempt++ {
			a = rng.IntRange(g.rng, lo1, hi1)
			b = rng.IntRange(g.rng, lo2, hi2)
			if cfg.CarryAllowed() || !Crosses(op, a, b) {
				break
			}
		}
		out = append(out, g.newProblem(op, a, b))
	}
	return out
}

// Generate creates count problems for a legacy tier.
func (g *Generator) Generate(tier models.Tier, count int) []models.Problem {
	if count <= 0 {
		return []models.Problem{}
	}
	out := make([]models.Problem, 0, count)
	for i := 0; i < count; i++ {
		var op models.Operator
		a := rng.IntRange(g.rng, 0, 9)
		b := rng.IntRange(g.rng, 0, 9)

		switch tier {
		case models.TierNormal:
			op = models.OpMul
		case models.TierHard:
			op = rng.Pick(g.rng, allOperators)
			if rng.Chance(g.rng, hardTwoDigitChance) {
				if rng.Chance(g.rng, 0.5) {
					a = rng.IntRange(g.rng, 10, 99)
				} else {
					b = rng.IntRange(g.rng, 10, 99)
				}
			}
		default:
			op = models.OpAdd
			if rng.Chance(g.rng, 0.5) {
				op = models.OpSub
			}
		}
		out = append(out, g.newProblem(op, a, b))
	}
	return out
}

func (g *Generator) newProblem(op models.Operator, a, b int) models.Problem {
	p := New(op, a, b)
	p.ID = g.newID()
	return p
}

// New builds a problem without an id. Subtraction operands are ordered so the answer is never negative.
func New(op models.Operator, a, b int) models.Problem {
	if op == models.OpSub && a < b {
		a, b = b, a
	}
	return models.Problem{
		Operand1: a,
		Operand2: b,
		Operator: op,
		Answer:   op.Apply(a, b),
	}
}

// Crosses reports whether op on (a, b) needs a digit-wise carry or borrow.
// Multiplication never crosses.
func Crosses(op models.Operator, a, b int) bool {
	switch op {
	case models.OpAdd:
		return HasCarry(a, b)
	case models.OpSub:
		if a < b {
			a, b = b, a
		}
		return HasBorrow(a, b)
	default:
		return false
	}
}

// HasCarry reports whether a+b carries in any digit.
func HasCarry(a, b int) bool {
	for a > 0 || b > 0 {
		if a%10+b%10 >= 10 {
			return true
		}
		a /= 10
		b /= 10
	}
	return false
}

// HasBorrow reports whether a-b borrows in any digit; requires a >= b.
func HasBorrow(a, b int) bool {
	for b > 0 {
		if a%10 < b%10 {
			return true
		}
		a /= 10
		b /= 10
	}
	return false
}

// operandBounds resolves the draw range of operand 1 or 2 for a level.
func operandBounds(cfg models.LevelConfig, operand int) (int, int) {
	r := cfg.NumberRange
	if cfg.DigitConstraint == nil {
		return r.Min, r.Max
	}
	digits := cfg.DigitConstraint.Operand1Digits
	if operand == 2 {
		digits = cfg.DigitConstraint.Operand2Digits
	}
	var lo, hi int
	switch digits {
	case 1:
		lo, hi = 0, 9
	case 2:
		lo, hi = 10, 99
	default:
		return r.Min, r.Max
	}
	// narrow to the level range when they overlap
	nlo, nhi := max(lo, r.Min), min(hi, r.Max)
	if nlo <= nhi {
		return nlo, nhi
	}
	return lo, hi
}
