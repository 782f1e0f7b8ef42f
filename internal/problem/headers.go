package problem

import (
	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/rng"
)

// Headers are the top row and left column of a 100-square table.
// Column values are operand 1 of their row, Row values operand 2 of their column.
type Headers struct {
	Operator models.Operator
	Row      [models.GridSize]int
	Column   [models.GridSize]int
}

// Headers draws the operator and header values for a session.
func (g *Generator) Headers(sel models.Selector) Headers {
	if sel.IsLevel() {
		return g.levelHeaders(sel.Level)
	}
	return g.tierHeaders(sel.Tier)
}

func (g *Generator) levelHeaders(level int) Headers {
	cfg := g.levels.Config(level)
	h := Headers{Operator: rng.Pick(g.rng, cfg.Operators)}

	lo1, hi1 := operandBounds(cfg, 1)
	lo2, hi2 := operandBounds(cfg, 2)
	if cfg.CarryAllowed() || h.Operator == models.OpMul {
		h.Row = g.drawValues(lo2, hi2)
		h.Column = g.drawValues(lo1, hi1)
		return h
	}
	g.splitHeaders(&h, lo1, hi1, lo2, hi2)
	return h
}

// splitHeaders fills headers for levels without carry or borrow. A split digit k
// caps every row value at k and keeps column units in [0, 9-k] for addition or
// [k, 9] for subtraction, so no pair crosses a ten.
func (g *Generator) splitHeaders(h *Headers, lo1, hi1, lo2, hi2 int) {
	k := min(max(rng.IntRange(g.rng, 3, 6), lo2), hi2)
	for i := range h.Row {
		h.Row[i] = rng.IntRange(g.rng, lo2, k)
	}

	ulo, uhi := 0, 9-k
	if h.Operator == models.OpSub {
		ulo, uhi = k, 9
	}

	used := make(map[int]bool, models.GridSize)
	for i := range h.Column {
		v, fallback, found := 0, 0, false
		for attempt := 0; attempt < maxConstraintAttempts; attempt++ {
			base := rng.IntRange(g.rng, lo1, hi1)
			v = base - base%10 + rng.IntRange(g.rng, ulo, uhi)
			if v < lo1 || v > hi1 || crossesAny(h.Operator, v, h.Row) {
				continue
			}
			if !found {
				fallback, found = v, true
			}
			if !used[v] {
				break
			}
		}
		if found && (used[v] || v < lo1 || v > hi1 || crossesAny(h.Operator, v, h.Row)) {
			v = fallback
		}
		used[v] = true
		h.Column[i] = v
	}
}

func (g *Generator) tierHeaders(tier models.Tier) Headers {
	var h Headers
	switch tier {
	case models.TierNormal:
		h.Operator = models.OpMul
		h.Column = g.drawValues(0, 9)
	case models.TierHard:
		h.Operator = rng.Pick(g.rng, allOperators)
		if rng.Chance(g.rng, hardTwoDigitChance) {
			h.Column = g.drawValues(10, 99)
		} else {
			h.Column = g.drawValues(0, 9)
		}
	default:
		h.Operator = models.OpAdd
		if rng.Chance(g.rng, 0.5) {
			h.Operator = models.OpSub
		}
		h.Column = g.drawValues(0, 9)
	}
	h.Row = g.drawValues(0, 9)
	return h
}

// Grid derives every cell problem from the headers so headers and cells always agree.
func (g *Generator) Grid(h Headers) [models.GridSize][models.GridSize]models.Problem {
	var grid [models.GridSize][models.GridSize]models.Problem
	for r := 0; r < models.GridSize; r++ {
		for c := 0; c < models.GridSize; c++ {
			grid[r][c] = g.newProblem(h.Operator, h.Column[r], h.Row[c])
		}
	}
	return grid
}

// drawValues returns GridSize values in [lo, hi]. When the range is wide enough
// the values are distinct, otherwise they repeat.
func (g *Generator) drawValues(lo, hi int) [models.GridSize]int {
	var out [models.GridSize]int
	if hi-lo+1 < models.GridSize {
		for i := range out {
			out[i] = rng.IntRange(g.rng, lo, hi)
		}
		return out
	}

	// partial Fisher-Yates over the range
	pool := make([]int, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		pool = append(pool, v)
	}
	for i := range out {
		j := rng.IntRange(g.rng, i, len(pool)-1)
		pool[i], pool[j] = pool[j], pool[i]
		out[i] = pool[i]
	}
	return out
}

func crossesAny(op models.Operator, v int, others [models.GridSize]int) bool {
	for _, o := range others {
		if Crosses(op, v, o) {
			return true
		}
	}
	return false
}
