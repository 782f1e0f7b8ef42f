package problem

import (
	"testing"

	"github.com/hyakumasu/pokedrill/internal/levels"
	"github.com/hyakumasu/pokedrill/internal/models"
)

func TestGridMatchesHeaders(t *testing.T) {
	g := newTestGenerator(11)
	for level := 1; level <= levels.MaxLevel; level++ {
		h := g.Headers(models.Selector{Level: level})
		grid := g.Grid(h)
		for r := 0; r < models.GridSize; r++ {
			for c := 0; c < models.GridSize; c++ {
				p := grid[r][c]
				checkProblem(t, p)
				want := New(h.Operator, h.Column[r], h.Row[c])
				if p.Operand1 != want.Operand1 || p.Operand2 != want.Operand2 || p.Answer != want.Answer {
					t.Fatalf("level %d cell (%d,%d) = %+v, headers give %+v", level, r, c, p, want)
				}
			}
		}
	}
}

func TestHeadersWithoutCarry(t *testing.T) {
	for seed := uint64(0); seed < 50; seed++ {
		g := newTestGenerator(seed)
		for _, level := range []int{11, 13} {
			h := g.Headers(models.Selector{Level: level})
			for _, col := range h.Column {
				if col < 10 || col > 99 {
					t.Fatalf("seed %d level %d: column header %d not two digits", seed, level, col)
				}
				for _, row := range h.Row {
					if Crosses(h.Operator, col, row) {
						t.Fatalf("seed %d level %d: %d %s %d crosses a ten", seed, level, col, h.Operator, row)
					}
				}
			}
		}
	}
}

func TestHeadersDistinctWhenRangeAllows(t *testing.T) {
	g := newTestGenerator(2)
	h := g.Headers(models.Selector{Level: 9})
	seen := map[int]bool{}
	for _, v := range h.Row {
		if seen[v] {
			t.Fatalf("row headers repeat: %v", h.Row)
		}
		seen[v] = true
	}
}

func TestTierHeaders(t *testing.T) {
	g := newTestGenerator(4)

	if h := g.Headers(models.Selector{Tier: models.TierNormal}); h.Operator != models.OpMul {
		t.Fatalf("normal tier should multiply, got %s", h.Operator)
	}
	h := g.Headers(models.Selector{Tier: models.TierEasy})
	if h.Operator != models.OpAdd && h.Operator != models.OpSub {
		t.Fatalf("easy tier should add or subtract, got %s", h.Operator)
	}
	for _, v := range h.Column {
		if v > 9 {
			t.Fatalf("easy tier header should be single digit: %v", h.Column)
		}
	}
}
