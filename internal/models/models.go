package models

import (
	"time"
)

// GridSize is the side length of the calculation grid
const GridSize = 10

// Operator is an arithmetic operator used by a problem
type Operator string

const (
	OpAdd Operator = "add"
	OpSub Operator = "sub"
	OpMul Operator = "mul"
)

// Apply computes a op b. Subtraction is not clamped here.
func (o Operator) Apply(a, b int) int {
	switch o {
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	default:
		return a + b
	}
}

// Symbol returns the display symbol for the operator
func (o Operator) Symbol() string {
	switch o {
	case OpSub:
		return "-"
	case OpMul:
		return "×"
	default:
		return "+"
	}
}

// Tier is the legacy three-step difficulty
type Tier string

const (
	TierEasy   Tier = "easy"
	TierNormal Tier = "normal"
	TierHard   Tier = "hard"
)

// Tiers lists legacy tiers in ascending difficulty
var Tiers = [3]Tier{TierEasy, TierNormal, TierHard}

// Valid reports whether t is one of the known tiers
func (t Tier) Valid() bool {
	return t == TierEasy || t == TierNormal || t == TierHard
}

// Selector picks what a session is played at: a level (1-20) or a legacy tier.
// Exactly one of the two is set.
type Selector struct {
	Level int  `json:"level,omitempty"`
	Tier  Tier `json:"tier,omitempty"`
}

// IsLevel reports whether the selector targets the 20-level system
func (s Selector) IsLevel() bool {
	return s.Level > 0
}

// Problem is one immutable arithmetic question
type Problem struct {
	ID       string   `json:"id"`
	Operand1 int      `json:"operand1"`
	Operand2 int      `json:"operand2"`
	Operator Operator `json:"operator"`
	Answer   int      `json:"answer"`
}

// CellState is one grid cell and the player's progress on it
type CellState struct {
	Problem    Problem `json:"problem"`
	UserAnswer *int    `json:"userAnswer"`
	IsCorrect  *bool   `json:"isCorrect"`
	IsRevealed bool    `json:"isRevealed"`
}

// Rarity classifies a collectible creature
type Rarity int

const (
	RarityCommon Rarity = iota
	RarityRare
	RarityLegendary

	RarityCount
)

var rarityNames = [RarityCount]string{"common", "rare", "legendary"}

func (r Rarity) String() string {
	if r < 0 || r >= RarityCount {
		return "unknown"
	}
	return rarityNames[r]
}

// MarshalText encodes the rarity as its name
func (r Rarity) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a rarity name; unknown names become common
func (r *Rarity) UnmarshalText(b []byte) error {
	*r = RarityCommon
	for i, name := range rarityNames {
		if name == string(b) {
			*r = Rarity(i)
		}
	}
	return nil
}

// Creature is display metadata for a collectible
type Creature struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	LocalizedName string `json:"localizedName"`
	ImageURL      string `json:"imageUrl"`
	Rarity        Rarity `json:"rarity"`
}

// Session is one play-through of a 10x10 grid
type Session struct {
	ID           string                        `json:"id"`
	Level        int                           `json:"level,omitempty"`
	Tier         Tier                          `json:"tier,omitempty"`
	Creature     Creature                      `json:"creature"`
	Operator     Operator                      `json:"operator"`
	HeaderRow    [GridSize]int                 `json:"headerRow"`
	HeaderColumn [GridSize]int                 `json:"headerColumn"`
	Cells        [GridSize][GridSize]CellState `json:"cells"`
	StartTime    time.Time                     `json:"startTime"`
	TimeLimit    int                           `json:"timeLimit"` // seconds
	Mistakes     int                           `json:"mistakes"`
	IsCompleted  bool                          `json:"isCompleted"`
	CompletedAt  *time.Time                    `json:"completedAt,omitempty"`
}

// Selector returns what the session was started with
func (s *Session) Selector() Selector {
	return Selector{Level: s.Level, Tier: s.Tier}
}

// AllRevealed reports whether every cell has been revealed
func (s *Session) AllRevealed() bool {
	for r := range s.Cells {
		for c := range s.Cells[r] {
			if !s.Cells[r][c].IsRevealed {
				return false
			}
		}
	}
	return true
}

// RevealedCount returns how many cells are revealed
func (s *Session) RevealedCount() int {
	n := 0
	for r := range s.Cells {
		for c := range s.Cells[r] {
			if s.Cells[r][c].IsRevealed {
				n++
			}
		}
	}
	return n
}

// NumberRange is an inclusive operand range
type NumberRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DigitConstraint forces the digit count of each operand
type DigitConstraint struct {
	Operand1Digits int `json:"operand1Digits"`
	Operand2Digits int `json:"operand2Digits"`
}

// LevelConfig is the static configuration of one level
type LevelConfig struct {
	Level            int              `json:"level"`
	Name             string           `json:"name"`
	TimeLimit        int              `json:"timeLimit"` // seconds
	Operators        []Operator       `json:"operators"`
	NumberRange      NumberRange      `json:"numberRange"`
	PointsMultiplier float64          `json:"pointsMultiplier"`
	AllowCarryOver   *bool            `json:"allowCarryOver,omitempty"`
	DigitConstraint  *DigitConstraint `json:"digitConstraint,omitempty"`
}

// CarryAllowed reports whether carry/borrow problems may be generated
func (c LevelConfig) CarryAllowed() bool {
	return c.AllowCarryOver == nil || *c.AllowCarryOver
}

// LevelStats is the per-level history of a player
type LevelStats struct {
	Level      int  `json:"level"`
	BestTime   *int `json:"bestTime"`
	TotalPlays int  `json:"totalPlays"`
	Cleared    bool `json:"cleared"`
	Stars      int  `json:"stars"`
}

// TierStats is the per-tier history kept from the legacy difficulty system
type TierStats struct {
	BestTime           *int `json:"bestTime"`
	TotalPlays         int  `json:"totalPlays"`
	FirstClearAchieved bool `json:"firstClearAchieved"`
}

// ProgressionSnapshot is the persisted player state
type ProgressionSnapshot struct {
	Points               int                `json:"points"`
	OwnedCreatures       []int              `json:"ownedCreatures"`
	Stats                map[Tier]TierStats `json:"stats"`
	LevelStats           map[int]LevelStats `json:"levelStats"`
	HighestUnlockedLevel int                `json:"highestUnlockedLevel"`
}

// NewProgressionSnapshot returns the defaults used on first load
func NewProgressionSnapshot() ProgressionSnapshot {
	stats := make(map[Tier]TierStats, len(Tiers))
	for _, t := range Tiers {
		stats[t] = TierStats{}
	}
	return ProgressionSnapshot{
		Points:               0,
		OwnedCreatures:       []int{},
		Stats:                stats,
		LevelStats:           map[int]LevelStats{},
		HighestUnlockedLevel: 1,
	}
}

// Clone returns a deep copy so callers can replace state wholesale
func (p ProgressionSnapshot) Clone() ProgressionSnapshot {
	out := p
	out.OwnedCreatures = append([]int{}, p.OwnedCreatures...)
	out.Stats = make(map[Tier]TierStats, len(p.Stats))
	for k, v := range p.Stats {
		v.BestTime = cloneInt(v.BestTime)
		out.Stats[k] = v
	}
	out.LevelStats = make(map[int]LevelStats, len(p.LevelStats))
	for k, v := range p.LevelStats {
		v.BestTime = cloneInt(v.BestTime)
		out.LevelStats[k] = v
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// RewardType names a reward line item
type RewardType string

const (
	RewardCompletion RewardType = "completion"
	RewardFirstClear RewardType = "first_clear"
	RewardNewRecord  RewardType = "new_record"
	RewardNoMistakes RewardType = "no_mistakes"
)

// Reward is one line of a completion payout
type Reward struct {
	Type     RewardType `json:"type"`
	Points   int        `json:"points"`
	Creature *Creature  `json:"creature,omitempty"`
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// BoolPtr returns a pointer to v
func BoolPtr(v bool) *bool {
	return &v
}
