package progression

import (
	"errors"

	"github.com/hyakumasu/pokedrill/internal/levels"
	"github.com/hyakumasu/pokedrill/internal/models"
)

var (
	// ErrInvalidAmount is returned when a negative amount is spent
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds is returned when spending more points than owned
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Action is a progression mutation
type Action interface {
	isAction()
}

// AddPoints adds n points. There is no upper bound.
type AddPoints struct{ N int }

// SpendPoints removes n points
type SpendPoints struct{ N int }

// AddCreature appends a creature id to the collection, duplicates included
type AddCreature struct{ ID int }

// UpdateLevelStats records one play of a level
type UpdateLevelStats struct {
	Level          int
	CompletionTime int
	Completed      bool
	Stars          int
}

// UpdateTierStats records one play of a legacy tier
type UpdateTierStats struct {
	Tier           models.Tier
	CompletionTime int
	Completed      bool
}

// UnlockLevel raises the frontier to Level
type UnlockLevel struct{ Level int }

// RecordSession records one finished session in a single step: the play
// stats of its level (or legacy tier when Level is 0) and, when completed,
// the points earned and the creature revealed.
type RecordSession struct {
	Level          int
	Tier           models.Tier
	CompletionTime int
	Completed      bool
	Stars          int
	Points         int
	CreatureID     int
}

func (AddPoints) isAction()        {}
func (SpendPoints) isAction()      {}
func (AddCreature) isAction()      {}
func (UpdateLevelStats) isAction() {}
func (UpdateTierStats) isAction()  {}
func (UnlockLevel) isAction()      {}
func (RecordSession) isAction()    {}

// Reduce applies an action to a snapshot and returns the next snapshot.
// The input is never modified. On error the input is returned unchanged.
func Reduce(s models.ProgressionSnapshot, a Action) (models.ProgressionSnapshot, error) {
	switch act := a.(type) {
	case SpendPoints:
		if act.N < 0 {
			return s, ErrInvalidAmount
		}
		if act.N > s.Points {
			return s, ErrInsufficientFunds
		}
	}

	next := s.Clone()
	switch act := a.(type) {
	case AddPoints:
		next.Points += act.N
	case SpendPoints:
		next.Points -= act.N
	case AddCreature:
		next.OwnedCreatures = append(next.OwnedCreatures, act.ID)
	case UpdateLevelStats:
		updateLevelStats(&next, act)
	case UpdateTierStats:
		updateTierStats(&next, act)
	case UnlockLevel:
		raiseFrontier(&next, act.Level)
	case RecordSession:
		recordSession(&next, act)
	}
	return next, nil
}

func updateLevelStats(s *models.ProgressionSnapshot, act UpdateLevelStats) {
	st, ok := s.LevelStats[act.Level]
	if !ok {
		st = models.LevelStats{Level: act.Level}
	}
	st.TotalPlays++
	if act.Completed {
		if st.BestTime == nil || act.CompletionTime < *st.BestTime {
			st.BestTime = models.IntPtr(act.CompletionTime)
		}
		st.Cleared = true
		st.Stars = max(st.Stars, act.Stars)
		if act.Level < levels.MaxLevel {
			raiseFrontier(s, act.Level+1)
		}
	}
	s.LevelStats[act.Level] = st
}

func updateTierStats(s *models.ProgressionSnapshot, act UpdateTierStats) {
	st := s.Stats[act.Tier]
	st.TotalPlays++
	if act.Completed {
		if st.BestTime == nil || act.CompletionTime < *st.BestTime {
			st.BestTime = models.IntPtr(act.CompletionTime)
		}
		st.FirstClearAchieved = true
	}
	s.Stats[act.Tier] = st
}

func recordSession(s *models.ProgressionSnapshot, act RecordSession) {
	if act.Level > 0 {
		updateLevelStats(s, UpdateLevelStats{
			Level:          act.Level,
			CompletionTime: act.CompletionTime,
			Completed:      act.Completed,
			Stars:          act.Stars,
		})
	} else {
		updateTierStats(s, UpdateTierStats{
			Tier:           act.Tier,
			CompletionTime: act.CompletionTime,
			Completed:      act.Completed,
		})
	}
	if !act.Completed {
		return
	}
	s.Points += act.Points
	if act.CreatureID > 0 {
		s.OwnedCreatures = append(s.OwnedCreatures, act.CreatureID)
	}
}

func raiseFrontier(s *models.ProgressionSnapshot, level int) {
	if level > s.HighestUnlockedLevel {
		s.HighestUnlockedLevel = level
	}
}

// IsLevelUnlocked reports whether level is at or below the frontier
func IsLevelUnlocked(s models.ProgressionSnapshot, level int) bool {
	return level <= s.HighestUnlockedLevel
}

// IsNewRecord reports whether completionTime would beat the stored best time
func IsNewRecord(best *int, completionTime int) bool {
	return best == nil || completionTime < *best
}
