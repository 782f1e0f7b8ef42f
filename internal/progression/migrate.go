package progression

import (
	"slices"

	"github.com/hyakumasu/pokedrill/internal/models"
)

// tierMapping says where a legacy tier lands in the level system
type tierMapping struct {
	level    int
	stars    int
	frontier int
}

var tierMappings = map[models.Tier]tierMapping{
	models.TierEasy:   {level: 3, stars: 1, frontier: 5},
	models.TierNormal: {level: 8, stars: 2, frontier: 10},
	models.TierHard:   {level: 13, stars: 3, frontier: 15},
}

// NeedsMigration reports whether legacy tier stats have plays but no level stats exist yet
func NeedsMigration(s models.ProgressionSnapshot) bool {
	if len(s.LevelStats) > 0 {
		return false
	}
	for _, st := range s.Stats {
		if st.TotalPlays > 0 {
			return true
		}
	}
	return false
}

// Migrate converts legacy tier stats into level stats. It returns the snapshot
// unchanged when there is nothing to migrate, so calling it twice is safe.
func Migrate(s models.ProgressionSnapshot) models.ProgressionSnapshot {
	if !NeedsMigration(s) {
		return s
	}

	next := s.Clone()
	for _, tier := range models.Tiers {
		st := s.Stats[tier]
		if st.TotalPlays == 0 {
			continue
		}
		m := tierMappings[tier]
		ls := models.LevelStats{
			Level:      m.level,
			BestTime:   st.BestTime,
			TotalPlays: st.TotalPlays,
			Cleared:    st.FirstClearAchieved,
		}
		if st.FirstClearAchieved {
			ls.Stars = m.stars
		}
		if ls.BestTime != nil {
			ls.BestTime = models.IntPtr(*ls.BestTime)
		}
		next.LevelStats[m.level] = ls
		raiseFrontier(&next, m.frontier)
	}
	return next
}

// Normalize repairs loaded data: nil collections, a frontier below 1 and
// duplicate creature ids left behind by older versions.
func Normalize(s models.ProgressionSnapshot) models.ProgressionSnapshot {
	next := s.Clone()
	for _, tier := range models.Tiers {
		if _, ok := next.Stats[tier]; !ok {
			next.Stats[tier] = models.TierStats{}
		}
	}
	if next.HighestUnlockedLevel < 1 {
		next.HighestUnlockedLevel = 1
	}
	next.OwnedCreatures = dedup(next.OwnedCreatures)
	return next
}

// dedup keeps the first occurrence of every id
func dedup(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return slices.Clip(out)
}
