package progression

import (
	"context"
	"errors"
	"testing"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T, seed string) (*Store, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore(nil)
	if seed != "" {
		mem.Seed([]byte(seed))
	}
	s, err := Open(context.Background(), mem, nil)
	require.NoError(t, err)
	return s, mem
}

func TestReduce_SpendPoints(t *testing.T) {
	t.Parallel()

	base := models.NewProgressionSnapshot()
	base.Points = 100

	tests := []struct {
		name    string
		n       int
		want    int
		wantErr error
	}{
		{"partial", 40, 60, nil},
		{"all", 100, 0, nil},
		{"zero", 0, 100, nil},
		{"too much", 101, 100, ErrInsufficientFunds},
		{"negative", -1, 100, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Reduce(base, SpendPoints{N: tt.n})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, next.Points)
			assert.Equal(t, 100, base.Points, "input must not change")
		})
	}
}

func TestReduce_AddPointsAndCreatures(t *testing.T) {
	t.Parallel()

	s := models.NewProgressionSnapshot()
	s, err := Reduce(s, AddPoints{N: 1_000_000})
	require.NoError(t, err)
	assert.Equal(t, 1_000_000, s.Points)

	s, _ = Reduce(s, AddCreature{ID: 25})
	s, _ = Reduce(s, AddCreature{ID: 25})
	assert.Equal(t, []int{25, 25}, s.OwnedCreatures, "duplicates are kept on add")
}

func TestReduce_UpdateLevelStats(t *testing.T) {
	t.Parallel()

	s := models.NewProgressionSnapshot()

	s, _ = Reduce(s, UpdateLevelStats{Level: 4, CompletionTime: 200, Completed: false})
	st := s.LevelStats[4]
	assert.Equal(t, 1, st.TotalPlays)
	assert.False(t, st.Cleared)
	assert.Nil(t, st.BestTime)
	assert.Equal(t, 1, s.HighestUnlockedLevel)

	s, _ = Reduce(s, UpdateLevelStats{Level: 4, CompletionTime: 180, Completed: true, Stars: 2})
	st = s.LevelStats[4]
	assert.Equal(t, 2, st.TotalPlays)
	assert.True(t, st.Cleared)
	require.NotNil(t, st.BestTime)
	assert.Equal(t, 180, *st.BestTime)
	assert.Equal(t, 2, st.Stars)
	assert.Equal(t, 5, s.HighestUnlockedLevel)

	// slower, fewer stars, failed: nothing regresses
	s, _ = Reduce(s, UpdateLevelStats{Level: 4, CompletionTime: 250, Completed: true, Stars: 1})
	s, _ = Reduce(s, UpdateLevelStats{Level: 4, CompletionTime: 90, Completed: false})
	st = s.LevelStats[4]
	assert.Equal(t, 4, st.TotalPlays)
	assert.True(t, st.Cleared)
	assert.Equal(t, 180, *st.BestTime)
	assert.Equal(t, 2, st.Stars)

	s, _ = Reduce(s, UpdateLevelStats{Level: 4, CompletionTime: 150, Completed: true, Stars: 3})
	assert.Equal(t, 150, *s.LevelStats[4].BestTime)
	assert.Equal(t, 3, s.LevelStats[4].Stars)
}

func TestReduce_FrontierRules(t *testing.T) {
	t.Parallel()

	s := models.NewProgressionSnapshot()
	s, _ = Reduce(s, UnlockLevel{Level: 12})
	assert.Equal(t, 12, s.HighestUnlockedLevel)

	// clearing a lower level never lowers the frontier
	s, _ = Reduce(s, UpdateLevelStats{Level: 2, CompletionTime: 100, Completed: true, Stars: 3})
	assert.Equal(t, 12, s.HighestUnlockedLevel)

	s, _ = Reduce(s, UnlockLevel{Level: 3})
	assert.Equal(t, 12, s.HighestUnlockedLevel)

	s, _ = Reduce(s, UpdateLevelStats{Level: 20, CompletionTime: 100, Completed: true, Stars: 1})
	assert.Equal(t, 20, s.HighestUnlockedLevel)

	assert.True(t, IsLevelUnlocked(s, 20))
	assert.False(t, IsLevelUnlocked(s, 21))
}

func TestReduce_ClearLevelTwenty(t *testing.T) {
	t.Parallel()

	s := models.NewProgressionSnapshot()
	s.HighestUnlockedLevel = 20
	s, _ = Reduce(s, UpdateLevelStats{Level: 20, CompletionTime: 100, Completed: true, Stars: 1})
	assert.Equal(t, 20, s.HighestUnlockedLevel)
}

func TestReduce_UpdateTierStats(t *testing.T) {
	t.Parallel()

	s := models.NewProgressionSnapshot()
	s, _ = Reduce(s, UpdateTierStats{Tier: models.TierHard, CompletionTime: 400, Completed: true})
	s, _ = Reduce(s, UpdateTierStats{Tier: models.TierHard, CompletionTime: 500, Completed: true})
	s, _ = Reduce(s, UpdateTierStats{Tier: models.TierHard, CompletionTime: 100, Completed: false})

	st := s.Stats[models.TierHard]
	assert.Equal(t, 3, st.TotalPlays)
	assert.True(t, st.FirstClearAchieved)
	assert.Equal(t, 400, *st.BestTime)
}

func TestReduce_RecordSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		action     RecordSession
		wantPoints int
		wantOwned  []int
		check      func(t *testing.T, s models.ProgressionSnapshot)
	}{
		{
			name:       "cleared level",
			action:     RecordSession{Level: 1, CompletionTime: 60, Completed: true, Stars: 3, Points: 400, CreatureID: 25},
			wantPoints: 400,
			wantOwned:  []int{25},
			check: func(t *testing.T, s models.ProgressionSnapshot) {
				st := s.LevelStats[1]
				assert.Equal(t, 1, st.TotalPlays)
				assert.True(t, st.Cleared)
				assert.Equal(t, 3, st.Stars)
				assert.Equal(t, 2, s.HighestUnlockedLevel)
			},
		},
		{
			name:       "abandoned level pays nothing",
			action:     RecordSession{Level: 1, CompletionTime: 300, Points: 400, CreatureID: 25},
			wantPoints: 0,
			wantOwned:  []int{},
			check: func(t *testing.T, s models.ProgressionSnapshot) {
				assert.Equal(t, 1, s.LevelStats[1].TotalPlays)
				assert.False(t, s.LevelStats[1].Cleared)
			},
		},
		{
			name:       "legacy tier",
			action:     RecordSession{Tier: models.TierNormal, CompletionTime: 90, Completed: true, Points: 150, CreatureID: 7},
			wantPoints: 150,
			wantOwned:  []int{7},
			check: func(t *testing.T, s models.ProgressionSnapshot) {
				st := s.Stats[models.TierNormal]
				assert.Equal(t, 1, st.TotalPlays)
				assert.True(t, st.FirstClearAchieved)
				assert.Empty(t, s.LevelStats)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Reduce(models.NewProgressionSnapshot(), tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPoints, next.Points)
			assert.Equal(t, tt.wantOwned, next.OwnedCreatures)
			tt.check(t, next)
		})
	}
}

func TestMigrate_EasyExample(t *testing.T) {
	t.Parallel()

	legacy := `{"stats":{"easy":{"totalPlays":5,"firstClearAchieved":true,"bestTime":250}}}`
	s, mem := openMemory(t, legacy)

	snap := s.Snapshot()
	assert.Equal(t, models.LevelStats{Level: 3, BestTime: models.IntPtr(250), TotalPlays: 5, Cleared: true, Stars: 1},
		snap.LevelStats[3])
	assert.Len(t, snap.LevelStats, 1)
	assert.Equal(t, 5, snap.HighestUnlockedLevel)
	assert.Equal(t, 1, mem.Saves(), "migration is persisted immediately")

	// second load is a no-op
	again, err := Open(context.Background(), mem, nil)
	require.NoError(t, err)
	assert.Equal(t, snap, again.Snapshot())
	assert.Equal(t, 1, mem.Saves())
}

func TestMigrate_AllTiers(t *testing.T) {
	t.Parallel()

	s := models.NewProgressionSnapshot()
	s.Stats[models.TierEasy] = models.TierStats{TotalPlays: 2}
	s.Stats[models.TierNormal] = models.TierStats{TotalPlays: 1, FirstClearAchieved: true, BestTime: models.IntPtr(300)}
	s.Stats[models.TierHard] = models.TierStats{TotalPlays: 3}

	got := Migrate(s)

	assert.Equal(t, 0, got.LevelStats[3].Stars, "uncleared tier gets no stars")
	assert.False(t, got.LevelStats[3].Cleared)
	assert.Equal(t, 2, got.LevelStats[8].Stars)
	assert.Equal(t, 0, got.LevelStats[13].Stars)
	assert.Equal(t, 3, got.LevelStats[13].TotalPlays)
	assert.Equal(t, 15, got.HighestUnlockedLevel)
	assert.Empty(t, s.LevelStats, "input must not change")
}

func TestMigrate_KeepsHigherFrontier(t *testing.T) {
	t.Parallel()

	s := models.NewProgressionSnapshot()
	s.Stats[models.TierEasy] = models.TierStats{TotalPlays: 1, FirstClearAchieved: true}
	s.HighestUnlockedLevel = 9

	assert.Equal(t, 9, Migrate(s).HighestUnlockedLevel)
}

func TestMigrate_SkippedWhenLevelStatsExist(t *testing.T) {
	t.Parallel()

	s := models.NewProgressionSnapshot()
	s.Stats[models.TierHard] = models.TierStats{TotalPlays: 3, FirstClearAchieved: true}
	s.LevelStats[1] = models.LevelStats{Level: 1, TotalPlays: 1}

	assert.False(t, NeedsMigration(s))
	assert.Equal(t, s, Migrate(s))
}

func TestMigrate_NothingToMigrate(t *testing.T) {
	t.Parallel()

	s := models.NewProgressionSnapshot()
	assert.False(t, NeedsMigration(s))

	_, mem := openMemory(t, "")
	assert.Equal(t, 0, mem.Saves(), "fresh load does not write")
}

func TestOpen_DedupsCreatures(t *testing.T) {
	t.Parallel()

	s, mem := openMemory(t, `{"points":10,"ownedCreatures":[4,7,4,150,7],"highestUnlockedLevel":0}`)

	snap := s.Snapshot()
	assert.Equal(t, []int{4, 7, 150}, snap.OwnedCreatures)
	assert.Equal(t, 1, snap.HighestUnlockedLevel)
	assert.Equal(t, 1, mem.Saves())
}

func TestOpen_LoadError(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore(nil)
	mem.Seed([]byte("not json"))

	_, err := Open(context.Background(), mem, nil)
	assert.Error(t, err)
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, mem := openMemory(t, "")

	require.NoError(t, s.AddPoints(ctx, 300))
	require.NoError(t, s.SpendPoints(ctx, 100))
	require.NoError(t, s.AddCreature(ctx, 133))
	require.NoError(t, s.UpdateLevelStats(ctx, 1, 120, true, 3))
	require.NoError(t, s.UpdateTierStats(ctx, models.TierEasy, 100, true))
	require.NoError(t, s.UnlockLevel(ctx, 7))
	assert.Equal(t, 6, mem.Saves())

	stored, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), stored)
	assert.Equal(t, 200, stored.Points)
	assert.True(t, s.IsLevelUnlocked(7))
	assert.False(t, s.IsLevelUnlocked(8))
}

func TestStore_RejectedSpendSavesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, mem := openMemory(t, "")
	require.NoError(t, s.AddPoints(ctx, 50))

	assert.ErrorIs(t, s.SpendPoints(ctx, 100), ErrInsufficientFunds)
	assert.ErrorIs(t, s.SpendPoints(ctx, -5), ErrInvalidAmount)
	assert.Equal(t, 50, s.Snapshot().Points)
	assert.Equal(t, 1, mem.Saves())
}

func TestStore_SaveErrorPropagates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, mem := openMemory(t, "")
	boom := errors.New("backend down")
	mem.FailWith(boom)

	err := s.AddPoints(ctx, 10)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 10, s.Snapshot().Points)
}

func TestStore_QuotaErrorIsRecovered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, mem := openMemory(t, "")
	mem.QuotaFaults(1)

	require.NoError(t, s.AddCreature(ctx, 1))
	assert.Equal(t, 1, mem.Evictions())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := openMemory(t, "")
	require.NoError(t, s.AddCreature(ctx, 9))

	snap := s.Snapshot()
	snap.OwnedCreatures[0] = 999
	snap.LevelStats[1] = models.LevelStats{Level: 1}

	fresh := s.Snapshot()
	assert.Equal(t, []int{9}, fresh.OwnedCreatures)
	assert.Empty(t, fresh.LevelStats)
}

func TestIsNewRecord(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNewRecord(nil, 300))
	assert.True(t, IsNewRecord(models.IntPtr(301), 300))
	assert.False(t, IsNewRecord(models.IntPtr(300), 300))
}

func TestStore_PersistAfterFailedSave(t *testing.T) {
	t.Parallel()

	s, mem := openMemory(t, "")
	ctx := context.Background()

	mem.FailWith(errors.New("disk unplugged"))
	err := s.RecordSession(ctx, RecordSession{Level: 1, CompletionTime: 60, Completed: true, Stars: 3, Points: 400, CreatureID: 25})
	require.Error(t, err)
	assert.Equal(t, 400, s.Snapshot().Points, "in-memory state keeps the mutation")

	require.Error(t, s.Persist(ctx))

	mem.FailWith(nil)
	require.NoError(t, s.Persist(ctx))

	reopened, err := Open(ctx, mem, nil)
	require.NoError(t, err)
	assert.Equal(t, 400, reopened.Snapshot().Points)
	assert.Equal(t, 1, reopened.Snapshot().LevelStats[1].TotalPlays)
}
