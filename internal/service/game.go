package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hyakumasu/pokedrill/internal/creature"
	"github.com/hyakumasu/pokedrill/internal/engine"
	"github.com/hyakumasu/pokedrill/internal/gacha"
	"github.com/hyakumasu/pokedrill/internal/levels"
	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/progression"
	"github.com/hyakumasu/pokedrill/internal/reward"
	"github.com/hyakumasu/pokedrill/internal/session"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

var (
	// ErrLevelLocked is returned when starting a level above the frontier
	ErrLevelLocked = errors.New("level is locked")
	// ErrInvalidLevel is returned for level numbers outside 1..20
	ErrInvalidLevel = errors.New("invalid level")
	// ErrNoSession is returned when there is no session to finish
	ErrNoSession = errors.New("no session")
	// ErrSessionInProgress is returned when finishing a session that is still running
	ErrSessionInProgress = errors.New("session still in progress")
)

// FinishResult is what a finished session earned
type FinishResult struct {
	SessionID      string                     `json:"sessionId"`
	Completed      bool                       `json:"completed"`
	CompletionTime *int                       `json:"completionTime"`
	Stars          int                        `json:"stars"`
	FirstClear     bool                       `json:"firstClear"`
	NewRecord      bool                       `json:"newRecord"`
	Rewards        []models.Reward            `json:"rewards"`
	TotalPoints    int                        `json:"totalPoints"`
	Progress       models.ProgressionSnapshot `json:"progress"`
}

// LevelView is one level as the player sees it
type LevelView struct {
	Config   models.LevelConfig `json:"config"`
	Unlocked bool               `json:"unlocked"`
	Stats    *models.LevelStats `json:"stats,omitempty"`
}

// GameService handles game-related business logic
type GameService struct {
	machine  *session.Machine
	progress *progression.Store
	gacha    *gacha.Engine
	rewards  *reward.Calculator
	levels   *levels.Service
	source   creature.Source
	logger   *logger.Logger

	// mu serializes recording so a session is counted once
	mu   sync.Mutex
	last *finished
}

// finished is the most recently recorded session. Its outcome is fixed
// before progression changes, so a retry after a failed save repeats nothing.
type finished struct {
	result  FinishResult
	record  progression.RecordSession
	applied bool // progression holds the record in memory
	saved   bool
}

// NewGameService creates a new game service
func NewGameService(
	machine *session.Machine,
	progress *progression.Store,
	gachaEngine *gacha.Engine,
	rewards *reward.Calculator,
	lv *levels.Service,
	source creature.Source,
	log *logger.Logger,
) *GameService {
	if log == nil {
		log = logger.Nop()
	}
	return &GameService{
		machine:  machine,
		progress: progress,
		gacha:    gachaEngine,
		rewards:  rewards,
		levels:   lv,
		source:   source,
		logger:   log,
	}
}

// StartSession starts a new session, replacing any current one
func (s *GameService) StartSession(ctx context.Context, sel models.Selector) (engine.State, error) {
	if sel.IsLevel() && levels.Valid(sel.Level) && !s.progress.IsLevelUnlocked(sel.Level) {
		return engine.State{}, fmt.Errorf("level %d: %w", sel.Level, ErrLevelLocked)
	}
	prev, next, err := s.machine.Replace(ctx, sel)
	if err != nil {
		return engine.State{}, err
	}
	s.settle(ctx, prev)
	return next, nil
}

// Current returns the current session state
func (s *GameService) Current() engine.State {
	return s.machine.State()
}

// SubmitAnswer answers one cell of the current session
func (s *GameService) SubmitAnswer(row, col, answer int) engine.State {
	return s.machine.SubmitAnswer(row, col, answer)
}

// GuessName guesses the hidden creature of the current session
func (s *GameService) GuessName(guess string) (bool, engine.State) {
	ok := s.machine.GuessName(guess)
	return ok, s.machine.State()
}

// Subscribe streams session states; see session.Machine.Subscribe
func (s *GameService) Subscribe() (<-chan engine.State, func()) {
	return s.machine.Subscribe()
}

// EndSession discards the current session. A session that was still
// running counts as an uncleared play.
func (s *GameService) EndSession(ctx context.Context) {
	s.settle(ctx, s.machine.Discard())
}

// Finish records a completed or timed-out session into progression and pays
// out its rewards. Finishing the same session again returns the first result;
// after a failed save it only retries the save.
func (s *GameService) Finish(ctx context.Context) (FinishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.machine.State()
	switch st.Status() {
	case engine.StatusNotStarted:
		return FinishResult{}, ErrNoSession
	case engine.StatusInProgress:
		return FinishResult{}, ErrSessionInProgress
	}
	return s.finishLocked(ctx, st)
}

// settle records a session that left the machine without Finish. Errors are
// logged only: the session is already gone.
func (s *GameService) settle(ctx context.Context, st engine.State) {
	if st.Session == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.finishLocked(ctx, st); err != nil {
		s.logger.Warn("Failed to record dropped session",
			logger.F("session_id", st.Session.ID),
			logger.F("error", err.Error()))
	}
}

func (s *GameService) finishLocked(ctx context.Context, st engine.State) (FinishResult, error) {
	if s.last == nil || s.last.result.SessionID != st.Session.ID {
		s.last = s.outcome(st)
	}
	f := s.last
	if f.saved {
		return f.result, nil
	}

	var err error
	if f.applied {
		err = s.progress.Persist(ctx)
	} else {
		// RecordSession is never rejected, so an error here is a failed save
		// of a snapshot that already changed in memory.
		err = s.progress.RecordSession(ctx, f.record)
		f.applied = true
	}
	if err != nil {
		return FinishResult{}, fmt.Errorf("failed to record session: %w", err)
	}
	f.saved = true
	f.result.Progress = s.progress.Snapshot()

	s.logger.Info("Session recorded",
		logger.F("session_id", f.result.SessionID),
		logger.F("completed", strconv.FormatBool(f.result.Completed)),
		logger.F("stars", strconv.Itoa(f.result.Stars)),
		logger.F("points", strconv.Itoa(f.result.TotalPoints)))
	return f.result, nil
}

// outcome computes what st earns against the current progression. A session
// that never ended counts as an uncleared play over its whole time limit.
func (s *GameService) outcome(st engine.State) *finished {
	sess := st.Session
	completed := sess.IsCompleted
	elapsed := sess.TimeLimit
	res := FinishResult{SessionID: sess.ID, Completed: completed, Rewards: []models.Reward{}}
	if completed {
		ct := engine.CompletionTime(st, time.Now())
		elapsed = *ct
		res.CompletionTime = ct
	}
	res.Stars = reward.Stars(completed, elapsed, sess.TimeLimit, sess.Mistakes)

	before := s.progress.Snapshot()
	if sess.Selector().IsLevel() {
		prev := before.LevelStats[sess.Level]
		res.FirstClear = completed && !prev.Cleared
		res.NewRecord = completed && progression.IsNewRecord(prev.BestTime, elapsed)
	} else {
		prev := before.Stats[sess.Tier]
		res.FirstClear = completed && !prev.FirstClearAchieved
		res.NewRecord = completed && progression.IsNewRecord(prev.BestTime, elapsed)
	}

	rec := progression.RecordSession{
		Level:          sess.Level,
		Tier:           sess.Tier,
		CompletionTime: elapsed,
		Completed:      completed,
		Stars:          res.Stars,
	}
	if completed {
		cr := sess.Creature
		res.Rewards = s.rewards.Calculate(reward.Params{
			Level:          sess.Level,
			Tier:           sess.Tier,
			IsFirstClear:   res.FirstClear,
			IsNewRecord:    res.NewRecord,
			Mistakes:       sess.Mistakes,
			CompletionTime: elapsed,
			Creature:       &cr,
		})
		res.TotalPoints = reward.Total(res.Rewards)
		rec.Points = res.TotalPoints
		rec.CreatureID = cr.ID
	}
	return &finished{result: res, record: rec}
}

// Pull runs one gacha pull at the player's frontier level. The creature is
// resolved first; points are spent and the creature added only on success.
func (s *GameService) Pull(ctx context.Context) (gacha.PullResult, error) {
	snap := s.progress.Snapshot()

	res, err := s.gacha.Pull(ctx, snap.Points, snap.HighestUnlockedLevel)
	if err != nil || !res.Success {
		return res, err
	}

	if err := s.progress.SpendPoints(ctx, gacha.PullCost); err != nil {
		return gacha.PullResult{Success: false, RemainingPoints: s.progress.Snapshot().Points}, err
	}
	if err := s.progress.AddCreature(ctx, res.Creature.ID); err != nil {
		return res, fmt.Errorf("failed to add creature: %w", err)
	}

	res.RemainingPoints = s.progress.Snapshot().Points
	return res, nil
}

// Progress returns the player's progression
func (s *GameService) Progress() models.ProgressionSnapshot {
	return s.progress.Snapshot()
}

// Levels lists every level with its unlock state and stats
func (s *GameService) Levels() []LevelView {
	snap := s.progress.Snapshot()
	all := s.levels.All()

	out := make([]LevelView, 0, len(all))
	for _, cfg := range all {
		v := LevelView{Config: cfg, Unlocked: progression.IsLevelUnlocked(snap, cfg.Level)}
		if st, ok := snap.LevelStats[cfg.Level]; ok {
			v.Stats = &st
		}
		out = append(out, v)
	}
	return out
}

// UnlockLevel raises the frontier to level
func (s *GameService) UnlockLevel(ctx context.Context, level int) (models.ProgressionSnapshot, error) {
	if !levels.Valid(level) {
		return models.ProgressionSnapshot{}, fmt.Errorf("level %d: %w", level, ErrInvalidLevel)
	}
	if err := s.progress.UnlockLevel(ctx, level); err != nil {
		return models.ProgressionSnapshot{}, err
	}
	return s.progress.Snapshot(), nil
}

// Collection resolves the owned creatures in collection order
func (s *GameService) Collection(ctx context.Context) ([]models.Creature, error) {
	ids := s.progress.Snapshot().OwnedCreatures
	creatures, err := s.source.FetchMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve collection: %w", err)
	}
	return creatures, nil
}
