package engine

import (
	"math"
	"strings"
	"time"

	"github.com/hyakumasu/pokedrill/internal/models"
)

// Status is the lifecycle position of the session state machine
type Status int

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusCompleted
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "not_started"
	}
}

// State is the whole session machine state. It is replaced, never edited in place.
type State struct {
	Session   *models.Session // nil when no session exists
	Remaining int             // seconds left on the clock
	TimedOut  bool
}

// Status derives the lifecycle status from the state
func (s State) Status() Status {
	switch {
	case s.Session == nil:
		return StatusNotStarted
	case s.Session.IsCompleted:
		return StatusCompleted
	case s.TimedOut:
		return StatusTimedOut
	default:
		return StatusInProgress
	}
}

// Terminal reports whether the session finished one way or another
func (s State) Terminal() bool {
	st := s.Status()
	return st == StatusCompleted || st == StatusTimedOut
}

// Action is an input to Reduce
type Action interface {
	isAction()
}

// Start replaces any current session with a freshly built one
type Start struct {
	Session models.Session
}

// SubmitAnswer answers one cell
type SubmitAnswer struct {
	Row, Col int
	Answer   int
	At       time.Time
}

// GuessName guesses the hidden creature's name
type GuessName struct {
	Guess string
	At    time.Time
}

// Tick recomputes the clock from the session start time
type Tick struct {
	Now time.Time
}

// End discards the session
type End struct{}

func (Start) isAction()        {}
func (SubmitAnswer) isAction() {}
func (GuessName) isAction()    {}
func (Tick) isAction()         {}
func (End) isAction()          {}

// Reduce is the pure transition function of the session machine.
// Same state and action always produce the same next state; the input is never modified.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case Start:
		sess := act.Session
		sess.Mistakes = 0
		sess.IsCompleted = false
		sess.CompletedAt = nil
		return State{Session: &sess, Remaining: sess.TimeLimit}
	case SubmitAnswer:
		return submitAnswer(s, act)
	case GuessName:
		return guessName(s, act)
	case Tick:
		return tick(s, act.Now)
	case End:
		return State{}
	default:
		return s
	}
}

func submitAnswer(s State, act SubmitAnswer) State {
	if s.Status() != StatusInProgress {
		return s
	}
	if act.Row < 0 || act.Row >= models.GridSize || act.Col < 0 || act.Col >= models.GridSize {
		return s
	}
	if s.Session.Cells[act.Row][act.Col].IsRevealed {
		return s
	}

	next := *s.Session
	cell := next.Cells[act.Row][act.Col]
	answer := act.Answer
	cell.UserAnswer = &answer

	if answer == cell.Problem.Answer {
		cell.IsCorrect = models.BoolPtr(true)
		cell.IsRevealed = true
	} else {
		cell.IsCorrect = models.BoolPtr(false)
		next.Mistakes++
	}
	next.Cells[act.Row][act.Col] = cell

	markCompletion(&next, act.At)
	return State{Session: &next, Remaining: s.Remaining, TimedOut: s.TimedOut}
}

func guessName(s State, act GuessName) State {
	if s.Status() != StatusInProgress {
		return s
	}

	next := *s.Session
	if !MatchesName(next.Creature, act.Guess) {
		next.Mistakes++
		return State{Session: &next, Remaining: s.Remaining, TimedOut: s.TimedOut}
	}

	for r := range next.Cells {
		for c := range next.Cells[r] {
			cell := next.Cells[r][c]
			if cell.IsRevealed {
				continue
			}
			if cell.UserAnswer == nil {
				cell.UserAnswer = models.IntPtr(cell.Problem.Answer)
			}
			cell.IsCorrect = models.BoolPtr(true)
			cell.IsRevealed = true
			next.Cells[r][c] = cell
		}
	}
	markCompletion(&next, act.At)
	return State{Session: &next, Remaining: s.Remaining, TimedOut: s.TimedOut}
}

func tick(s State, now time.Time) State {
	if s.Status() != StatusInProgress {
		return s
	}
	remaining := Remaining(s.Session.StartTime, s.Session.TimeLimit, now)
	if remaining <= 0 {
		return State{Session: s.Session, Remaining: 0, TimedOut: true}
	}
	return State{Session: s.Session, Remaining: remaining}
}

func markCompletion(sess *models.Session, at time.Time) {
	sess.IsCompleted = sess.AllRevealed()
	if sess.IsCompleted && sess.CompletedAt == nil {
		if at.IsZero() {
			at = time.Now()
		}
		sess.CompletedAt = &at
	}
}

// MatchesName compares a guess against the creature's localized and canonical
// names, ignoring case and surrounding whitespace.
func MatchesName(c models.Creature, guess string) bool {
	g := strings.TrimSpace(guess)
	if g == "" {
		return false
	}
	for _, name := range []string{c.LocalizedName, c.Name} {
		if n := strings.TrimSpace(name); n != "" && strings.EqualFold(g, n) {
			return true
		}
	}
	return false
}

// Elapsed returns whole seconds since startAt; zero before start.
//
// Formula: floor((now - startAt) / 1s)
func Elapsed(startAt time.Time, now time.Time) int {
	if now.Before(startAt) {
		return 0
	}
	return int(math.Floor(now.Sub(startAt).Seconds()))
}

// Remaining returns the seconds left on a clock of limit seconds started at startAt.
// It is computed from the start time every call, so missed ticks never cause drift.
func Remaining(startAt time.Time, limit int, now time.Time) int {
	left := limit - Elapsed(startAt, now)
	if left < 0 {
		return 0
	}
	return left
}

// CompletionTime returns the seconds taken to complete the session, or nil when it is not complete.
func CompletionTime(s State, now time.Time) *int {
	if s.Session == nil || !s.Session.IsCompleted {
		return nil
	}
	end := now
	if s.Session.CompletedAt != nil {
		end = *s.Session.CompletedAt
	}
	secs := Elapsed(s.Session.StartTime, end)
	return &secs
}
