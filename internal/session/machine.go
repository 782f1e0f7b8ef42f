package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyakumasu/pokedrill/internal/creature"
	"github.com/hyakumasu/pokedrill/internal/engine"
	"github.com/hyakumasu/pokedrill/internal/levels"
	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/problem"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

var (
	// ErrClosed is returned by Start after Close
	ErrClosed = errors.New("session machine closed")
	// ErrInvalidSelector is returned when neither a valid level nor a valid tier is given
	ErrInvalidSelector = errors.New("invalid level or tier")
)

// subscriberBuffer is how many states a slow subscriber may fall behind before updates are dropped
const subscriberBuffer = 8

// Machine owns the single live session. All transitions go through engine.Reduce
// under one mutex; the clock runs in a goroutine that is stopped whenever the
// session ends, completes, times out or the machine is closed.
type Machine struct {
	source creature.Source
	gen    *problem.Generator
	levels *levels.Service
	clock  func() time.Time
	tick   time.Duration
	logger *logger.Logger

	mu     sync.Mutex
	state  engine.State
	closed bool

	// generation identifies the running timer; ticks from an older one are ignored
	generation uint64
	stop       chan struct{}
	timers     sync.WaitGroup

	subs   map[int]chan engine.State
	nextID int
}

// NewMachine creates a machine. A nil clock uses time.Now; a non-positive tick uses one second.
func NewMachine(source creature.Source, gen *problem.Generator, lv *levels.Service, clock func() time.Time, tick time.Duration, log *logger.Logger) *Machine {
	if clock == nil {
		clock = time.Now
	}
	if tick <= 0 {
		tick = time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Machine{
		source: source,
		gen:    gen,
		levels: lv,
		clock:  clock,
		tick:   tick,
		logger: log,
		subs:   make(map[int]chan engine.State),
	}
}

// Start resolves a creature and then replaces any current session with a new one.
// The creature lookup runs without holding the lock; a failed lookup leaves the
// current state untouched and returns the source's error.
func (m *Machine) Start(ctx context.Context, sel models.Selector) (engine.State, error) {
	_, next, err := m.Replace(ctx, sel)
	return next, err
}

// Replace is Start that also returns the state it replaced, so callers can
// account for a session that was dropped unfinished.
func (m *Machine) Replace(ctx context.Context, sel models.Selector) (prev, next engine.State, err error) {
	if err := validate(sel); err != nil {
		return engine.State{}, engine.State{}, err
	}
	if m.isClosed() {
		return engine.State{}, engine.State{}, ErrClosed
	}

	cr, err := m.source.FetchRandom(ctx, sel.Level)
	if err != nil {
		m.logger.Error("Failed to resolve session creature", logger.F("error", err.Error()))
		return engine.State{}, engine.State{}, fmt.Errorf("failed to resolve creature: %w", err)
	}

	sess := m.build(sel, cr)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return engine.State{}, engine.State{}, ErrClosed
	}
	prev = copyState(m.state)
	m.stopTimerLocked()
	m.state = engine.Reduce(m.state, engine.Start{Session: sess})
	m.startTimerLocked()
	m.publishLocked()

	m.logger.Info("Session started",
		logger.F("session_id", sess.ID),
		logger.F("level", strconv.Itoa(sess.Level)),
		logger.F("tier", string(sess.Tier)),
		logger.F("creature_id", strconv.Itoa(cr.ID)))
	return prev, copyState(m.state), nil
}

func validate(sel models.Selector) error {
	switch {
	case sel.Level != 0 && sel.Tier != "":
		return ErrInvalidSelector
	case sel.IsLevel():
		if !levels.Valid(sel.Level) {
			return ErrInvalidSelector
		}
	case !sel.Tier.Valid():
		return ErrInvalidSelector
	}
	return nil
}

func (m *Machine) build(sel models.Selector, cr models.Creature) models.Session {
	h := m.gen.Headers(sel)
	grid := m.gen.Grid(h)

	sess := models.Session{
		ID:           "sess_" + uuid.New().String(),
		Level:        sel.Level,
		Tier:         sel.Tier,
		Creature:     cr,
		Operator:     h.Operator,
		HeaderRow:    h.Row,
		HeaderColumn: h.Column,
		StartTime:    m.clock(),
	}
	if sel.IsLevel() {
		sess.TimeLimit = m.levels.Config(sel.Level).TimeLimit
	} else {
		sess.TimeLimit = levels.TierTimeLimit(sel.Tier)
	}
	for r := range grid {
		for c := range grid[r] {
			sess.Cells[r][c] = models.CellState{Problem: grid[r][c]}
		}
	}
	return sess
}

// SubmitAnswer answers the cell at row, col. It is a no-op without a running session.
func (m *Machine) SubmitAnswer(row, col, answer int) engine.State {
	return m.dispatch(engine.SubmitAnswer{Row: row, Col: col, Answer: answer, At: m.clock()})
}

// GuessName guesses the hidden creature and reports whether the guess was right.
// The answer is reported for finished sessions too; only a running session changes.
func (m *Machine) GuessName(guess string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Session == nil {
		return false
	}
	matched := engine.MatchesName(m.state.Session.Creature, guess)
	if m.state.Status() == engine.StatusInProgress {
		m.applyLocked(engine.GuessName{Guess: guess, At: m.clock()})
	}
	return matched
}

// End discards the current session and stops the clock
func (m *Machine) End() {
	m.Discard()
}

// Discard is End that returns the discarded state
func (m *Machine) Discard() engine.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := copyState(m.state)
	m.applyLocked(engine.End{})
	return prev
}

// State returns a copy of the current state
func (m *Machine) State() engine.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyState(m.state)
}

// CompletionTime returns the seconds taken by a completed session, nil otherwise
func (m *Machine) CompletionTime() *int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return engine.CompletionTime(m.state, m.clock())
}

// Subscribe returns a channel receiving the state after every transition and
// a function that cancels the subscription. Updates are dropped when the
// channel is full.
func (m *Machine) Subscribe() (<-chan engine.State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan engine.State, subscriberBuffer)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Close stops the clock, closes every subscription and waits for the timer goroutine to exit.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stopTimerLocked()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.mu.Unlock()

	m.timers.Wait()
}

func (m *Machine) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Machine) dispatch(a engine.Action) engine.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(a)
	return copyState(m.state)
}

// applyLocked reduces, publishes and stops the clock once nothing is running.
func (m *Machine) applyLocked(a engine.Action) {
	prev := m.state
	m.state = engine.Reduce(m.state, a)
	if m.state.Status() != engine.StatusInProgress {
		m.stopTimerLocked()
	}
	if m.state != prev {
		m.publishLocked()
	}
}

func (m *Machine) startTimerLocked() {
	m.generation++
	gen := m.generation
	stop := make(chan struct{})
	m.stop = stop

	m.timers.Add(1)
	go func() {
		defer m.timers.Done()
		ticker := time.NewTicker(m.tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !m.onTick(gen) {
					return
				}
			}
		}
	}()
}

// onTick advances the clock of timer gen and reports whether that timer should keep running.
func (m *Machine) onTick(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.closed {
		return false
	}
	m.applyLocked(engine.Tick{Now: m.clock()})
	if m.state.Status() == engine.StatusTimedOut {
		m.logger.Info("Session timed out", logger.F("session_id", m.state.Session.ID))
	}
	return gen == m.generation
}

func (m *Machine) stopTimerLocked() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	m.stop = nil
	m.generation++
}

func (m *Machine) publishLocked() {
	st := copyState(m.state)
	for _, ch := range m.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// copyState detaches the session so callers cannot reach the machine's value
func copyState(s engine.State) engine.State {
	if s.Session != nil {
		sess := *s.Session
		s.Session = &sess
	}
	return s
}
