package engine

import (
	"testing"
	"time"

	"github.com/hyakumasu/pokedrill/internal/models"
)

var testStart = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestSession() models.Session {
	sess := models.Session{
		ID:        "sess_test",
		Level:     1,
		Operator:  models.OpAdd,
		Creature:  models.Creature{ID: 25, Name: "pikachu", LocalizedName: "ピカチュウ"},
		StartTime: testStart,
		TimeLimit: 300,
	}
	for r := 0; r < models.GridSize; r++ {
		sess.HeaderColumn[r] = r
		sess.HeaderRow[r] = r
	}
	for r := 0; r < models.GridSize; r++ {
		for c := 0; c < models.GridSize; c++ {
			sess.Cells[r][c] = models.CellState{Problem: models.Problem{
				Operand1: r, Operand2: c, Operator: models.OpAdd, Answer: r + c,
			}}
		}
	}
	return sess
}

func started() State {
	return Reduce(State{}, Start{Session: newTestSession()})
}

func solveAll(s State) State {
	for r := 0; r < models.GridSize; r++ {
		for c := 0; c < models.GridSize; c++ {
			s = Reduce(s, SubmitAnswer{Row: r, Col: c, Answer: r + c, At: testStart.Add(90 * time.Second)})
		}
	}
	return s
}

func TestElapsed(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		expected int
	}{
		{name: "before start", now: testStart.Add(-1 * time.Second), expected: 0},
		{name: "at start", now: testStart, expected: 0},
		{name: "after 999ms (should floor)", now: testStart.Add(999 * time.Millisecond), expected: 0},
		{name: "after 1s", now: testStart.Add(time.Second), expected: 1},
		{name: "after 90.5s", now: testStart.Add(90500 * time.Millisecond), expected: 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Elapsed(testStart, tt.now); got != tt.expected {
				t.Errorf("Expected elapsed %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	if got := Remaining(testStart, 300, testStart.Add(10*time.Second)); got != 290 {
		t.Errorf("Expected 290, got %d", got)
	}
	if got := Remaining(testStart, 300, testStart.Add(301*time.Second)); got != 0 {
		t.Errorf("Expected remaining to clamp at 0, got %d", got)
	}
}

func TestStart(t *testing.T) {
	sess := newTestSession()
	sess.Mistakes = 7
	sess.IsCompleted = true

	s := Reduce(State{TimedOut: true}, Start{Session: sess})

	if s.Status() != StatusInProgress {
		t.Fatalf("Expected in_progress, got %s", s.Status())
	}
	if s.Session.Mistakes != 0 || s.Session.IsCompleted {
		t.Errorf("Start must reset mistakes and completion, got %+v", s.Session)
	}
	if s.Remaining != 300 || s.TimedOut {
		t.Errorf("Start must reset the clock, got remaining=%d timedOut=%v", s.Remaining, s.TimedOut)
	}
}

func TestSubmitAnswer_Correct(t *testing.T) {
	s := Reduce(started(), SubmitAnswer{Row: 2, Col: 3, Answer: 5})
	cell := s.Session.Cells[2][3]

	if !cell.IsRevealed || cell.IsCorrect == nil || !*cell.IsCorrect {
		t.Fatalf("Expected revealed correct cell, got %+v", cell)
	}
	if *cell.UserAnswer != 5 {
		t.Errorf("Expected user answer 5, got %d", *cell.UserAnswer)
	}
	if s.Session.Mistakes != 0 {
		t.Errorf("Correct answer must not count a mistake, got %d", s.Session.Mistakes)
	}
}

func TestSubmitAnswer_Incorrect(t *testing.T) {
	s := started()
	for i := 1; i <= 3; i++ {
		s = Reduce(s, SubmitAnswer{Row: 2, Col: 3, Answer: 99})
		if s.Session.Mistakes != i {
			t.Fatalf("Expected %d mistakes, got %d", i, s.Session.Mistakes)
		}
	}
	cell := s.Session.Cells[2][3]
	if cell.IsRevealed || cell.IsCorrect == nil || *cell.IsCorrect {
		t.Fatalf("Expected unrevealed incorrect cell, got %+v", cell)
	}

	// resubmission after a mistake is allowed
	s = Reduce(s, SubmitAnswer{Row: 2, Col: 3, Answer: 5})
	if !s.Session.Cells[2][3].IsRevealed {
		t.Error("Expected resubmission to reveal the cell")
	}
	if s.Session.Mistakes != 3 {
		t.Errorf("Mistakes must not decrease, got %d", s.Session.Mistakes)
	}
}

func TestSubmitAnswer_RevealIsPermanent(t *testing.T) {
	s := Reduce(started(), SubmitAnswer{Row: 0, Col: 0, Answer: 0})
	s = Reduce(s, SubmitAnswer{Row: 0, Col: 0, Answer: 42})

	cell := s.Session.Cells[0][0]
	if !cell.IsRevealed || *cell.UserAnswer != 0 {
		t.Fatalf("Revealed cell changed: %+v", cell)
	}
	if s.Session.Mistakes != 0 {
		t.Errorf("Answering a revealed cell must be ignored, got %d mistakes", s.Session.Mistakes)
	}
}

func TestSubmitAnswer_NoOps(t *testing.T) {
	empty := Reduce(State{}, SubmitAnswer{Row: 0, Col: 0, Answer: 0})
	if empty.Session != nil {
		t.Error("Submitting without a session must be a no-op")
	}

	s := started()
	for _, rc := range [][2]int{{-1, 0}, {0, 10}, {10, 10}} {
		next := Reduce(s, SubmitAnswer{Row: rc[0], Col: rc[1], Answer: 1})
		if next.Session.Mistakes != 0 {
			t.Errorf("Out of range cell %v must be ignored", rc)
		}
	}

	timedOut := Reduce(s, Tick{Now: testStart.Add(10 * time.Minute)})
	after := Reduce(timedOut, SubmitAnswer{Row: 0, Col: 0, Answer: 0})
	if after.Session.Cells[0][0].IsRevealed {
		t.Error("Submitting after time-up must be a no-op")
	}

	done := solveAll(started())
	again := Reduce(done, SubmitAnswer{Row: 0, Col: 0, Answer: 7})
	if again.Session.Mistakes != 0 {
		t.Error("Submitting after completion must be a no-op")
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := started()
	before := s.Session.Cells[4][4]

	_ = Reduce(s, SubmitAnswer{Row: 4, Col: 4, Answer: 8})
	_ = Reduce(s, SubmitAnswer{Row: 4, Col: 4, Answer: 1})

	if s.Session.Cells[4][4] != before || s.Session.Mistakes != 0 {
		t.Fatal("Reduce modified its input state")
	}
}

func TestCompletionInvariant(t *testing.T) {
	s := started()
	for r := 0; r < models.GridSize; r++ {
		for c := 0; c < models.GridSize; c++ {
			if s.Session.IsCompleted {
				t.Fatalf("Completed before all cells revealed at (%d,%d)", r, c)
			}
			s = Reduce(s, SubmitAnswer{Row: r, Col: c, Answer: r + c, At: testStart.Add(2 * time.Minute)})
			if s.Session.IsCompleted != s.Session.AllRevealed() {
				t.Fatalf("IsCompleted diverged from reveal state at (%d,%d)", r, c)
			}
		}
	}
	if s.Status() != StatusCompleted {
		t.Fatalf("Expected completed, got %s", s.Status())
	}
	if ct := CompletionTime(s, testStart.Add(time.Hour)); ct == nil || *ct != 120 {
		t.Fatalf("Expected completion time 120, got %v", ct)
	}
}

func TestGuessName(t *testing.T) {
	tests := []struct {
		name  string
		guess string
		match bool
	}{
		{"localized", "ピカチュウ", true},
		{"canonical upper case", "PIKACHU", true},
		{"padded", "  pikachu \n", true},
		{"wrong", "raichu", false},
		{"empty", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Creature{Name: "pikachu", LocalizedName: "ピカチュウ"}
			if got := MatchesName(c, tt.guess); got != tt.match {
				t.Errorf("MatchesName(%q) = %v, want %v", tt.guess, got, tt.match)
			}
		})
	}
}

func TestGuessName_CompletesGrid(t *testing.T) {
	s := started()
	s = Reduce(s, SubmitAnswer{Row: 0, Col: 0, Answer: 0})
	s = Reduce(s, SubmitAnswer{Row: 1, Col: 1, Answer: 9}) // wrong, stays unrevealed

	s = Reduce(s, GuessName{Guess: "Pikachu", At: testStart.Add(30 * time.Second)})

	if !s.Session.IsCompleted || !s.Session.AllRevealed() {
		t.Fatal("Correct guess must complete the grid")
	}
	if *s.Session.Cells[1][1].UserAnswer != 9 {
		t.Errorf("Entered answer must be preserved, got %d", *s.Session.Cells[1][1].UserAnswer)
	}
	if *s.Session.Cells[5][5].UserAnswer != 10 {
		t.Errorf("Empty cell should default to the answer, got %d", *s.Session.Cells[5][5].UserAnswer)
	}
	if s.Session.Mistakes != 1 {
		t.Errorf("Correct guess must not touch mistakes, got %d", s.Session.Mistakes)
	}
}

func TestGuessName_Wrong(t *testing.T) {
	s := Reduce(started(), GuessName{Guess: "bulbasaur"})
	if s.Session.Mistakes != 1 {
		t.Errorf("Expected 1 mistake, got %d", s.Session.Mistakes)
	}
	if s.Session.RevealedCount() != 0 {
		t.Error("Wrong guess must not reveal anything")
	}
}

func TestTick(t *testing.T) {
	s := started()

	s = Reduce(s, Tick{Now: testStart.Add(100500 * time.Millisecond)})
	if s.Remaining != 200 || s.Status() != StatusInProgress {
		t.Fatalf("Expected 200s left in progress, got %d %s", s.Remaining, s.Status())
	}

	// a suspended clock catches up from the start time
	s = Reduce(s, Tick{Now: testStart.Add(299 * time.Second)})
	if s.Remaining != 1 {
		t.Fatalf("Expected 1s left, got %d", s.Remaining)
	}

	s = Reduce(s, Tick{Now: testStart.Add(300 * time.Second)})
	if s.Status() != StatusTimedOut || s.Remaining != 0 {
		t.Fatalf("Expected timed out at limit, got %s remaining=%d", s.Status(), s.Remaining)
	}

	// terminal states ignore further ticks
	again := Reduce(s, Tick{Now: testStart})
	if again.Remaining != 0 || !again.TimedOut {
		t.Error("Tick after time-up must be ignored")
	}
}

func TestTick_CompletedIgnored(t *testing.T) {
	s := solveAll(started())
	s = Reduce(s, Tick{Now: testStart.Add(time.Hour)})
	if s.Status() != StatusCompleted {
		t.Fatalf("Completed session must not time out, got %s", s.Status())
	}
}

func TestEnd(t *testing.T) {
	s := Reduce(Reduce(started(), Tick{Now: testStart.Add(time.Hour)}), End{})
	if s.Session != nil || s.TimedOut || s.Remaining != 0 {
		t.Fatalf("End must clear everything, got %+v", s)
	}
	if s.Status() != StatusNotStarted {
		t.Fatalf("Expected not_started, got %s", s.Status())
	}
	if CompletionTime(s, testStart) != nil {
		t.Error("No session means no completion time")
	}
}

func BenchmarkSubmitAnswer(b *testing.B) {
	s := started()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Reduce(s, SubmitAnswer{Row: i % 10, Col: (i / 10) % 10, Answer: 3})
	}
}
