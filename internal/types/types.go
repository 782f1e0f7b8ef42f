package types

import (
	"time"

	"github.com/hyakumasu/pokedrill/internal/engine"
	"github.com/hyakumasu/pokedrill/internal/models"
)

// StartSessionRequest selects a level (1-20) or a legacy tier
type StartSessionRequest struct {
	Level int    `json:"level,omitempty"`
	Tier  string `json:"tier,omitempty"`
}

// Selector converts the request to a session selector
func (r StartSessionRequest) Selector() models.Selector {
	return models.Selector{Level: r.Level, Tier: models.Tier(r.Tier)}
}

// AnswerRequest answers one grid cell
type AnswerRequest struct {
	Row    *int `json:"row"`
	Col    *int `json:"col"`
	Answer *int `json:"answer"`
}

// GuessRequest guesses the hidden creature's name
type GuessRequest struct {
	Name string `json:"name"`
}

// SessionStateResponse represents the current session machine state
type SessionStateResponse struct {
	Status         string          `json:"status"` // "not_started", "in_progress", "completed", "timed_out"
	Remaining      int             `json:"remaining"`
	Session        *models.Session `json:"session,omitempty"`
	CompletionTime *int            `json:"completionTime,omitempty"`
	ComputedAt     string          `json:"computedAt"` // RFC3339
}

// NewSessionStateResponse renders a machine state at now
func NewSessionStateResponse(st engine.State, now time.Time) SessionStateResponse {
	return SessionStateResponse{
		Status:         st.Status().String(),
		Remaining:      st.Remaining,
		Session:        st.Session,
		CompletionTime: engine.CompletionTime(st, now),
		ComputedAt:     now.UTC().Format(time.RFC3339),
	}
}

// GuessResponse reports whether a guess matched
type GuessResponse struct {
	Correct bool                 `json:"correct"`
	State   SessionStateResponse `json:"state"`
}

// CollectionResponse lists owned creatures in collection order
type CollectionResponse struct {
	Creatures []models.Creature `json:"creatures"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
