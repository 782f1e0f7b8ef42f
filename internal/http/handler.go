package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyakumasu/pokedrill/internal/creature"
	"github.com/hyakumasu/pokedrill/internal/engine"
	"github.com/hyakumasu/pokedrill/internal/gacha"
	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/progression"
	"github.com/hyakumasu/pokedrill/internal/service"
	"github.com/hyakumasu/pokedrill/internal/session"
	"github.com/hyakumasu/pokedrill/internal/types"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

// Game is the game service as the HTTP layer uses it
type Game interface {
	StartSession(ctx context.Context, sel models.Selector) (engine.State, error)
	Current() engine.State
	SubmitAnswer(row, col, answer int) engine.State
	GuessName(guess string) (bool, engine.State)
	EndSession(ctx context.Context)
	Finish(ctx context.Context) (service.FinishResult, error)
	Subscribe() (<-chan engine.State, func())
	Pull(ctx context.Context) (gacha.PullResult, error)
	Progress() models.ProgressionSnapshot
	Levels() []service.LevelView
	UnlockLevel(ctx context.Context, level int) (models.ProgressionSnapshot, error)
	Collection(ctx context.Context) ([]models.Creature, error)
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	game    Game
	logger  *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewHandler creates a new HTTP handler. timeout bounds calls that reach the
// creature API or the store.
func NewHandler(game Game, log *logger.Logger, timeout time.Duration) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{game: game, logger: log, timeout: timeout, now: time.Now}
}

// Routes sets up all HTTP routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/levels", h.ListLevels)
		r.Post("/levels/{level}/unlock", h.UnlockLevel)
		r.Get("/progress", h.GetProgress)
		r.Get("/collection", h.GetCollection)
		r.Post("/gacha/pull", h.Pull)

		r.Post("/sessions", h.StartSession)
		r.Route("/sessions/current", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.EndSession)
			r.Post("/answers", h.SubmitAnswer)
			r.Post("/guess", h.Guess)
			r.Post("/finish", h.Finish)
			r.Get("/ticks", h.Ticks)
		})
	})

	// Health check
	r.Get("/healthz", h.Health)

	return r
}

// Health handles health check requests
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListLevels handles GET /v1/levels
func (h *Handler) ListLevels(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.game.Levels())
}

// UnlockLevel handles POST /v1/levels/{level}/unlock
func (h *Handler) UnlockLevel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid level", "level must be a number")
		return
	}

	snapshot, err := h.game.UnlockLevel(ctx, level)
	if err != nil {
		h.respondServiceError(w, "failed to unlock level", err)
		return
	}
	h.respondJSON(w, http.StatusOK, snapshot)
}

// GetProgress handles GET /v1/progress
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.game.Progress())
}

// GetCollection handles GET /v1/collection
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creatures, err := h.game.Collection(ctx)
	if err != nil {
		h.respondServiceError(w, "failed to load collection", err)
		return
	}
	h.respondJSON(w, http.StatusOK, types.CollectionResponse{Creatures: creatures})
}

// Pull handles POST /v1/gacha/pull
func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.game.Pull(ctx)
	if err != nil {
		h.respondServiceError(w, "pull failed", err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// StartSession handles POST /v1/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req types.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	state, err := h.game.StartSession(ctx, req.Selector())
	if err != nil {
		h.respondServiceError(w, "failed to start session", err)
		return
	}
	h.respondState(w, http.StatusCreated, state)
}

// GetSession handles GET /v1/sessions/current
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, http.StatusOK, h.game.Current())
}

// EndSession handles DELETE /v1/sessions/current
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.game.EndSession(r.Context())
	h.respondState(w, http.StatusOK, h.game.Current())
}

// SubmitAnswer handles POST /v1/sessions/current/answers
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req types.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Row == nil || req.Col == nil || req.Answer == nil {
		h.respondError(w, http.StatusBadRequest, "invalid answer", "row, col and answer are required")
		return
	}

	h.respondState(w, http.StatusOK, h.game.SubmitAnswer(*req.Row, *req.Col, *req.Answer))
}

// Guess handles POST /v1/sessions/current/guess
func (h *Handler) Guess(w http.ResponseWriter, r *http.Request) {
	var req types.GuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	correct, state := h.game.GuessName(req.Name)
	setSessionID(w, state)
	h.respondJSON(w, http.StatusOK, types.GuessResponse{
		Correct: correct,
		State:   types.NewSessionStateResponse(state, h.now()),
	})
}

// Finish handles POST /v1/sessions/current/finish
func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.game.Finish(ctx)
	if err != nil {
		h.respondServiceError(w, "failed to finish session", err)
		return
	}
	w.Header().Set(SessionIDHeader, result.SessionID)
	h.respondJSON(w, http.StatusOK, result)
}

// respondState sends the session state as seen now
func (h *Handler) respondState(w http.ResponseWriter, status int, st engine.State) {
	setSessionID(w, st)
	h.respondJSON(w, status, types.NewSessionStateResponse(st, h.now()))
}

func setSessionID(w http.ResponseWriter, st engine.State) {
	if st.Session != nil {
		w.Header().Set(SessionIDHeader, st.Session.ID)
	}
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", logger.F("error", err.Error()))
	}
}

// respondError sends an error response
func (h *Handler) respondError(w http.ResponseWriter, status int, errorMsg, message string) {
	h.respondJSON(w, status, types.ErrorResponse{
		Error:   errorMsg,
		Message: message,
	})
}

// respondServiceError maps a service error to its status code
func (h *Handler) respondServiceError(w http.ResponseWriter, errorMsg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(errorMsg, logger.F("error", err.Error()))
	}
	h.respondError(w, status, errorMsg, err.Error())
}

func statusFor(err error) int {
	var fetchErr *creature.FetchError
	switch {
	case errors.Is(err, progression.ErrInsufficientFunds),
		errors.Is(err, service.ErrSessionInProgress):
		return http.StatusConflict
	case errors.Is(err, progression.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidLevel),
		errors.Is(err, session.ErrInvalidSelector):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrLevelLocked):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNoSession):
		return http.StatusNotFound
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
