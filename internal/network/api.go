package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/engine"
	"github.com/Fezudo98/cidade-dorme-online/internal/match"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
)

// ResultReader looks up recorded matches.
type ResultReader interface {
	Get(ctx context.Context, matchID string) (*engine.MatchResult, error)
	Recent(ctx context.Context, limit int) ([]engine.MatchResult, error)
}

// API is the HTTP command surface for hosts and players.
type API struct {
	registry *match.Registry
	hub      *Hub
	results  ResultReader
	logger   *logger.Logger
}

// NewAPI creates the handlers. results may be nil when nothing is persisted.
func NewAPI(reg *match.Registry, hub *Hub, results ResultReader, log *logger.Logger) *API {
	if log == nil {
		log = logger.Nop()
	}
	return &API{registry: reg, hub: hub, results: results, logger: log}
}

// CreateRequest seats the players of a new match.
type CreateRequest struct {
	Players []engine.Seat `json:"players"`
	Start   bool          `json:"start"`
}

// ActionRequest carries a player command.
type ActionRequest struct {
	PlayerID string   `json:"player_id"`
	Kind     string   `json:"kind,omitempty"`
	Targets  []string `json:"targets,omitempty"`
	Target   string   `json:"target,omitempty"`
}

// EndRequest force-ends a match.
type EndRequest struct {
	MatchID string `json:"match_id"`
	Reason  string `json:"reason"`
}

// RegisterRoutes sets up the match API routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/matches", a.HandleMatches)
	mux.HandleFunc("/api/matches/start", a.HandleStart)
	mux.HandleFunc("/api/matches/phase", a.HandlePhase)
	mux.HandleFunc("/api/matches/roster", a.HandleRoster)
	mux.HandleFunc("/api/matches/advance", a.HandleAdvance)
	mux.HandleFunc("/api/matches/end", a.HandleEnd)
	mux.HandleFunc("/api/actions/submit", a.HandleSubmit)
	mux.HandleFunc("/api/actions/vote", a.HandleVote)
	mux.HandleFunc("/api/actions/skip", a.HandleSkip)
	mux.HandleFunc("/api/results", a.HandleResults)
}

// HandleMatches lists matches (GET) or creates one (POST).
// POST /api/matches {"players":[{"id":"..","name":".."}],"start":true}
func (a *API) HandleMatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonSuccess(w, map[string]interface{}{"matches": a.registry.IDs()})
	case http.MethodPost:
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		e, err := a.registry.Create(req.Players)
		if err != nil {
			a.fail(w, err)
			return
		}
		ids := make([]string, len(req.Players))
		for i, s := range req.Players {
			ids[i] = s.ID
		}
		a.hub.Seat(e.MatchID(), ids)
		go a.unseatWhenDone(e)

		if req.Start {
			if err := e.Start(); err != nil {
				a.fail(w, err)
				return
			}
		}
		a.logger.Event("MATCH_CREATED", "HOST", e.MatchID())
		writeJSON(w, http.StatusCreated, e.Phase())
	default:
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// unseatWhenDone drops the match channel once the last notices went out.
func (a *API) unseatWhenDone(e *engine.Engine) {
	<-e.Done()
	e.Flush()
	a.hub.Unseat(e.MatchID())
}

// HandleStart moves a match out of Preparing.
// POST /api/matches/start?match_id=X
func (a *API) HandleStart(w http.ResponseWriter, r *http.Request) {
	e, ok := a.matchFor(w, r, http.MethodPost)
	if !ok {
		return
	}
	if err := e.Start(); err != nil {
		a.fail(w, err)
		return
	}
	jsonSuccess(w, e.Phase())
}

// HandlePhase returns the phase snapshot.
// GET /api/matches/phase?match_id=X
func (a *API) HandlePhase(w http.ResponseWriter, r *http.Request) {
	e, ok := a.matchFor(w, r, http.MethodGet)
	if !ok {
		return
	}
	jsonSuccess(w, e.Phase())
}

// HandleRoster returns the public roster, plus the result once the match is over.
// GET /api/matches/roster?match_id=X
func (a *API) HandleRoster(w http.ResponseWriter, r *http.Request) {
	e, ok := a.matchFor(w, r, http.MethodGet)
	if !ok {
		return
	}
	jsonSuccess(w, map[string]interface{}{
		"match_id": e.MatchID(),
		"players":  e.Roster(),
		"result":   e.Result(),
	})
}

// HandleAdvance ends the current phase early.
// POST /api/matches/advance?match_id=X
func (a *API) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	e, ok := a.matchFor(w, r, http.MethodPost)
	if !ok {
		return
	}
	if err := e.AdvancePhase(); err != nil {
		a.fail(w, err)
		return
	}
	jsonSuccess(w, e.Phase())
}

// HandleEnd force-ends a match with no winners.
// POST /api/matches/end {"match_id":"X","reason":"host left"}
func (a *API) HandleEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req EndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MatchID == "" {
		jsonError(w, "Missing match_id", http.StatusBadRequest)
		return
	}
	e, err := a.registry.Get(req.MatchID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "Ended by the host."
	}
	if err := e.ForceEnd(req.Reason); err != nil {
		a.fail(w, err)
		return
	}
	jsonSuccess(w, e.Result())
}

// HandleSubmit uses an ability.
// POST /api/actions/submit {"player_id":"p1","kind":"protect","targets":["p2"]}
func (a *API) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, e, ok := a.actionFor(w, r)
	if !ok {
		return
	}
	reply, err := e.Submit(req.PlayerID, role.Kind(req.Kind), req.Targets...)
	if err != nil {
		a.fail(w, err)
		return
	}
	jsonSuccess(w, map[string]string{"reply": reply})
}

// HandleVote casts a lynch vote.
// POST /api/actions/vote {"player_id":"p1","target":"p2"}
func (a *API) HandleVote(w http.ResponseWriter, r *http.Request) {
	req, e, ok := a.actionFor(w, r)
	if !ok {
		return
	}
	if err := e.Vote(req.PlayerID, req.Target); err != nil {
		a.fail(w, err)
		return
	}
	jsonSuccess(w, map[string]string{"reply": "Vote registered."})
}

// HandleSkip casts a skip vote.
// POST /api/actions/skip {"player_id":"p1"}
func (a *API) HandleSkip(w http.ResponseWriter, r *http.Request) {
	req, e, ok := a.actionFor(w, r)
	if !ok {
		return
	}
	if err := e.Skip(req.PlayerID); err != nil {
		a.fail(w, err)
		return
	}
	jsonSuccess(w, map[string]string{"reply": "Skip registered."})
}

// HandleResults returns one recorded match or the latest ones.
// GET /api/results?match_id=X  |  GET /api/results?limit=10
func (a *API) HandleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.results == nil {
		jsonError(w, "Results are not persisted", http.StatusNotFound)
		return
	}
	if id := r.URL.Query().Get("match_id"); id != "" {
		res, err := a.results.Get(r.Context(), id)
		if err != nil {
			a.fail(w, err)
			return
		}
		if res == nil {
			jsonError(w, "Match not recorded", http.StatusNotFound)
			return
		}
		jsonSuccess(w, res)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := a.results.Recent(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	jsonSuccess(w, map[string]interface{}{"results": list})
}

func (a *API) matchFor(w http.ResponseWriter, r *http.Request, method string) (*engine.Engine, bool) {
	if r.Method != method {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	id := r.URL.Query().Get("match_id")
	if id == "" {
		jsonError(w, "Missing match_id", http.StatusBadRequest)
		return nil, false
	}
	e, err := a.registry.Get(id)
	if err != nil {
		a.fail(w, err)
		return nil, false
	}
	return e, true
}

func (a *API) actionFor(w http.ResponseWriter, r *http.Request) (ActionRequest, *engine.Engine, bool) {
	var req ActionRequest
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return req, nil, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return req, nil, false
	}
	e, err := a.registry.ForPlayer(req.PlayerID)
	if err != nil {
		a.fail(w, err)
		return req, nil, false
	}
	return req, e, true
}

// fail maps engine and registry errors to a status code.
func (a *API) fail(w http.ResponseWriter, err error) {
	jsonError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, match.ErrUnknownMatch), errors.Is(err, match.ErrNotSeated):
		return http.StatusNotFound
	case errors.Is(err, match.ErrPlayerBusy), errors.Is(err, engine.ErrMatchFinished),
		errors.Is(err, engine.ErrWrongPhase), errors.Is(err, engine.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, engine.ErrSeatCount), errors.Is(err, role.ErrNoComposition),
		errors.Is(err, role.ErrPoolExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNotAlive), errors.Is(err, engine.ErrUnknownPlayer),
		errors.Is(err, engine.ErrRoleMismatch), errors.Is(err, engine.ErrAbilityUsed),
		errors.Is(err, engine.ErrInvalidTarget), errors.Is(err, engine.ErrSelfTarget),
		errors.Is(err, engine.ErrRepeatTarget), errors.Is(err, engine.ErrCorrupted),
		errors.Is(err, engine.ErrUnknownAbility):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func jsonSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
