package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Fezudo98/cidade-dorme-online/internal/events"
	"github.com/Fezudo98/cidade-dorme-online/internal/infra/storage"
	"github.com/Fezudo98/cidade-dorme-online/internal/match"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
)

// ReplayHandler serves match histories. Running matches are read from memory and
// only show what the table has seen; other matches come from the persisted log.
type ReplayHandler struct {
	registry *match.Registry
	recon    *storage.Reconstructor
	logger   *logger.Logger
}

// NewReplayHandler creates a replay handler. recon may be nil.
func NewReplayHandler(reg *match.Registry, recon *storage.Reconstructor, log *logger.Logger) *ReplayHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ReplayHandler{registry: reg, recon: recon, logger: log}
}

// ReplayResponse is the API response for a replay.
type ReplayResponse struct {
	MatchID     string                  `json:"match_id"`
	Live        bool                    `json:"live"`
	TotalEvents int                     `json:"total_events"`
	GeneratedAt string                  `json:"generated_at"`
	Events      []storage.TimelineEntry `json:"events"`
}

// RegisterRoutes sets up the replay routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/replay", rh.HandleReplay)
	mux.HandleFunc("/api/replay/seats", rh.HandleSeats)
	mux.HandleFunc("/api/replay/stats", rh.HandleStats)
}

// HandleReplay returns the timeline of a match.
// GET /api/replay?match_id=X&round=N&type=DEATH&revealed_only=true
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	matchID, ok := rh.query(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	revealedOnly := q.Get("revealed_only") == "true"
	round, _ := strconv.Atoi(q.Get("round"))
	eventType := q.Get("type")

	entries, live, err := rh.timeline(r, matchID, revealedOnly)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	filtered := make([]storage.TimelineEntry, 0, len(entries))
	for _, e := range entries {
		if round > 0 && e.Round != round {
			continue
		}
		if eventType != "" && e.EventType != eventType {
			continue
		}
		filtered = append(filtered, e)
	}
	if !live && len(entries) == 0 {
		jsonError(w, "Match not found", http.StatusNotFound)
		return
	}

	rh.logger.Event("REPLAY", "VIEWER", "match "+matchID+" events "+strconv.Itoa(len(filtered)))
	jsonSuccess(w, ReplayResponse{
		MatchID:     matchID,
		Live:        live,
		TotalEvents: len(filtered),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      filtered,
	})
}

// timeline prefers the in-memory log. A running match is forced to its public view.
func (rh *ReplayHandler) timeline(r *http.Request, matchID string, revealedOnly bool) ([]storage.TimelineEntry, bool, error) {
	if e, err := rh.registry.Get(matchID); err == nil {
		live := e.Result() == nil
		if live {
			revealedOnly = true
		}
		var evs []events.GameEvent
		if revealedOnly {
			evs = e.Events().Revealed()
		} else {
			evs = e.Events().Replay()
		}
		return toTimeline(evs), live, nil
	}
	if rh.recon == nil {
		return nil, false, nil
	}
	entries, err := rh.recon.Timeline(r.Context(), matchID, revealedOnly)
	return entries, false, err
}

// HandleSeats returns the seats as the log tells them. Only finished or persisted matches.
// GET /api/replay/seats?match_id=X
func (rh *ReplayHandler) HandleSeats(w http.ResponseWriter, r *http.Request) {
	matchID, ok := rh.query(w, r)
	if !ok {
		return
	}
	if e, err := rh.registry.Get(matchID); err == nil {
		if e.Result() == nil {
			jsonError(w, "Match still running", http.StatusConflict)
			return
		}
		jsonSuccess(w, map[string]interface{}{"match_id": matchID, "seats": e.Roster()})
		return
	}
	if rh.recon == nil {
		jsonError(w, "Match not found", http.StatusNotFound)
		return
	}
	seats, err := rh.recon.RebuildSeats(r.Context(), matchID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(seats) == 0 {
		jsonError(w, "Match not found", http.StatusNotFound)
		return
	}
	jsonSuccess(w, map[string]interface{}{"match_id": matchID, "seats": seats})
}

// HandleStats counts the events of a match by type.
// GET /api/replay/stats?match_id=X
func (rh *ReplayHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	matchID, ok := rh.query(w, r)
	if !ok {
		return
	}
	entries, live, err := rh.timeline(r, matchID, false)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats := map[string]int{"total_events": len(entries)}
	for _, e := range entries {
		stats[e.EventType]++
	}
	jsonSuccess(w, map[string]interface{}{
		"match_id":     matchID,
		"live":         live,
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

func (rh *ReplayHandler) query(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	id := r.URL.Query().Get("match_id")
	if id == "" {
		jsonError(w, "Missing match_id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func toTimeline(evs []events.GameEvent) []storage.TimelineEntry {
	out := make([]storage.TimelineEntry, 0, len(evs))
	for _, e := range evs {
		payload, _ := json.Marshal(e.Payload)
		out = append(out, storage.TimelineEntry{
			Timestamp:  e.Timestamp,
			Round:      e.Round,
			EventType:  string(e.Type),
			ActorID:    e.ActorID,
			TargetID:   e.TargetID,
			Summary:    storage.Summarize(e.Type, e.ActorID, e.TargetID, string(payload)),
			IsRevealed: e.IsRevealed,
		})
	}
	return out
}
