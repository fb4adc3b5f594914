// Package match keeps the set of running matches and routes players to them.
package match

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Fezudo98/cidade-dorme-online/internal/engine"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
)

var (
	ErrUnknownMatch = errors.New("unknown match")
	ErrPlayerBusy   = errors.New("player already seated in a running match")
	ErrNotSeated    = errors.New("player is not seated in any match")
)

// Registry maps match keys to engines and players to the match they sit in.
// A player is released when the match finishes.
type Registry struct {
	mu       sync.RWMutex
	matches  map[string]*engine.Engine
	players  map[string]string
	settings engine.Settings
	deps     engine.Deps
	logger   *logger.Logger
}

// NewRegistry creates a registry. Every match gets a copy of settings and deps.
func NewRegistry(settings engine.Settings, deps engine.Deps, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		matches:  make(map[string]*engine.Engine),
		players:  make(map[string]string),
		settings: settings,
		deps:     deps,
		logger:   log,
	}
}

// Create seats the players in a new match. The match is left in Preparing.
func (r *Registry) Create(seats []engine.Seat) (*engine.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range seats {
		if id, ok := r.players[s.ID]; ok {
			return nil, fmt.Errorf("%s is in match %s: %w", s.ID, id, ErrPlayerBusy)
		}
	}

	matchID := uuid.NewString()
	deps := r.deps
	deps.Logger = r.logger.With("match", matchID)
	e, err := engine.NewEngine(matchID, seats, r.settings, deps)
	if err != nil {
		return nil, err
	}

	r.matches[matchID] = e
	for _, s := range seats {
		r.players[s.ID] = matchID
	}
	go r.release(e, seats)

	r.logger.Info(fmt.Sprintf("match %s created with %d players", matchID, len(seats)))
	return e, nil
}

// release frees the seats once the match is over.
func (r *Registry) release(e *engine.Engine, seats []engine.Seat) {
	<-e.Done()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range seats {
		if r.players[s.ID] == e.MatchID() {
			delete(r.players, s.ID)
		}
	}
}

// Get returns the match with the given key.
func (r *Registry) Get(matchID string) (*engine.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", matchID, ErrUnknownMatch)
	}
	return e, nil
}

// ForPlayer returns the running match the player is seated in.
func (r *Registry) ForPlayer(playerID string) (*engine.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.matches[r.players[playerID]]
	if !ok {
		return nil, fmt.Errorf("%s: %w", playerID, ErrNotSeated)
	}
	return e, nil
}

// IDs lists every known match key, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prune forgets finished matches and returns how many were removed.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.matches {
		select {
		case <-e.Done():
			delete(r.matches, id)
			n++
		default:
		}
	}
	return n
}

// Shutdown force-ends every running match and waits for their collaborators.
func (r *Registry) Shutdown(reason string) {
	r.mu.RLock()
	running := make([]*engine.Engine, 0, len(r.matches))
	for _, e := range r.matches {
		running = append(running, e)
	}
	r.mu.RUnlock()

	for _, e := range running {
		if err := e.ForceEnd(reason); err != nil && !errors.Is(err, engine.ErrMatchFinished) {
			r.logger.Err("force end "+e.MatchID(), err)
		}
		e.Flush()
	}
}
