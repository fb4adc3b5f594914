package engine

import (
	"fmt"
	"time"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/events"
)

// PhaseView is the public phase snapshot.
type PhaseView struct {
	MatchID  string    `json:"match_id"`
	Phase    Phase     `json:"phase"`
	Round    int       `json:"round"`
	Day      int       `json:"day"`
	Deadline time.Time `json:"deadline,omitempty"`
	Pending  bool      `json:"pending_resolution"`
	// Prompted is the player the confrontation is waiting on.
	Prompted string `json:"prompted,omitempty"`
}

// RosterEntry is one seat as everybody sees it. Roles show once a player is dead or the match is over.
type RosterEntry struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Alive bool      `json:"alive"`
	Role  role.Name `json:"role,omitempty"`
}

// SelfView is what a player knows about themself.
type SelfView struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Role    role.Name    `json:"role"`
	Faction role.Faction `json:"faction"`
	Alive   bool         `json:"alive"`
	Ghost   bool         `json:"ghost"`
	Lover   string       `json:"lover,omitempty"`
	Target  string       `json:"contract_target,omitempty"`
}

// Vote records a lynch vote.
func (e *Engine) Vote(voter, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.votes.CastVote(voter, target)
	e.metrics.RecordAction(err == nil)
	if err != nil {
		return err
	}
	e.record(events.GameEvent{Type: events.EventTypeVote, ActorID: voter, TargetID: target, IsRevealed: true})
	e.public("%s votes to lynch %s.", e.state.NameOf(voter), e.state.NameOf(target))
	return nil
}

// Skip records a skip vote. A skip majority ends the voting at once.
func (e *Engine) Skip(voter string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	majority, err := e.votes.CastSkip(voter)
	e.metrics.RecordAction(err == nil)
	if err != nil {
		return err
	}
	e.record(events.GameEvent{Type: events.EventTypeSkip, ActorID: voter, IsRevealed: true})
	if majority {
		e.timer.Cancel()
		e.endVoting()
	}
	return nil
}

// Phase returns the current phase snapshot.
func (e *Engine) Phase() PhaseView {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	v := PhaseView{
		MatchID:  s.MatchID,
		Phase:    s.Phase,
		Round:    s.Round,
		Day:      s.Day,
		Deadline: e.timer.Deadline(),
		Pending:  s.PendingResolution,
	}
	if e.showdown != nil {
		v.Prompted = e.showdown.chooser
	}
	return v
}

// Roster lists every seat with its alive flag.
func (e *Engine) Roster() []RosterEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	out := make([]RosterEntry, 0, len(s.Order))
	for _, p := range s.All() {
		entry := RosterEntry{ID: p.ID, Name: p.Name, Alive: p.Alive}
		if !p.Alive || s.Phase == PhaseFinished {
			entry.Role = p.Role
		}
		out = append(out, entry)
	}
	return out
}

// Self returns the private view of one seat.
func (e *Engine) Self(playerID string) (SelfView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	p, ok := s.Player(playerID)
	if !ok {
		return SelfView{}, fmt.Errorf("player %s: %w", playerID, ErrUnknownPlayer)
	}
	v := SelfView{ID: p.ID, Name: p.Name, Role: p.Role, Faction: s.FactionOf(p), Alive: p.Alive, Ghost: p.Ghost}
	if other, ok := s.OtherLover(p.ID); ok {
		v.Lover = other
	}
	if c := s.Contract; c != nil && c.Hunter == p.ID && p.Role == role.Headhunter {
		v.Target = c.Target
	}
	return v, nil
}

// AdvancePhase ends the current phase now, as if its timer had fired.
func (e *Engine) AdvancePhase() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state.Phase {
	case PhasePreparing:
		return fmt.Errorf("match not started: %w", ErrWrongPhase)
	case PhaseFinished:
		return ErrMatchFinished
	}
	e.timer.Cancel()
	switch e.state.Phase {
	case PhaseNight:
		e.endNight()
	case PhaseDayDiscussion:
		e.enterVoting()
	case PhaseDayVoting:
		e.endVoting()
	case PhaseConfrontation:
		e.showdownTimeout()
	}
	return nil
}

// ForceEnd finishes the match with no winners. The result is not recorded.
func (e *Engine) ForceEnd(reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase == PhaseFinished {
		return ErrMatchFinished
	}
	e.forced = true
	e.finish(&WinResult{Title: "Match ended", Faction: FactionNone, Reason: reason})
	return nil
}

// Result returns the terminal result, nil while the match runs.
func (e *Engine) Result() *WinResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Result == nil {
		return nil
	}
	res := *e.state.Result
	res.Winners = append([]string(nil), res.Winners...)
	return &res
}

// Flush blocks until every delivery queued so far has run.
func (e *Engine) Flush() {
	e.mu.Lock()
	reached := e.out.marker()
	e.mu.Unlock()
	<-reached
}

// Done is closed when the match finishes.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Events exposes the match log.
func (e *Engine) Events() *events.EventLog {
	return e.eventLog
}

// MatchID returns the match identifier.
func (e *Engine) MatchID() string {
	return e.state.MatchID
}
