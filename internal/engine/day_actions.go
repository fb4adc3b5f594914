package engine

import (
	"fmt"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/player"
	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/events"
)

// ActionPayload is attached to submission events.
type ActionPayload struct {
	Kind    role.Kind `json:"kind"`
	Targets []string  `json:"targets,omitempty"`
	Reply   string    `json:"reply,omitempty"`
}

// Submit validates and applies one ability use. Night abilities are queued for the
// resolver, instant and day abilities act immediately. The reply is meant for the actor.
func (e *Engine) Submit(actorID string, kind role.Kind, targets ...string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reply, err := e.submit(actorID, kind, targets)
	e.metrics.RecordAction(err == nil)
	if err != nil {
		e.logger.Debug(fmt.Sprintf("rejected %s from %s: %v", kind, actorID, err))
	}
	return reply, err
}

func (e *Engine) submit(actorID string, kind role.Kind, targets []string) (string, error) {
	if kind == role.ShowdownShot || kind == role.FinalAttack {
		return e.submitConfrontation(actorID, kind, targets)
	}
	s := e.state
	if !e.knownKind(kind) {
		return "", fmt.Errorf("%q: %w", kind, ErrUnknownAbility)
	}
	p, ab, err := s.authorize(actorID, kind)
	if err != nil {
		return "", err
	}
	if err := s.checkTargets(p, ab, targets); err != nil {
		return "", err
	}
	if err := s.checkSpecial(p, ab, targets, e.registry); err != nil {
		return "", err
	}

	if ab.Instant {
		return e.instant(p, ab, targets), nil
	}
	if ab.Window == role.NightWindow {
		memo := ""
		if ab.NoRepeat {
			memo = targets[0]
		}
		e.registry.Put(NightAction{Actor: p.ID, Kind: kind, Targets: targets, Priority: ab.Priority, Memo: memo})
		e.record(events.GameEvent{Type: events.EventTypeActionSubmitted, ActorID: p.ID, Payload: ActionPayload{Kind: kind, Targets: targets}})
		return fmt.Sprintf("Action %s registered.", kind), nil
	}
	return e.dayAction(p, ab, targets), nil
}

func (e *Engine) knownKind(kind role.Kind) bool {
	if kind == role.Haunt {
		return true
	}
	for _, r := range e.state.Catalog.All() {
		if _, ok := r.Ability(kind); ok {
			return true
		}
	}
	return false
}

// instant answers an information ability on the spot.
func (e *Engine) instant(p *player.State, ab role.Ability, targets []string) string {
	s := e.state
	p.Consume(ab.Counter())

	var reply string
	switch ab.Kind {
	case role.Aura:
		reply = "Not Town"
		if s.FactionOf(s.Players[targets[0]]) == role.Town {
			reply = "Town"
		}
	case role.Compare:
		a, b := s.Players[targets[0]], s.Players[targets[1]]
		if s.FactionOf(a) == s.FactionOf(b) {
			reply = fmt.Sprintf("%s and %s are on the same side.", a.Name, b.Name)
		} else {
			reply = fmt.Sprintf("%s and %s are on different sides.", a.Name, b.Name)
		}
	case role.Channel:
		t := s.Players[targets[0]]
		t.Ghost = true
		t.GhostController = p.ID
		e.private(t.ID, "The Medium called your spirit back. Each night you may haunt one player and report who visited them.")
		reply = fmt.Sprintf("%s's spirit now answers to you.", t.Name)
	case role.Spy:
		t := s.Players[targets[0]]
		reply = fmt.Sprintf("%s is the %s.", t.Name, t.Role)
		for _, id := range s.Faction(role.Villains, true) {
			if id != p.ID {
				e.private(id, "The Accomplice discovered that %s is the %s.", t.Name, t.Role)
			}
		}
	}
	e.record(events.GameEvent{Type: events.EventTypeInstantAction, ActorID: p.ID, Payload: ActionPayload{Kind: ab.Kind, Targets: targets, Reply: reply}})
	return reply
}

// dayAction applies shoot, sabotage, decree and fraud.
func (e *Engine) dayAction(p *player.State, ab role.Ability, targets []string) string {
	s := e.state
	switch ab.Kind {
	case role.Shoot:
		return e.sheriffShot(p, targets[0])

	case role.Sabotage:
		p.Consume(ab.Counter())
		e.record(events.GameEvent{Type: events.EventTypeSabotage, ActorID: p.ID, IsRevealed: true})
		e.public("The Alpha Killer sabotaged the day! Night falls early.")
		e.timer.Cancel()
		s.clearVotes()
		if !e.applyVerdict(e.win.Evaluate(Trigger{DayEnd: true})) {
			e.enterNight()
		}
		return "The day is over."

	case role.Decree:
		p.Consume(ab.Counter())
		s.DecreeActive = true
		s.DecreeHolder = p.ID
		e.record(events.GameEvent{Type: events.EventTypeDecree, ActorID: p.ID, IsRevealed: true})
		e.public("The Mayor issued a decree! Today Town votes count double and the Mayor's vote counts triple.")
		return "Decree issued."

	case role.Fraud:
		p.Consume(ab.Counter())
		s.FraudActive = true
		e.record(events.GameEvent{Type: events.EventTypeFraud, ActorID: p.ID})
		return "Today's count will be tampered with."
	}
	return ""
}

func (e *Engine) sheriffShot(sheriff *player.State, target string) string {
	s := e.state
	t := s.Players[target]
	s.ShotToday = true
	sheriff.ShotsFired++
	leader, top := s.IsLeader(t), s.IsTopVillain(t)

	e.record(events.GameEvent{Type: events.EventTypeSheriffShot, ActorID: sheriff.ID, TargetID: t.ID, IsRevealed: true})
	e.processDeath(DeathRecord{Victim: t.ID, Cause: CauseSheriffShot, Responsible: []string{sheriff.ID}})

	switch {
	case top:
		e.finish(e.win.townWin("The Sheriff shot the Alpha Killer!", false))
	case leader:
		e.finish(e.win.villainsWin("The Sheriff shot the Mayor!", false))
	default:
		e.applyVerdict(e.win.Evaluate(Trigger{Victim: t.ID}))
	}
	return fmt.Sprintf("You shot %s.", t.Name)
}
