package engine

import (
	"fmt"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/events"
)

// DeathPayload is attached to DEATH events.
type DeathPayload struct {
	Cause       Cause     `json:"cause"`
	Role        role.Name `json:"role"`
	Responsible []string  `json:"responsible,omitempty"`
}

// processDeath applies rec and every death it cascades into. The win check is left
// to the caller so a cascade is judged once, as a whole.
func (e *Engine) processDeath(rec DeathRecord) []DeathRecord {
	var applied []DeathRecord
	queue := []DeathRecord{rec}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		p, ok := e.state.Player(d.Victim)
		if !ok || !p.Alive {
			continue
		}
		p.Kill()
		e.state.dropVotes(p.ID)
		e.state.DeathCauses[p.ID] = d.Cause
		e.voice.Mute(p.ID)
		e.record(events.GameEvent{
			Type:       events.EventTypeDeath,
			TargetID:   p.ID,
			Payload:    DeathPayload{Cause: d.Cause, Role: p.Role, Responsible: d.Responsible},
			IsRevealed: true,
		})
		e.logger.Event(string(events.EventTypeDeath), p.ID, fmt.Sprintf("%s died (%s)", p.Name, d.Cause))
		e.announceDeath(d)
		applied = append(applied, d)

		switch p.Role {
		case role.Gossip:
			if m, ok := e.state.Player(e.state.GossipMark); ok {
				e.public("The Gossip's last words spread through town: %s is the %s!", m.Name, m.Role)
			}
		case role.JuniorKiller:
			if m, ok := e.state.Player(e.state.JuniorMark); ok && m.Alive {
				queue = append(queue, DeathRecord{Victim: m.ID, Cause: CauseJuniorCurse, Responsible: []string{p.ID}})
			}
		}

		if other, ok := e.state.OtherLover(p.ID); ok {
			if l := e.state.Players[other]; l.Alive {
				queue = append(queue, DeathRecord{Victim: other, Cause: CauseHeartbreak})
			}
		}

		if c := e.state.Contract; c != nil && c.Target == p.ID && d.Cause != CauseLynch {
			if h, ok := e.state.Player(c.Hunter); ok && h.Alive && h.Role == role.Headhunter {
				h.Assign(role.CommonCitizen)
				e.private(h.ID, "Your target %s died before the town could lynch them. You are now a %s.", p.Name, role.CommonCitizen)
				e.record(events.GameEvent{Type: events.EventTypeConversion, TargetID: h.ID, Payload: map[string]string{"role": string(role.CommonCitizen)}})
			}
		}
	}
	return applied
}

// announceDeath publishes a death. Lynches and sacrifices were already announced by their resolvers.
func (e *Engine) announceDeath(d DeathRecord) {
	name := e.state.NameOf(d.Victim)
	switch d.Cause {
	case CauseVillainVote, CauseWitchKill:
		e.public("%s was found dead this morning.", name)
	case CausePlague:
		e.public("%s succumbed to the plague.", name)
	case CauseHeartbreak:
		e.public("%s died of a broken heart.", name)
	case CauseJuniorCurse:
		e.public("%s was dragged down by the Junior Killer's curse.", name)
	case CauseSheriffShot, CauseShowdownShot:
		e.public("The Sheriff shot %s!", name)
	}
}
